package db

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mmonsif/aeroconnect/models"
)

var (
	// ErrNotConfigured is returned when no backend has been configured.
	ErrNotConfigured = errors.New("store not configured")
	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
	// ErrConstraint is returned for foreign-key or uniqueness violations.
	ErrConstraint = errors.New("constraint violation")
	ErrNotFound   = errors.New("not found")
	ErrInvalid    = errors.New("invalid mutation")
)

// Mutation targets rows either by primary key (ID) or by a field filter (Match).
// Inserts carry the full row in Payload; updates carry only changed fields.
type Mutation struct {
	Op      models.Op
	ID      string
	Match   models.Row
	Payload models.Row
}

func (m Mutation) validate() error {
	switch m.Op {
	case models.OpInsert:
		if m.Payload == nil {
			return ErrInvalid
		}
	case models.OpUpdate:
		if m.Payload == nil || (m.ID == "" && len(m.Match) == 0) {
			return ErrInvalid
		}
	case models.OpDelete:
		if m.ID == "" && len(m.Match) == 0 {
			return ErrInvalid
		}
	default:
		return ErrInvalid
	}
	return nil
}

// EventHandler receives change events. Handlers for one table are called in arrival order.
type EventHandler func(models.ChangeEvent)

// Store is the remote store adapter used by sessions.
//
// FetchAll never fails: an unreachable or unconfigured backend yields nil and a logged warning.
// Mutate never touches any local mirror; changes come back through the change feed.
type Store interface {
	Configured() bool
	FetchAll(ctx context.Context, table models.Table) []models.Row
	Query(ctx context.Context, table models.Table, match models.Row) ([]models.Row, error)
	Mutate(ctx context.Context, table models.Table, m Mutation) (models.Row, error)
	Subscribe(ctx context.Context, tables []models.Table, handler EventHandler) (*Subscription, error)
}

// Subscription is an open change feed. Close cancels it and waits for delivery to stop.
type Subscription struct {
	once    sync.Once
	closeFn func()
}

func newSubscription(closeFn func()) *Subscription {
	return &Subscription{closeFn: closeFn}
}

func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.closeFn)
}

// sortRows orders rows by created_at according to the table's ordering.
func sortRows(table models.Table, rows []models.Row) {
	switch table.Ordering() {
	case models.NewestFirst:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Time("created_at").After(rows[j].Time("created_at"))
		})
	case models.OldestFirst:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Time("created_at").Before(rows[j].Time("created_at"))
		})
	}
}

func matches(row, match models.Row) bool {
	for k, v := range match {
		if row[k] != v {
			return false
		}
	}
	return true
}
