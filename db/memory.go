package db

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/models"
)

// MemoryStore is an in-process Store used for development and tests.
// Change events are delivered synchronously, after the write lock is released,
// to every subscriber of the table in the order writes were applied.
type MemoryStore struct {
	mu       sync.Mutex
	tables   map[models.Table]*memTable
	subs     map[int]*memSubscriber
	nextSub  int
	failNext error
	offline  bool

	// deliverMu keeps events in write order across concurrent writers.
	deliverMu sync.Mutex
}

type memTable struct {
	order []string
	rows  map[string]models.Row
}

type memSubscriber struct {
	tables  map[models.Table]bool
	handler EventHandler
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[models.Table]*memTable),
		subs:   make(map[int]*memSubscriber),
	}
}

func (s *MemoryStore) Configured() bool { return true }

// FailNext makes the next Mutate call return err without applying it.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// SetOffline simulates a connectivity loss. Reads degrade to nil, writes fail.
func (s *MemoryStore) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

func (s *MemoryStore) table(name models.Table) *memTable {
	t, ok := s.tables[name]
	if !ok {
		t = &memTable{rows: make(map[string]models.Row)}
		s.tables[name] = t
	}
	return t
}

func (s *MemoryStore) FetchAll(ctx context.Context, table models.Table) []models.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offline {
		log.Printf("⚠️  Fetch %s skipped: %v", table, ErrUnavailable)
		return nil
	}

	t := s.table(table)
	rows := make([]models.Row, 0, len(t.order))
	for _, id := range t.order {
		rows = append(rows, t.rows[id].Clone())
	}
	sortRows(table, rows)
	return rows
}

func (s *MemoryStore) Query(ctx context.Context, table models.Table, match models.Row) ([]models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offline {
		return nil, ErrUnavailable
	}

	t := s.table(table)
	var rows []models.Row
	for _, id := range t.order {
		if matches(t.rows[id], match) {
			rows = append(rows, t.rows[id].Clone())
		}
	}
	sortRows(table, rows)
	return rows, nil
}

func (s *MemoryStore) Mutate(ctx context.Context, table models.Table, m Mutation) (models.Row, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		s.mu.Unlock()
		return nil, err
	}
	if s.offline {
		s.mu.Unlock()
		return nil, ErrUnavailable
	}

	var (
		events []models.ChangeEvent
		result models.Row
		err    error
	)
	switch m.Op {
	case models.OpInsert:
		result, err = s.insertLocked(table, m.Payload)
		if err == nil {
			events = append(events, models.ChangeEvent{Table: table, Op: models.OpInsert, Row: result})
		}
	case models.OpUpdate:
		events, err = s.updateLocked(table, m)
	case models.OpDelete:
		events, err = s.deleteLocked(table, m)
	}
	subs := s.subscribersLocked(table)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		for _, sub := range subs {
			sub.handler(models.ChangeEvent{Table: ev.Table, Op: ev.Op, Row: ev.Row.Clone()})
		}
	}
	if result != nil {
		return result.Clone(), nil
	}
	return nil, nil
}

func (s *MemoryStore) insertLocked(table models.Table, payload models.Row) (models.Row, error) {
	row := payload.Clone()
	id := row.ID()
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}
	if !row.Has("created_at") {
		row["created_at"] = time.Now().UTC()
	}

	t := s.table(table)
	if _, exists := t.rows[id]; exists {
		return nil, fmt.Errorf("%s %s already exists: %w", table, id, ErrConstraint)
	}
	if table == models.TableMessages {
		recipient := row.String("recipient_id")
		if _, ok := s.table(models.TableUsers).rows[recipient]; !ok {
			return nil, fmt.Errorf("messages.recipient_id %q references no user: %w", recipient, ErrConstraint)
		}
	}

	t.rows[id] = row
	t.order = append(t.order, id)
	return row.Clone(), nil
}

func (s *MemoryStore) targetsLocked(table models.Table, m Mutation) []string {
	t := s.table(table)
	if m.ID != "" {
		if row, ok := t.rows[m.ID]; ok && matches(row, m.Match) {
			return []string{m.ID}
		}
		return nil
	}
	var ids []string
	for _, id := range t.order {
		if matches(t.rows[id], m.Match) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *MemoryStore) updateLocked(table models.Table, m Mutation) ([]models.ChangeEvent, error) {
	ids := s.targetsLocked(table, m)
	if m.ID != "" && len(ids) == 0 {
		return nil, fmt.Errorf("%s %s: %w", table, m.ID, ErrNotFound)
	}

	t := s.table(table)
	events := make([]models.ChangeEvent, 0, len(ids))
	for _, id := range ids {
		row := t.rows[id]
		for k, v := range m.Payload {
			if k == "id" {
				continue
			}
			row[k] = v
		}
		events = append(events, models.ChangeEvent{Table: table, Op: models.OpUpdate, Row: row.Clone()})
	}
	return events, nil
}

func (s *MemoryStore) deleteLocked(table models.Table, m Mutation) ([]models.ChangeEvent, error) {
	ids := s.targetsLocked(table, m)

	t := s.table(table)
	events := make([]models.ChangeEvent, 0, len(ids))
	for _, id := range ids {
		delete(t.rows, id)
		for i, oid := range t.order {
			if oid == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		events = append(events, models.ChangeEvent{Table: table, Op: models.OpDelete, Row: models.Row{"id": id}})
	}
	return events, nil
}

func (s *MemoryStore) subscribersLocked(table models.Table) []*memSubscriber {
	ids := make([]int, 0, len(s.subs))
	for id, sub := range s.subs {
		if sub.tables[table] {
			ids = append(ids, id)
		}
	}
	// oldest subscriber first
	sort.Ints(ids)
	subs := make([]*memSubscriber, len(ids))
	for i, id := range ids {
		subs[i] = s.subs[id]
	}
	return subs
}

// Subscribe registers handler for the given tables. The memory feed has no
// initial replay; callers are expected to FetchAll first.
func (s *MemoryStore) Subscribe(ctx context.Context, tables []models.Table, handler EventHandler) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[models.Table]bool, len(tables))
	for _, t := range tables {
		set[t] = true
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &memSubscriber{tables: set, handler: handler}

	return newSubscription(func() {
		// wait for any in-flight delivery before returning
		s.deliverMu.Lock()
		defer s.deliverMu.Unlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}), nil
}

// Subscribers returns the number of open subscriptions.
func (s *MemoryStore) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Emit delivers a raw event to subscribers without touching stored rows.
// It lets tests replay duplicate, out-of-order or malformed feed traffic.
func (s *MemoryStore) Emit(ev models.ChangeEvent) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	subs := s.subscribersLocked(ev.Table)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.handler(models.ChangeEvent{Table: ev.Table, Op: ev.Op, Row: ev.Row.Clone(), Initial: ev.Initial, Keys: append([]string(nil), ev.Keys...)})
	}
}
