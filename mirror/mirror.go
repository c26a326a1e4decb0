// Package mirror holds a session's local copy of every synced table.
//
// The mirror is the single source of truth for rendering. It is filled by a
// full fetch and kept current by change-feed events; views never read the
// remote store directly.
package mirror

import (
	"log"
	"reflect"
	"sync"

	"github.com/mmonsif/aeroconnect/models"
)

// Outcome describes what ApplyEvent did with an event.
type Outcome int

const (
	Ignored Outcome = iota
	Inserted
	// Merged: an insert for a known key filled fields the existing record lacked.
	Merged
	// Duplicate: an insert for a known key changed nothing.
	Duplicate
	Updated
	// Upserted: an update for an unknown key was stored as a new record.
	Upserted
	Removed
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Merged:
		return "merged"
	case Duplicate:
		return "duplicate"
	case Updated:
		return "updated"
	case Upserted:
		return "upserted"
	case Removed:
		return "removed"
	}
	return "ignored"
}

type collection struct {
	order []string
	rows  map[string]models.Row
}

func newCollection() *collection {
	return &collection{rows: make(map[string]models.Row)}
}

// Mirror is safe for concurrent use. Reads return copies.
type Mirror struct {
	mu     sync.RWMutex
	tables map[models.Table]*collection
}

func New() *Mirror {
	return &Mirror{tables: make(map[models.Table]*collection)}
}

func (m *Mirror) coll(table models.Table) *collection {
	c, ok := m.tables[table]
	if !ok {
		c = newCollection()
		m.tables[table] = c
	}
	return c
}

// ReplaceAll swaps a table's contents for rows, keeping the delivered order.
// Rows without a primary key are dropped.
func (m *Mirror) ReplaceAll(table models.Table, rows []models.Row) {
	c := newCollection()
	for _, row := range rows {
		id := row.ID()
		if id == "" {
			log.Printf("⚠️  Dropping %s row without id during resync", table)
			continue
		}
		if _, dup := c.rows[id]; !dup {
			c.order = append(c.order, id)
		}
		c.rows[id] = row.Clone()
	}

	m.mu.Lock()
	m.tables[table] = c
	m.mu.Unlock()
}

// ApplyEvent merges one change event and returns the record as it was before
// the event (nil if absent) together with the outcome.
func (m *Mirror) ApplyEvent(ev models.ChangeEvent) (models.Row, Outcome) {
	id := ev.Row.ID()
	if id == "" || !ev.Op.Valid() {
		log.Printf("⚠️  Dropping malformed %s event (op=%q id=%q)", ev.Table, ev.Op, id)
		return nil, Ignored
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.coll(ev.Table)
	existing, found := c.rows[id]
	prev := existing.Clone()

	switch ev.Op {
	case models.OpInsert:
		if !found {
			c.add(ev.Table, id, ev.Row.Clone())
			return nil, Inserted
		}
		if ev.Initial {
			// a replayed row is the remote state and replaces whatever the
			// full fetch left behind
			if reflect.DeepEqual(map[string]interface{}(existing), map[string]interface{}(ev.Row)) {
				return prev, Duplicate
			}
			c.rows[id] = ev.Row.Clone()
			return prev, Updated
		}
		filled := false
		for k, v := range ev.Row {
			if !existing.Has(k) && v != nil {
				existing[k] = v
				filled = true
			}
		}
		if filled {
			return prev, Merged
		}
		return prev, Duplicate

	case models.OpUpdate:
		if !found {
			c.add(ev.Table, id, ev.Row.Clone())
			return nil, Upserted
		}
		for k, v := range ev.Row {
			existing[k] = v
		}
		return prev, Updated

	default:
		if !found {
			return nil, Ignored
		}
		c.remove(id)
		return prev, Removed
	}
}

// Prune drops every record of table whose key is not in keep and returns the
// dropped records. It closes a replay, removing rows deleted remotely since the
// full fetch.
func (m *Mirror) Prune(table models.Table, keep []string) []models.Row {
	set := make(map[string]bool, len(keep))
	for _, id := range keep {
		set[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.tables[table]
	if !ok {
		return nil
	}
	var dropped []models.Row
	order := c.order[:0]
	for _, id := range c.order {
		if set[id] {
			order = append(order, id)
			continue
		}
		dropped = append(dropped, c.rows[id])
		delete(c.rows, id)
	}
	c.order = order
	return dropped
}

// add places a new record according to the table ordering: newest-first
// tables grow at the front, the rest at the back.
func (c *collection) add(table models.Table, id string, row models.Row) {
	c.rows[id] = row
	if table.Ordering() == models.NewestFirst {
		c.order = append([]string{id}, c.order...)
		return
	}
	c.order = append(c.order, id)
}

func (c *collection) remove(id string) {
	delete(c.rows, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Get returns a copy of one record.
func (m *Mirror) Get(table models.Table, id string) (models.Row, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.tables[table]
	if !ok {
		return nil, false
	}
	row, ok := c.rows[id]
	if !ok {
		return nil, false
	}
	return row.Clone(), true
}

// Rows returns copies of every record of a table in mirror order.
func (m *Mirror) Rows(table models.Table) []models.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.tables[table]
	if !ok {
		return nil
	}
	rows := make([]models.Row, 0, len(c.order))
	for _, id := range c.order {
		rows = append(rows, c.rows[id].Clone())
	}
	return rows
}

func (m *Mirror) Len(table models.Table) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if c, ok := m.tables[table]; ok {
		return len(c.order)
	}
	return 0
}

// Put stores row wholesale, replacing any record with the same key in place.
// Used for optimistic writes and their rollback.
func (m *Mirror) Put(table models.Table, row models.Row) {
	id := row.ID()
	if id == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.coll(table)
	if _, found := c.rows[id]; found {
		c.rows[id] = row.Clone()
		return
	}
	c.add(table, id, row.Clone())
}

// Patch merges fields into an existing record and returns its previous state.
func (m *Mirror) Patch(table models.Table, id string, fields models.Row) (models.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.coll(table)
	existing, found := c.rows[id]
	if !found {
		return nil, false
	}
	prev := existing.Clone()
	for k, v := range fields {
		if k != "id" {
			existing[k] = v
		}
	}
	return prev, true
}

// Removal remembers a removed record and its position so it can be restored.
type Removal struct {
	Row   models.Row
	Index int
}

// Remove deletes a record and returns what is needed to restore it.
func (m *Mirror) Remove(table models.Table, id string) (Removal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.coll(table)
	row, found := c.rows[id]
	if !found {
		return Removal{}, false
	}
	index := c.indexOf(id)
	c.remove(id)
	return Removal{Row: row, Index: index}, true
}

// Restore puts a removed record back at its former position. If the record
// reappeared in the meantime (for example through the change feed) it is left alone.
func (m *Mirror) Restore(table models.Table, r Removal) {
	id := r.Row.ID()
	if id == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.coll(table)
	if _, found := c.rows[id]; found {
		return
	}
	c.rows[id] = r.Row.Clone()
	i := r.Index
	if i < 0 || i > len(c.order) {
		i = len(c.order)
	}
	c.order = append(c.order, "")
	copy(c.order[i+1:], c.order[i:])
	c.order[i] = id
}

func (c *collection) indexOf(id string) int {
	for i, oid := range c.order {
		if oid == id {
			return i
		}
	}
	return -1
}
