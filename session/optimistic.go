package session

import (
	"context"
	"log"

	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
)

// Optimistic writes change the mirror first and undo that change if the store
// rejects the write. The store's own echo later merges as a no-op.

func (s *Session) insertOptimistic(ctx context.Context, table models.Table, row models.Row) error {
	s.mirror.Put(table, row)
	if _, err := s.store.Mutate(ctx, table, db.Mutation{Op: models.OpInsert, Payload: row}); err != nil {
		s.mirror.Remove(table, row.ID())
		log.Printf("❌ Insert into %s rolled back: %v", table, err)
		return err
	}
	return nil
}

func (s *Session) patchOptimistic(ctx context.Context, table models.Table, id string, fields models.Row) error {
	prev, ok := s.mirror.Patch(table, id, fields)
	if !ok {
		return ErrNotFound
	}
	if _, err := s.store.Mutate(ctx, table, db.Mutation{Op: models.OpUpdate, ID: id, Payload: fields}); err != nil {
		s.mirror.Put(table, prev)
		log.Printf("❌ Update of %s %s rolled back: %v", table, id, err)
		return err
	}
	return nil
}

func (s *Session) removeOptimistic(ctx context.Context, table models.Table, id string) error {
	removal, ok := s.mirror.Remove(table, id)
	if !ok {
		return ErrNotFound
	}
	if _, err := s.store.Mutate(ctx, table, db.Mutation{Op: models.OpDelete, ID: id}); err != nil {
		s.mirror.Restore(table, removal)
		log.Printf("❌ Delete of %s %s rolled back: %v", table, id, err)
		return err
	}
	return nil
}

// write performs a non-optimistic mutation; the mirror follows through the feed.
func (s *Session) write(ctx context.Context, table models.Table, m db.Mutation) (models.Row, error) {
	row, err := s.store.Mutate(ctx, table, m)
	if err != nil {
		log.Printf("❌ %s on %s failed: %v", m.Op, table, err)
		return nil, err
	}
	return row, nil
}
