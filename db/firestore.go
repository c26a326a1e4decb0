package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/models"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore wraps the Firestore client. Each logical table is a top-level collection
// and every document carries its own id in the "id" field.
type FirestoreStore struct {
	app    *firebase.App
	client *firestore.Client
}

// NewFirestoreStore initializes a new Firestore client
func NewFirestoreStore(ctx context.Context, projectID, credentialsPath, storageBucket string) (*FirestoreStore, error) {
	opt := option.WithCredentialsFile(credentialsPath)

	config := &firebase.Config{ProjectID: projectID, StorageBucket: storageBucket}
	app, err := firebase.NewApp(ctx, config, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	log.Printf("✅ Connected to Firestore project: %s", projectID)

	return &FirestoreStore{
		app:    app,
		client: client,
	}, nil
}

// App exposes the Firebase app so other services (storage) share its credentials.
func (s *FirestoreStore) App() *firebase.App {
	return s.app
}

// Close closes the Firestore client
func (s *FirestoreStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *FirestoreStore) Configured() bool {
	return s != nil && s.client != nil
}

func (s *FirestoreStore) collection(table models.Table) *firestore.CollectionRef {
	return s.client.Collection(string(table))
}

func docRow(doc *firestore.DocumentSnapshot) models.Row {
	row := models.Row(doc.Data())
	if row == nil {
		row = models.Row{}
	}
	row["id"] = doc.Ref.ID
	return row
}

// FetchAll retrieves every document of a table, sorted by created_at.
func (s *FirestoreStore) FetchAll(ctx context.Context, table models.Table) []models.Row {
	if !s.Configured() {
		log.Printf("⚠️  Fetch %s skipped: %v", table, ErrNotConfigured)
		return nil
	}

	iter := s.collection(table).Documents(ctx)
	defer iter.Stop()

	var rows []models.Row
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("⚠️  Fetch %s failed: %v", table, err)
			return nil
		}
		rows = append(rows, docRow(doc))
	}

	sortRows(table, rows)
	return rows
}

func (s *FirestoreStore) query(table models.Table, match models.Row) firestore.Query {
	q := s.collection(table).Query
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q = q.Where(k, "==", match[k])
	}
	return q
}

// Query retrieves documents whose fields equal every value in match.
func (s *FirestoreStore) Query(ctx context.Context, table models.Table, match models.Row) ([]models.Row, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	iter := s.query(table, match).Documents(ctx)
	defer iter.Stop()

	var rows []models.Row
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", table, mapError(err))
		}
		rows = append(rows, docRow(doc))
	}

	sortRows(table, rows)
	return rows, nil
}

// Mutate applies an insert, update or delete inside a transaction.
func (s *FirestoreStore) Mutate(ctx context.Context, table models.Table, m Mutation) (models.Row, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	if err := m.validate(); err != nil {
		return nil, err
	}

	switch m.Op {
	case models.OpInsert:
		return s.insert(ctx, table, m.Payload)
	case models.OpUpdate:
		return nil, s.update(ctx, table, m)
	default:
		return nil, s.delete(ctx, table, m)
	}
}

func (s *FirestoreStore) insert(ctx context.Context, table models.Table, payload models.Row) (models.Row, error) {
	row := payload.Clone()
	id := row.ID()
	if id == "" {
		id = uuid.NewString()
		row["id"] = id
	}
	if !row.Has("created_at") {
		row["created_at"] = time.Now().UTC()
	}

	ref := s.collection(table).Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if table == models.TableMessages {
			recipient := row.String("recipient_id")
			if recipient == "" {
				return fmt.Errorf("messages.recipient_id is empty: %w", ErrConstraint)
			}
			if _, err := tx.Get(s.collection(models.TableUsers).Doc(recipient)); err != nil {
				if status.Code(err) == codes.NotFound {
					return fmt.Errorf("messages.recipient_id %q references no user: %w", recipient, ErrConstraint)
				}
				return err
			}
		}
		return tx.Create(ref, map[string]interface{}(row))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", table, mapError(err))
	}
	return row, nil
}

func updatesFor(payload models.Row) []firestore.Update {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: payload[k]})
	}
	return updates
}

func (s *FirestoreStore) targets(ctx context.Context, tx *firestore.Transaction, table models.Table, m Mutation) ([]*firestore.DocumentRef, error) {
	if m.ID != "" {
		ref := s.collection(table).Doc(m.ID)
		if len(m.Match) == 0 {
			return []*firestore.DocumentRef{ref}, nil
		}
		doc, err := tx.Get(ref)
		if err != nil {
			return nil, err
		}
		if !matches(docRow(doc), m.Match) {
			return nil, nil
		}
		return []*firestore.DocumentRef{ref}, nil
	}

	docs, err := tx.Documents(s.query(table, m.Match)).GetAll()
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, len(docs))
	for i, doc := range docs {
		refs[i] = doc.Ref
	}
	return refs, nil
}

func (s *FirestoreStore) update(ctx context.Context, table models.Table, m Mutation) error {
	updates := updatesFor(m.Payload)
	if len(updates) == 0 {
		return nil
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		refs, err := s.targets(ctx, tx, table, m)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if err := tx.Update(ref, updates); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, mapError(err))
	}
	return nil
}

func (s *FirestoreStore) delete(ctx context.Context, table models.Table, m Mutation) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		refs, err := s.targets(ctx, tx, table, m)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		for _, ref := range refs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, mapError(err))
	}
	return nil
}

// Subscribe opens one snapshot listener per table. Changes from the first
// snapshot of each listener are flagged Initial and followed by one OpResync
// event listing every key that snapshot held.
func (s *FirestoreStore) Subscribe(ctx context.Context, tables []models.Table, handler EventHandler) (*Subscription, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, table := range tables {
		wg.Add(1)
		go func(table models.Table) {
			defer wg.Done()
			s.listen(ctx, table, handler)
		}(table)
	}

	return newSubscription(func() {
		cancel()
		wg.Wait()
	}), nil
}

func (s *FirestoreStore) listen(ctx context.Context, table models.Table, handler EventHandler) {
	iter := s.collection(table).Snapshots(ctx)
	defer iter.Stop()

	initial := true
	for {
		snap, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled || err == iterator.Done {
				return
			}
			log.Printf("❌ Change feed for %s stopped: %v", table, err)
			return
		}

		var keys []string
		for _, change := range snap.Changes {
			ev := models.ChangeEvent{Table: table, Row: docRow(change.Doc), Initial: initial}
			switch change.Kind {
			case firestore.DocumentAdded:
				ev.Op = models.OpInsert
				keys = append(keys, ev.Row.ID())
			case firestore.DocumentModified:
				ev.Op = models.OpUpdate
			case firestore.DocumentRemoved:
				ev.Op = models.OpDelete
			}
			handler(ev)
		}
		if initial {
			handler(models.ChangeEvent{Table: table, Op: models.OpResync, Initial: true, Keys: keys})
			initial = false
		}
	}
}

// mapError translates gRPC status codes into store errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConstraint) || errors.Is(err, ErrNotFound) {
		return err
	}
	switch status.Code(err) {
	case codes.AlreadyExists, codes.FailedPrecondition:
		return fmt.Errorf("%v: %w", err, ErrConstraint)
	case codes.NotFound:
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	}
	return err
}
