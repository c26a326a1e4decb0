package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/analysis"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/robfig/cron/v3"
)

// Manager owns every live session of the process.
type Manager struct {
	store    db.Store
	blobs    db.BlobStore
	analyzer analysis.Analyzer
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*Session
	cron     *cron.Cron
}

func NewManager(store db.Store, blobs db.BlobStore, analyzer analysis.Analyzer, opts Options) *Manager {
	if analyzer == nil {
		analyzer = analysis.Disabled{}
	}
	def := DefaultOptions()
	if opts.ToastTTL <= 0 {
		opts.ToastTTL = def.ToastTTL
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = def.AITimeout
	}
	return &Manager{
		store:    store,
		blobs:    blobs,
		analyzer: analyzer,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Start opens a session for user: full fetch of every synced table, then one
// change-feed subscription. Once the feed is open the new session replaces
// every other session of the same user, including one started concurrently.
func (m *Manager) Start(ctx context.Context, user models.User) (*Session, error) {
	s := newSession(uuid.NewString(), user, m.store, m.blobs, m.analyzer, m.opts)
	for _, table := range models.SyncedTables {
		s.mirror.ReplaceAll(table, m.store.FetchAll(ctx, table))
	}

	// the feed outlives the request that opened it
	sub, err := m.store.Subscribe(context.WithoutCancel(ctx), models.SyncedTables, s.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to open change feed: %w", err)
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	m.mu.Lock()
	var replaced []*Session
	for id, old := range m.sessions {
		if old.User().ID == user.ID {
			replaced = append(replaced, old)
			delete(m.sessions, id)
		}
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	for _, old := range replaced {
		old.close()
	}
	if len(replaced) > 0 {
		log.Printf("Replaced %d existing session(s) for %s", len(replaced), user.Username)
	}

	log.Printf("✅ Session started for %s (role: %s)", user.Username, user.Role)
	return s, nil
}

// Get returns a live session and records activity on it.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.touch()
	return s, true
}

// End tears down one session. It reports whether the session existed.
func (m *Manager) End(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.close()
	log.Printf("Session ended for %s", s.User().Username)
	return true
}

// EndUser tears down every session of a user and returns how many ended.
func (m *Manager) EndUser(userID string) int {
	m.mu.Lock()
	var victims []*Session
	for id, s := range m.sessions {
		if s.User().ID == userID {
			victims = append(victims, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range victims {
		s.close()
	}
	return len(victims)
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep ends sessions idle for longer than the configured timeout.
func (m *Manager) Sweep(now time.Time) int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.opts.IdleTimeout {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.close()
		log.Printf("Session expired for %s", s.User().Username)
	}
	return len(idle)
}

// StartSweeper schedules Sweep every minute.
func (m *Manager) StartSweeper() error {
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() { m.Sweep(time.Now()) }); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	return nil
}

// Shutdown stops the sweeper and ends every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	for _, s := range all {
		s.close()
	}
}
