// Package session holds everything one logged-in user owns while connected:
// the local mirror, the visibility engine, the change-feed subscription and
// the transient notification list.
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mmonsif/aeroconnect/analysis"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/mirror"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
)

var (
	// ErrNotFound is returned when an action targets a record the mirror does not hold.
	ErrNotFound = errors.New("record not found")
	// ErrInvalid is returned for malformed action input.
	ErrInvalid = errors.New("invalid input")
	// ErrBroadcastAccountMissing explains a broadcast rejected by the recipient foreign key.
	ErrBroadcastAccountMissing = errors.New("broadcast account is missing, run the seed command to create it")
)

// Options tune session behaviour.
type Options struct {
	ToastTTL    time.Duration
	AITimeout   time.Duration
	IdleTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		ToastTTL:    8 * time.Second,
		AITimeout:   20 * time.Second,
		IdleTimeout: 30 * time.Minute,
	}
}

const listenerBuffer = 16

// Session is the per-user context object. Handlers never reach the store
// except through its actions.
type Session struct {
	ID string

	store    db.Store
	blobs    db.BlobStore
	analyzer analysis.Analyzer
	opts     Options
	mirror   *mirror.Mirror
	dir      *directory

	mu            sync.Mutex
	user          models.User
	engine        *visibility.Engine
	sub           *db.Subscription
	notifications []models.Notification
	toast         *models.Notification
	toastTimer    *time.Timer
	listeners     map[int]chan models.Notification
	nextListener  int
	ownReports    map[string]bool
	lastSeen      time.Time
	seq           uint64
	closed        bool
}

func newSession(id string, user models.User, store db.Store, blobs db.BlobStore, analyzer analysis.Analyzer, opts Options) *Session {
	m := mirror.New()
	dir := &directory{mirror: m}
	return &Session{
		ID:         id,
		store:      store,
		blobs:      blobs,
		analyzer:   analyzer,
		opts:       opts,
		mirror:     m,
		dir:        dir,
		user:       user,
		engine:     visibility.New(user, dir),
		listeners:  make(map[int]chan models.Notification),
		ownReports: make(map[string]bool),
		lastSeen:   time.Now(),
	}
}

// User returns the session user as last seen through the change feed.
func (s *Session) User() models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Engine() *visibility.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Session) actor() (models.User, *visibility.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.engine
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// handle is the single pipeline every change event flows through:
// merge into the mirror, evaluate the notification rule, enqueue.
func (s *Session) handle(ev models.ChangeEvent) {
	if ev.Op == models.OpResync {
		if dropped := s.mirror.Prune(ev.Table, ev.Keys); len(dropped) > 0 {
			log.Printf("⚠️  Dropped %d stale %s row(s) after feed replay", len(dropped), ev.Table)
		}
		return
	}

	prev, outcome := s.mirror.ApplyEvent(ev)
	switch outcome {
	case mirror.Ignored, mirror.Duplicate, mirror.Merged:
		return
	}

	if ev.Table == models.TableUsers {
		s.refreshSelf(ev)
	}

	s.mu.Lock()
	engine := s.engine
	own := ev.Table == models.TableSafetyReports && s.ownReports[ev.Row.ID()]
	s.mu.Unlock()
	if own {
		return
	}

	n, ok := engine.Evaluate(ev, prev, s.mirror)
	if !ok {
		return
	}
	s.notify(n)
}

// refreshSelf rebuilds the engine when the session user's own row changes.
func (s *Session) refreshSelf(ev models.ChangeEvent) {
	if ev.Op == models.OpDelete {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Row.ID() != s.user.ID {
		return
	}
	row, ok := s.mirror.Get(models.TableUsers, s.user.ID)
	if !ok {
		return
	}
	s.user = db.DecodeUser(row)
	s.engine = visibility.New(s.user, s.dir)
}

func (s *Session) notify(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.seq++
	n.ID = fmt.Sprintf("n-%d-%d", time.Now().UnixNano(), s.seq)
	s.notifications = append([]models.Notification{n}, s.notifications...)
	s.setToastLocked(n)

	for _, ch := range s.listeners {
		select {
		case ch <- n:
		default:
			log.Printf("⚠️  Dropping notification %s for slow listener of %s", n.ID, s.user.Username)
		}
	}
}

func (s *Session) setToastLocked(n models.Notification) {
	if s.toastTimer != nil {
		s.toastTimer.Stop()
	}
	t := n
	s.toast = &t
	s.toastTimer = time.AfterFunc(s.opts.ToastTTL, func() { s.expireToast(n.ID) })
}

func (s *Session) expireToast(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toast != nil && s.toast.ID == id {
		s.toast = nil
	}
}

// Toast returns the notification currently shown as a toast, if any.
func (s *Session) Toast() (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toast == nil {
		return models.Notification{}, false
	}
	return *s.toast, true
}

func (s *Session) DismissToast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toast = nil
}

// Notifications returns the session's notifications, newest first.
func (s *Session) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.notifications...)
}

func (s *Session) UnreadNotifications() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, note := range s.notifications {
		if !note.IsRead {
			n++
		}
	}
	return n
}

// MarkNotificationRead marks one notification read, or all of them when id is empty.
func (s *Session) MarkNotificationRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for i := range s.notifications {
		if id == "" || s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
			found = true
		}
	}
	if !found && id != "" {
		return ErrNotFound
	}
	return nil
}

func (s *Session) DismissNotification(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			if s.toast != nil && s.toast.ID == id {
				s.toast = nil
			}
			return nil
		}
	}
	return ErrNotFound
}

// Listen streams new notifications until cancel is called or the session ends.
// A listener that falls behind loses notifications rather than blocking the feed.
func (s *Session) Listen() (<-chan models.Notification, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan models.Notification, listenerBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.listeners[id]; ok {
			delete(s.listeners, id)
			close(c)
		}
	}
}

// close tears the session down. It must not be called from a feed handler.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	if s.toastTimer != nil {
		s.toastTimer.Stop()
	}
	s.toast = nil
	for id, ch := range s.listeners {
		close(ch)
		delete(s.listeners, id)
	}
	s.mu.Unlock()

	sub.Close()
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
