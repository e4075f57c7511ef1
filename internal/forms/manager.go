// Package forms keeps in-flight intake forms alive between requests.
// Each open form is a server-side session with its own draft state,
// submitter and expiry deadline.
package forms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scade330/clinic2-portal/internal/record"
)

var ErrSessionNotFound = errors.New("form session not found")

// RecordFetcher loads a record when a form opens in edit mode.
type RecordFetcher interface {
	Get(ctx context.Context, id string) (record.PatientRecord, error)
}

// Session is one open intake form. All access goes through its mutex;
// a form is only ever edited by one request at a time.
type Session struct {
	ID        string
	Form      *record.Form
	Submitter *record.Submitter

	mu       sync.Mutex
	deadline time.Time
}

// Do runs fn while holding the session lock and pushes the expiry
// deadline forward. Every handler touching the form goes through here.
func (s *Session) Do(ttl time.Duration, fn func(f *record.Form, sub *record.Submitter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = time.Now().Add(ttl)
	return fn(s.Form, s.Submitter)
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.deadline)
}

// Manager owns the session table and its expiry sweep.
type Manager struct {
	records RecordFetcher
	writer  record.RecordWriter
	logger  *zap.Logger
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(records RecordFetcher, writer record.RecordWriter, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{
		records:  records,
		writer:   writer,
		logger:   logger,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Open starts a new form session. With a recordID the form hydrates
// from the upstream record and submits as an update; without one it
// starts blank and submits as a create.
func (m *Manager) Open(ctx context.Context, recordID string) (*Session, error) {
	form := record.NewForm()

	if recordID != "" {
		rec, err := m.records.Get(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("open form for record %s: %w", recordID, err)
		}
		form.Hydrate(rec)
	}

	session := &Session{
		ID:        uuid.NewString(),
		Form:      form,
		Submitter: record.NewSubmitter(m.writer, m.logger),
		deadline:  time.Now().Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	return session, nil
}

// Get returns the live session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.expired(time.Now()) {
		m.Discard(id)
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Do locks the session for id and runs fn against its form.
func (m *Manager) Do(id string, fn func(f *record.Form, sub *record.Submitter) error) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}
	return session.Do(m.ttl, fn)
}

// Discard drops a session. Dropping an unknown ID is a no-op.
func (m *Manager) Discard(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops every expired session and reports how many were dropped.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, session := range m.sessions {
		if session.expired(now) {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

// RunJanitor sweeps expired sessions on the interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("form session janitor stopping")
			return
		case <-ticker.C:
			if dropped := m.Sweep(time.Now()); dropped > 0 {
				m.logger.Info("dropped expired form sessions", zap.Int("count", dropped))
			}
		}
	}
}
