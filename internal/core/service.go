package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 2 * time.Hour

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Parser      TableParser
	Creator     BatchCreator
	MaxRows     int
	ReportLimit int
	PreviewRows int
	SessionTTL  time.Duration
	Logger      *slog.Logger
}

// Service owns the import sessions of one server process.
type Service struct {
	opts      ServiceOptions
	validator *BatchValidator

	mu       sync.RWMutex
	sessions map[string]*ImportSession
}

// NewService creates a new Service instance.
func NewService(opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	return &Service{
		opts:      opts,
		validator: NewBatchValidator(opts.MaxRows),
		sessions:  make(map[string]*ImportSession),
	}
}

// Validator returns the shared batch validator.
func (s *Service) Validator() *BatchValidator {
	return s.validator
}

// ListKinds returns every registered import kind.
func (s *Service) ListKinds() []*TargetSchema {
	return All()
}

// StartSession creates an idle session for kind.
func (s *Service) StartSession(ctx context.Context, kind string) (*ImportSession, error) {
	schema, err := Lookup(kind)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	logger := s.opts.Logger
	if ip := IPAddressFromContext(ctx); ip != "" {
		logger = logger.With("client_ip", ip)
	}
	sess := NewImportSession(id, schema, SessionOptions{
		Parser:      s.opts.Parser,
		Creator:     s.opts.Creator,
		Validator:   s.validator,
		Logger:      logger,
		ReportLimit: s.opts.ReportLimit,
		PreviewRows: s.opts.PreviewRows,
	})

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	logger.Info("import session started", "session_id", id, "kind", kind)
	return sess, nil
}

// Session returns a live session by ID.
func (s *Service) Session(id string) (*ImportSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// CloseSession closes and forgets a session.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Close()
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ExpireIdle closes sessions untouched since before cutoff. Sessions that
// are submitting are never expired. Returns the number removed.
func (s *Service) ExpireIdle(cutoff time.Time) int {
	s.mu.Lock()
	var expired []*ImportSession
	for id, sess := range s.sessions {
		if sess.State() == StateSubmitting || !sess.UpdatedAt().Before(cutoff) {
			continue
		}
		expired = append(expired, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
	return len(expired)
}

// Shutdown closes every session.
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*ImportSession)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
