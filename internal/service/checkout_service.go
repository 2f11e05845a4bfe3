package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cassiomorais/checkout/internal/application/checkout"
	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/session"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Reap reasons.
const (
	ReapIdle     = "idle"
	ReapTerminal = "terminal"
)

// CompletionPublisher announces completed checkouts to downstream consumers.
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, transactionID string, data map[string]any) error
}

// CheckoutConfig tunes the session registry and the engines it opens.
type CheckoutConfig struct {
	Engine          checkout.Config
	SessionTTL      time.Duration
	TerminalTTL     time.Duration
	JanitorInterval time.Duration
}

// Session is one open checkout engine owned by an authenticated caller.
type Session struct {
	ID        string
	Owner     string
	Engine    *checkout.Engine
	CreatedAt time.Time

	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns the time the session was last accessed.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// CheckoutService keeps the engines opened by the HTTP surface and
// reaps the ones nobody looks at anymore.
type CheckoutService struct {
	cfg       CheckoutConfig
	backend   checkout.Backend
	journal   transaction.EventRepository
	locker    checkout.Locker
	publisher CompletionPublisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.RWMutex
	sessions      map[string]*Session
	byTransaction map[string]string
	closed        bool
}

// NewCheckoutService creates the session registry. journal, locker and
// publisher are optional.
func NewCheckoutService(
	cfg CheckoutConfig,
	backend checkout.Backend,
	journal transaction.EventRepository,
	locker checkout.Locker,
	publisher CompletionPublisher,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *CheckoutService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CheckoutService{
		cfg:           cfg,
		backend:       backend,
		journal:       journal,
		locker:        locker,
		publisher:     publisher,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		sessions:      make(map[string]*Session),
		byTransaction: make(map[string]string),
	}
}

func sessionKey(owner, transactionID string) string {
	return owner + "\x00" + transactionID
}

// Open starts an engine for p. Reopening a transaction the same owner
// already has open returns the existing session.
func (s *CheckoutService) Open(ctx context.Context, p checkout.Payload, auth session.AuthContext, owner string) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatedAt: s.now(),
	}
	sess.touch(sess.CreatedAt)

	opts := []checkout.Option{
		checkout.WithLogger(s.logger.With().Str("session_id", sess.ID).Logger()),
		checkout.WithMetrics(s.metrics),
		checkout.WithCompletion(func(payload map[string]any) {
			s.onCompleted(sess, payload)
		}),
	}
	if s.journal != nil {
		opts = append(opts, checkout.WithJournal(s.journal))
	}
	if s.locker != nil {
		opts = append(opts, checkout.WithLocker(s.locker))
	}

	engine, err := checkout.New(p, auth, s.backend, s.cfg.Engine, opts...)
	if err != nil {
		return nil, err
	}
	sess.Engine = engine

	key := sessionKey(owner, engine.TransactionID())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domainErrors.ErrSessionClosed
	}
	if id, ok := s.byTransaction[key]; ok {
		existing := s.sessions[id]
		s.mu.Unlock()
		existing.touch(s.now())
		return existing, nil
	}
	s.sessions[sess.ID] = sess
	s.byTransaction[key] = sess.ID
	s.mu.Unlock()

	engine.Start(s.ctx)
	s.metrics.ActiveSessions.Inc()

	s.logger.Info().
		Str("session_id", sess.ID).
		Str("transaction_id", engine.TransactionID()).
		Str("owner", owner).
		Msg("checkout session opened")

	return sess, nil
}

// Get returns the owner's session. Sessions of other owners are reported as not found.
func (s *CheckoutService) Get(id, owner string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.Owner != owner {
		return nil, domainErrors.ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

// List returns the owner's open sessions.
func (s *CheckoutService) List(owner string) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Session
	for _, sess := range s.sessions {
		if sess.Owner == owner {
			out = append(out, sess)
		}
	}
	return out
}

// Close stops the owner's session and forgets it.
func (s *CheckoutService) Close(id, owner string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok || sess.Owner != owner {
		s.mu.Unlock()
		return domainErrors.ErrSessionNotFound
	}
	s.removeLocked(sess)
	s.mu.Unlock()

	sess.Engine.Close()
	s.logger.Info().Str("session_id", id).Msg("checkout session closed")
	return nil
}

func (s *CheckoutService) removeLocked(sess *Session) {
	delete(s.sessions, sess.ID)
	delete(s.byTransaction, sessionKey(sess.Owner, sess.Engine.TransactionID()))
	s.metrics.ActiveSessions.Dec()
}

// Reap closes sessions idle longer than the session TTL and sessions that
// have been terminal longer than the terminal TTL. It returns how many it closed.
func (s *CheckoutService) Reap() int {
	now := s.now()

	type reaped struct {
		sess   *Session
		reason string
	}
	var victims []reaped

	s.mu.Lock()
	for _, sess := range s.sessions {
		reason := ""
		switch {
		case s.cfg.TerminalTTL > 0 && sess.Engine.Status().IsTerminal() &&
			now.Sub(sess.Engine.UpdatedAt()) > s.cfg.TerminalTTL:
			reason = ReapTerminal
		case s.cfg.SessionTTL > 0 && now.Sub(sess.LastSeen()) > s.cfg.SessionTTL:
			reason = ReapIdle
		}
		if reason != "" {
			s.removeLocked(sess)
			victims = append(victims, reaped{sess: sess, reason: reason})
		}
	}
	s.mu.Unlock()

	for _, v := range victims {
		v.sess.Engine.Close()
		s.metrics.SessionsReaped.WithLabelValues(v.reason).Inc()
		s.logger.Info().
			Str("session_id", v.sess.ID).
			Str("transaction_id", v.sess.Engine.TransactionID()).
			Str("reason", v.reason).
			Msg("checkout session reaped")
	}
	return len(victims)
}

// RunJanitor reaps sessions every janitor interval until ctx is done.
func (s *CheckoutService) RunJanitor(ctx context.Context) error {
	interval := s.cfg.JanitorInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Reap()
		}
	}
}

// Shutdown closes every session and waits for pending completion events.
func (s *CheckoutService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
		s.removeLocked(sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Engine.Close()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onCompleted publishes the completion of sess's transaction in the background.
func (s *CheckoutService) onCompleted(sess *Session, payload map[string]any) {
	if s.publisher == nil {
		s.metrics.CompletionEvents.WithLabelValues("skipped").Inc()
		return
	}

	// Add must not race the Wait in Shutdown, which runs after closed is set.
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		s.metrics.CompletionEvents.WithLabelValues("skipped").Inc()
		return
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.wg.Done()

		snap := sess.Engine.Snapshot()
		data := map[string]any{
			"transaction_id": snap.TransactionID,
			"reference":      snap.Reference,
			"channel":        string(snap.ActiveChannel),
			"session_id":     sess.ID,
			"payload":        payload,
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), publishTimeout)
		defer cancel()

		if err := s.publisher.PublishCompletion(ctx, snap.TransactionID, data); err != nil {
			s.metrics.CompletionEvents.WithLabelValues("failed").Inc()
			s.logger.Error().Err(err).
				Str("session_id", sess.ID).
				Str("transaction_id", snap.TransactionID).
				Msg("failed to publish completion event")
			return
		}
		s.metrics.CompletionEvents.WithLabelValues("published").Inc()
	}()
}
