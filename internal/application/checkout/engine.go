package checkout

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/gateway"
	"github.com/cassiomorais/checkout/internal/domain/instrument"
	"github.com/cassiomorais/checkout/internal/domain/session"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Transition sources.
const (
	SourceCountdown       = "countdown"
	SourcePoller          = "poller"
	SourceWidgetSuccess   = "widget_success"
	SourceWidgetClose     = "widget_close"
	SourceRetry           = "retry"
	SourceBankTransfer    = "bank_transfer"
	SourceSavedInstrument = "saved_instrument"
	SourceManual          = "manual"
)

const journalTimeout = 5 * time.Second

// Config tunes the engine timers and gateway defaults.
type Config struct {
	CountdownTick          time.Duration
	PollInterval           time.Duration
	RetryAttempts          uint
	RetryDelay             time.Duration
	CardGateway            string
	SavedInstrumentGateway string
	DefaultPublicKey       string
}

// DefaultConfig returns the production timer settings.
func DefaultConfig() Config {
	return Config{
		CountdownTick:          time.Second,
		PollInterval:           10 * time.Second,
		RetryAttempts:          6,
		RetryDelay:             5 * time.Second,
		CardGateway:            "Paystack",
		SavedInstrumentGateway: "saved_card",
	}
}

// Payload is the transaction document a host opens an engine with.
type Payload struct {
	transaction.Payload
	Options    []gateway.RawOption `json:"payment_options"`
	SavedCards []instrument.Raw    `json:"saved_cards"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics the engine reports to.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithJournal records every effective transition in repo.
func WithJournal(repo transaction.EventRepository) Option {
	return func(e *Engine) { e.journal = repo }
}

// WithLocker adds a cross-replica confirmation lock.
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithCompletion registers the host completion callback.
func WithCompletion(fn transaction.CompletionFunc) Option {
	return func(e *Engine) { e.onComplete = fn }
}

// WithObserver registers an additional transition observer.
func WithObserver(o transaction.Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine drives the payment step of one transaction.
type Engine struct {
	cfg     Config
	backend Backend
	auth    session.AuthContext
	logger  zerolog.Logger
	metrics *observability.Metrics
	journal transaction.EventRepository
	locker  Locker
	now     func() time.Time

	onComplete transaction.CompletionFunc
	observers  []transaction.Observer

	state       *transaction.State
	registry    *gateway.Registry
	instruments *instrument.Collection

	inFlight atomic.Bool
	polls    singleflight.Group
	retryMu  sync.Mutex

	mu        sync.Mutex
	started   bool
	closed    bool
	remaining *time.Duration
	accounts  []map[string]any
	retry     *retryLoop

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New builds an engine for the transaction in p. The engine does nothing until Start.
func New(p Payload, auth session.AuthContext, backend Backend, cfg Config, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, domainErrors.ErrBackendUnavailable
	}
	txn, err := transaction.New(p.Payload)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg.withDefaults(),
		backend: backend,
		auth:    auth,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observability.NewMetrics("checkout", prometheus.NewRegistry())
	}
	e.logger = observability.WithTransaction(e.logger, txn.ID)

	e.instruments = instrument.NewCollection(instrument.FromRawList(p.SavedCards))
	e.registry = gateway.NewRegistry(p.Options, func() bool { return e.instruments.Len() > 0 })
	e.state = transaction.NewState(txn, e.onComplete)
	e.state.Observe(e.recordTransition)
	for _, o := range e.observers {
		e.state.Observe(o)
	}

	return e, nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CountdownTick <= 0 {
		c.CountdownTick = d.CountdownTick
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.CardGateway == "" {
		c.CardGateway = d.CardGateway
	}
	if c.SavedInstrumentGateway == "" {
		c.SavedInstrumentGateway = d.SavedInstrumentGateway
	}
	return c
}

// Start selects the default channel and launches the countdown and poller.
// Calling Start more than once has no effect.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true

	e.registry.SelectDefault()

	e.ctx, e.cancel = context.WithCancel(ctx)
	e.group, e.ctx = errgroup.WithContext(e.ctx)

	txn := e.state.Transaction()
	if txn.ExpiresAt != nil && !e.state.IsTerminal() {
		remaining := max(txn.ExpiresAt.Sub(e.now()), 0)
		e.remaining = &remaining
		e.group.Go(func() error { return e.runCountdown(e.ctx, *txn.ExpiresAt) })
	}
	if !e.state.IsTerminal() {
		e.group.Go(func() error { return e.runPoller(e.ctx) })
	}

	e.logger.Info().
		Str("status", string(e.state.Status())).
		Int("channels", len(e.registry.AvailableChannels())).
		Msg("checkout engine started")
}

// Close stops every timer and loop and waits for them to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	cancel, group := e.cancel, e.group
	loop := e.retry
	e.mu.Unlock()

	if loop != nil {
		loop.stop()
	}
	if cancel != nil {
		cancel()
	}
	if group != nil {
		_ = group.Wait()
	}
	e.logger.Debug().Msg("checkout engine closed")
}

// Active reports whether the engine has been started and not closed.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started && !e.closed
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// TransactionID returns the transaction's resolved identifier.
func (e *Engine) TransactionID() string {
	return e.state.Transaction().ID
}

// Status returns the current transaction status.
func (e *Engine) Status() transaction.Status {
	return e.state.Status()
}

// UpdatedAt returns the time of the last effective transition.
func (e *Engine) UpdatedAt() time.Time {
	return e.state.UpdatedAt()
}

// Done is closed once the transaction reaches a terminal status.
func (e *Engine) Done() <-chan struct{} {
	return e.state.Done()
}

// SelectChannel switches the active payment channel.
func (e *Engine) SelectChannel(ch gateway.Channel) error {
	if e.state.IsTerminal() {
		return domainErrors.ErrTransactionTerminal
	}
	return e.registry.SelectChannel(ch)
}

// SelectOption switches the gateway instance within the active channel.
func (e *Engine) SelectOption(id string) error {
	if e.state.IsTerminal() {
		return domainErrors.ErrTransactionTerminal
	}
	return e.registry.SelectOption(id)
}

func (e *Engine) setRemaining(d time.Duration) {
	e.mu.Lock()
	e.remaining = &d
	e.mu.Unlock()
}

func (e *Engine) setAccounts(accounts []map[string]any) {
	if len(accounts) == 0 {
		return
	}
	e.mu.Lock()
	e.accounts = accounts
	e.mu.Unlock()
}

// complete moves the transaction to completed and refreshes saved instruments.
func (e *Engine) complete(ctx context.Context, source string, payload map[string]any) bool {
	if !e.state.Transition(transaction.StatusCompleted, source, payload) {
		return false
	}
	if _, err := e.ListInstruments(ctx); err != nil {
		e.logger.Debug().Err(err).Msg("refresh saved instruments after completion")
	}
	return true
}

// recordTransition journals and counts each effective transition.
func (e *Engine) recordTransition(t transaction.Transition) {
	e.metrics.Transitions.WithLabelValues(string(t.To), t.Source).Inc()
	e.logger.Info().
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("source", t.Source).
		Msg("transaction status changed")

	if e.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := e.journal.AddEvent(ctx, transaction.NewEvent(t)); err != nil {
		e.logger.Warn().Err(err).Msg("failed to journal transition")
	}
}
