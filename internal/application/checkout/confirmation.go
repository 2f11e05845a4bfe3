package checkout

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/gateway"
	"github.com/cassiomorais/checkout/pkg/retry"
)

// ConfirmationAttempt parameterizes one confirm call.
type ConfirmationAttempt struct {
	// Gateway overrides the gateway resolved from the active option.
	Gateway   string
	ExtraBody map[string]any
	// SaveInstrument asks the card gateway to store the card for later use.
	SaveInstrument bool
	// Reference is the last-resort confirm identifier.
	Reference string
	Source    string
}

var errNotConfirmed = errors.New("payment not yet confirmed")

// ConfirmIdentifier resolves the identifier confirm calls are addressed to:
// the active option reference, then the transaction reference, then fallback.
func (e *Engine) ConfirmIdentifier(fallback string) string {
	if opt, ok := e.registry.ActiveOption(); ok && opt.Reference != "" {
		return opt.Reference
	}
	if ref := e.state.Transaction().Reference; ref != "" {
		return ref
	}
	return strings.TrimSpace(fallback)
}

func (e *Engine) resolveGateway(override string) string {
	if gw := strings.TrimSpace(override); gw != "" {
		return gw
	}
	if opt, ok := e.registry.ActiveOption(); ok && opt.GatewayName != "" {
		return opt.GatewayName
	}
	return e.state.Transaction().FallbackGateway
}

// cardGateway is the gateway the retry loop confirms against.
func (e *Engine) cardGateway() string {
	if opt, ok := e.registry.ActiveOption(); ok && opt.Channel == gateway.ChannelCard && opt.GatewayName != "" {
		return opt.GatewayName
	}
	return e.cfg.CardGateway
}

// Confirm asks the backend whether the transaction is paid. It never changes the
// transaction status; callers act on the result. Precondition failures return
// before any network call.
func (e *Engine) Confirm(ctx context.Context, attempt ConfirmationAttempt) (bool, error) {
	res, err := e.confirm(ctx, attempt)
	if err != nil {
		return false, err
	}
	return res.Confirmed, nil
}

func (e *Engine) confirm(ctx context.Context, attempt ConfirmationAttempt) (*ConfirmResult, error) {
	source := attempt.Source
	if source == "" {
		source = SourceManual
	}

	if e.state.IsTerminal() {
		return nil, domainErrors.ErrTransactionTerminal
	}
	if e.isClosed() {
		return nil, domainErrors.ErrSessionClosed
	}
	id := e.ConfirmIdentifier(attempt.Reference)
	if id == "" {
		return nil, domainErrors.ErrMissingIdentifier
	}
	if !e.auth.Authenticated() {
		return nil, domainErrors.ErrUnauthenticated
	}
	gw := e.resolveGateway(attempt.Gateway)
	if gw == "" {
		return nil, domainErrors.ErrMissingGateway
	}

	if !e.inFlight.CompareAndSwap(false, true) {
		e.metrics.ConfirmAttempts.WithLabelValues(source, "in_flight").Inc()
		return nil, domainErrors.ErrConfirmationInFlight
	}
	defer e.inFlight.Store(false)

	if source != SourceRetry {
		e.cancelRetry()
	}

	if e.locker != nil {
		unlock, acquired, err := e.locker.TryLock(ctx, "confirm:"+id)
		if err != nil {
			e.metrics.ConfirmAttempts.WithLabelValues(source, "error").Inc()
			return nil, fmt.Errorf("acquire confirmation lock: %w", err)
		}
		if !acquired {
			e.metrics.ConfirmAttempts.WithLabelValues(source, "in_flight").Inc()
			return nil, domainErrors.ErrConfirmationInFlight
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn().Err(err).Msg("failed to release confirmation lock")
			}
		}()
	}

	body := map[string]any{"payment_gateway": gw}
	maps.Copy(body, attempt.ExtraBody)
	if attempt.SaveInstrument &&
		strings.EqualFold(gw, e.cfg.CardGateway) &&
		e.registry.ActiveChannel() == gateway.ChannelCard {
		body["save_card_details"] = true
	}

	start := time.Now()
	res, err := e.backend.ConfirmTransaction(ctx, e.auth, id, body)
	e.metrics.ConfirmDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.ConfirmAttempts.WithLabelValues(source, "error").Inc()
		e.logger.Warn().Err(err).Str("source", source).Str("gateway", gw).Msg("confirmation call failed")
		return nil, fmt.Errorf("confirm transaction: %w", err)
	}
	if res == nil {
		res = &ConfirmResult{}
	}

	result := "unconfirmed"
	if res.Confirmed {
		result = "confirmed"
	}
	e.metrics.ConfirmAttempts.WithLabelValues(source, result).Inc()
	e.logger.Info().
		Str("source", source).
		Str("gateway", gw).
		Str("backend_status", res.RawStatus).
		Bool("confirmed", res.Confirmed).
		Msg("confirmation answered")

	return res, nil
}

// isPrecondition reports errors no amount of retrying can fix.
func isPrecondition(err error) bool {
	return errors.Is(err, domainErrors.ErrTransactionTerminal) ||
		errors.Is(err, domainErrors.ErrMissingIdentifier) ||
		errors.Is(err, domainErrors.ErrMissingGateway) ||
		errors.Is(err, domainErrors.ErrUnauthenticated)
}

type retryLoop struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	attempt   uint
	running   bool
	exhausted bool
}

func (l *retryLoop) stop() {
	l.cancel()
	<-l.done
}

func (l *retryLoop) setAttempt(n uint) {
	l.mu.Lock()
	l.attempt = n
	l.mu.Unlock()
}

func (l *retryLoop) finish(exhausted bool) {
	l.mu.Lock()
	l.running = false
	l.exhausted = exhausted
	l.mu.Unlock()
}

func (l *retryLoop) snapshot() RetryState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return RetryState{Running: l.running, Attempt: l.attempt, Exhausted: l.exhausted}
}

// StartConfirmationRetry launches the bounded confirmation loop used after the
// payer returns from an external checkout. Any earlier loop is stopped first.
func (e *Engine) StartConfirmationRetry() error {
	if e.state.IsTerminal() {
		return domainErrors.ErrTransactionTerminal
	}

	e.retryMu.Lock()
	defer e.retryMu.Unlock()

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return domainErrors.ErrEngineNotStarted
	}
	if e.closed {
		e.mu.Unlock()
		return domainErrors.ErrSessionClosed
	}
	prev := e.retry
	e.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domainErrors.ErrSessionClosed
	}
	ctx, cancel := context.WithCancel(e.ctx)
	loop := &retryLoop{cancel: cancel, done: make(chan struct{}), running: true}
	e.retry = loop
	go e.runRetry(ctx, loop)

	return nil
}

// cancelRetry stops a scheduled retry loop without waiting for it.
func (e *Engine) cancelRetry() {
	e.mu.Lock()
	loop := e.retry
	e.mu.Unlock()
	if loop != nil {
		loop.cancel()
	}
}

func (e *Engine) runRetry(ctx context.Context, loop *retryLoop) {
	defer close(loop.done)

	var attempts uint
	var confirmed *ConfirmResult

	cfg := retry.FixedConfig(e.cfg.RetryAttempts, e.cfg.RetryDelay)
	cfg.OnRetry = func(n uint, err error) {
		e.logger.Debug().Err(err).Uint("attempt", n+1).Msg("confirmation retry scheduled")
	}

	err := retry.Do(ctx, cfg, func() error {
		if e.state.IsTerminal() {
			return retry.Unrecoverable(domainErrors.ErrTransactionTerminal)
		}
		attempts++
		loop.setAttempt(attempts)

		res, err := e.confirm(ctx, ConfirmationAttempt{
			Gateway:        e.cardGateway(),
			SaveInstrument: true,
			Source:         SourceRetry,
		})
		if err != nil {
			if isPrecondition(err) {
				return retry.Unrecoverable(err)
			}
			return err
		}
		if !res.Confirmed {
			return errNotConfirmed
		}
		confirmed = res
		return nil
	})

	switch {
	case err == nil:
		loop.finish(false)
		e.metrics.RetryLoops.WithLabelValues("confirmed").Inc()
		e.complete(ctx, SourceRetry, confirmed.Raw)
	case ctx.Err() != nil:
		loop.finish(false)
		e.metrics.RetryLoops.WithLabelValues("cancelled").Inc()
	case e.state.IsTerminal():
		loop.finish(false)
		e.metrics.RetryLoops.WithLabelValues("terminal").Inc()
	default:
		loop.finish(true)
		e.metrics.RetryLoops.WithLabelValues("exhausted").Inc()
		e.logger.Warn().Err(err).Uint("attempts", attempts).Msg("confirmation retries exhausted")
	}
}
