package checkout

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

func (e *Engine) runPoller(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.state.Done():
			return nil
		case <-ticker.C:
			if !e.shouldAutoPoll() {
				continue
			}
			// errors are already logged
			_ = e.poll(ctx)
		}
	}
}

// shouldAutoPoll gates the background poller. A processing transaction is left to
// the confirmation in progress.
func (e *Engine) shouldAutoPoll() bool {
	return e.state.Status() == transaction.StatusPending &&
		e.Active() &&
		e.auth.Authenticated() &&
		len(e.registry.AvailableChannels()) > 0
}

// CheckStatus asks the backend for the transaction status right away and applies
// the answer. It shares in-flight requests with the background poller.
func (e *Engine) CheckStatus(ctx context.Context) (transaction.Status, error) {
	if !e.auth.Authenticated() {
		return e.state.Status(), domainErrors.ErrUnauthenticated
	}
	if e.state.IsTerminal() {
		return e.state.Status(), nil
	}
	err := e.poll(ctx)
	return e.state.Status(), err
}

func (e *Engine) poll(ctx context.Context) error {
	_, err, _ := e.polls.Do(e.state.Transaction().ID, func() (any, error) {
		return nil, e.pollOnce(ctx)
	})
	return err
}

func (e *Engine) pollOnce(ctx context.Context) error {
	res, err := e.backend.TransactionStatus(ctx, e.auth, e.state.Transaction().ID)
	if err != nil {
		e.metrics.StatusPolls.WithLabelValues("error").Inc()
		e.logger.Warn().Err(err).Msg("transaction status poll failed")
		return fmt.Errorf("check transaction status: %w", err)
	}
	if res == nil || !res.Known {
		e.metrics.StatusPolls.WithLabelValues("unknown").Inc()
		return nil
	}

	e.metrics.StatusPolls.WithLabelValues(string(res.Status)).Inc()
	switch res.Status {
	case transaction.StatusCompleted:
		e.setAccounts(res.Accounts)
		e.state.Transition(transaction.StatusCompleted, SourcePoller, res.Raw)
	case transaction.StatusFailed:
		e.state.Transition(transaction.StatusFailed, SourcePoller, res.Raw)
	}
	return nil
}
