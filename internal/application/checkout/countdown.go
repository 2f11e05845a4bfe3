package checkout

import (
	"context"
	"time"

	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

func (e *Engine) runCountdown(ctx context.Context, expiresAt time.Time) error {
	ticker := time.NewTicker(e.cfg.CountdownTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.state.Done():
			return nil
		case <-ticker.C:
			if e.tickCountdown(expiresAt) {
				return nil
			}
		}
	}
}

// tickCountdown publishes the remaining time and expires the transaction when it
// runs out. It reports whether the countdown should stop.
func (e *Engine) tickCountdown(expiresAt time.Time) bool {
	if e.state.IsTerminal() {
		return true
	}

	remaining := expiresAt.Sub(e.now())
	if remaining > 0 {
		e.setRemaining(remaining)
		return false
	}

	e.setRemaining(0)
	if e.state.Transition(transaction.StatusExpired, SourceCountdown, map[string]any{
		"status":     string(transaction.StatusExpired),
		"expires_at": expiresAt,
	}) {
		e.logger.Warn().Time("expires_at", expiresAt).Msg("transaction expired")
	}
	return true
}
