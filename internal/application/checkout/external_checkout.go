package checkout

import (
	"context"
	"errors"
	"strings"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/gateway"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

// CheckoutOverrides replaces resolved checkout inputs when non-empty.
type CheckoutOverrides struct {
	Email     string
	PublicKey string
}

// CheckoutParams are the inputs the external checkout widget is opened with.
type CheckoutParams struct {
	Email            string `json:"email"`
	AmountMinorUnits int64  `json:"amount"`
	Reference        string `json:"reference"`
	PublicKey        string `json:"public_key"`
	Currency         string `json:"currency"`
	Gateway          string `json:"gateway"`
	Ready            bool   `json:"ready"`
}

// WidgetResponse is what the widget reports on its success callback.
type WidgetResponse struct {
	Reference string
	Status    string
}

// CheckoutParams resolves the widget inputs. Ready is false until a public key,
// an email and a reference are all known.
func (e *Engine) CheckoutParams(o CheckoutOverrides) CheckoutParams {
	txn := e.state.Transaction()
	opt, hasOpt := e.registry.ActiveOption()

	p := CheckoutParams{
		Email:            firstNonEmpty(o.Email, txn.CustomerEmail, txn.Meta.Email, e.auth.Email),
		AmountMinorUnits: int64(txn.Breakdown.Payable()),
		Reference:        e.ConfirmIdentifier(""),
		Currency:         txn.Breakdown.Currency,
	}
	optKey := ""
	if hasOpt {
		optKey = opt.PublicKey
		p.Gateway = opt.GatewayName
	}
	p.PublicKey = firstNonEmpty(o.PublicKey, optKey, txn.Meta.PublicKey, e.cfg.DefaultPublicKey)
	p.Ready = p.PublicKey != "" && p.Email != "" && p.Reference != ""
	return p
}

// BeginCheckout returns the widget inputs when card checkout can be offered.
func (e *Engine) BeginCheckout(o CheckoutOverrides) (CheckoutParams, error) {
	if e.state.IsTerminal() {
		return CheckoutParams{}, domainErrors.ErrTransactionTerminal
	}
	p := e.CheckoutParams(o)
	if !p.Ready || e.registry.ActiveChannel() != gateway.ChannelCard {
		return p, domainErrors.ErrCheckoutNotReady
	}
	return p, nil
}

// CheckoutSucceeded handles the widget's success callback with a single confirm.
func (e *Engine) CheckoutSucceeded(ctx context.Context, resp WidgetResponse) (bool, error) {
	return e.settleWidget(ctx, SourceWidgetSuccess, resp.Reference)
}

// CheckoutClosed handles the widget being dismissed without a success signal.
// It is settled exactly like a success.
func (e *Engine) CheckoutClosed(ctx context.Context) (bool, error) {
	return e.settleWidget(ctx, SourceWidgetClose, "")
}

func (e *Engine) settleWidget(ctx context.Context, source, reference string) (bool, error) {
	if e.state.IsTerminal() {
		return false, domainErrors.ErrTransactionTerminal
	}

	moved := e.state.Transition(transaction.StatusProcessing, source, nil)

	gw := ""
	if opt, ok := e.registry.ActiveOption(); ok && opt.Channel == gateway.ChannelCard {
		gw = opt.GatewayName
	}
	ref := e.ConfirmIdentifier(reference)

	res, err := e.confirm(ctx, ConfirmationAttempt{
		Gateway:        gw,
		SaveInstrument: true,
		Reference:      reference,
		Source:         source,
	})
	if errors.Is(err, domainErrors.ErrConfirmationInFlight) && !moved {
		// an earlier widget event owns the processing status
		return false, err
	}
	if err != nil || !res.Confirmed {
		e.state.Transition(transaction.StatusPending, source, nil)
		if err != nil {
			e.logger.Warn().Err(err).Str("source", source).Msg("checkout confirmation failed")
		}
		return false, err
	}

	if !e.complete(ctx, source, map[string]any{
		"status":    "successful",
		"reference": ref,
		"channel":   string(e.registry.ActiveChannel()),
	}) {
		return false, domainErrors.ErrTransactionTerminal
	}
	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
