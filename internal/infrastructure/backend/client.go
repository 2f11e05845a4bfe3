package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cassiomorais/checkout/internal/application/checkout"
	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/instrument"
	"github.com/cassiomorais/checkout/internal/domain/session"
	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Endpoint families, each behind its own circuit breaker.
const (
	EndpointStatus      = "transaction_status"
	EndpointConfirm     = "transaction_confirm"
	EndpointInstruments = "saved_instruments"
)

const maxResponseBytes = 1 << 20

// Config tunes the REST client.
type Config struct {
	Timeout             time.Duration
	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             15 * time.Second,
		BreakerMaxRequests:  5,
		BreakerInterval:     60 * time.Second,
		BreakerTimeout:      30 * time.Second,
		BreakerMinRequests:  10,
		BreakerFailureRatio: 0.6,
	}
}

// HTTPError is returned for non-2xx backend answers.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.StatusCode, e.Body)
}

// Client talks to the console REST backend on behalf of an engine.
type Client struct {
	http     *http.Client
	cfg      Config
	metrics  *observability.Metrics
	tracer   trace.Tracer
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

var _ checkout.Backend = (*Client)(nil)

// NewClient creates a backend client. A nil httpClient gets an otelhttp-instrumented
// default transport.
func NewClient(cfg Config, metrics *observability.Metrics, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	c := &Client{
		http:     httpClient,
		cfg:      cfg,
		metrics:  metrics,
		tracer:   observability.Tracer("backend"),
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
	for _, name := range []string{EndpointStatus, EndpointConfirm, EndpointInstruments} {
		c.breakers[name] = c.newBreaker(name)
	}
	return c
}

func (c *Client) newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: c.cfg.BreakerMaxRequests,
		Interval:    c.cfg.BreakerInterval,
		Timeout:     c.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= c.cfg.BreakerMinRequests && failureRatio >= c.cfg.BreakerFailureRatio
		},
		// client errors say nothing about backend health
		IsSuccessful: func(err error) bool {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				return httpErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, _ gobreaker.State, to gobreaker.State) {
			if c.metrics != nil {
				c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
}

// TransactionStatus fetches and normalizes the transaction status.
func (c *Client) TransactionStatus(ctx context.Context, auth session.AuthContext, transactionID string) (*checkout.StatusResult, error) {
	body, err := c.do(ctx, EndpointStatus, auth, http.MethodGet, "/transactions/"+url.PathEscape(transactionID)+"/status", nil)
	if err != nil {
		return nil, err
	}
	return ParseStatusResponse(body)
}

// ConfirmTransaction asks the backend to confirm payment of identifier.
func (c *Client) ConfirmTransaction(ctx context.Context, auth session.AuthContext, identifier string, payload map[string]any) (*checkout.ConfirmResult, error) {
	body, err := c.do(ctx, EndpointConfirm, auth, http.MethodPut, "/transactions/"+url.PathEscape(identifier), payload)
	if err != nil {
		return nil, err
	}
	return ParseConfirmResponse(body)
}

// ListInstruments returns the caller's saved cards.
func (c *Client) ListInstruments(ctx context.Context, auth session.AuthContext) ([]instrument.Instrument, error) {
	body, err := c.do(ctx, EndpointInstruments, auth, http.MethodGet, auth.PathPrefix()+"/cards", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Cards []instrument.Raw `json:"cards"`
		Data  struct {
			Cards []instrument.Raw `json:"cards"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode saved cards: %w", err)
	}
	cards := resp.Cards
	if len(cards) == 0 {
		cards = resp.Data.Cards
	}
	return instrument.FromRawList(cards), nil
}

// DeleteInstrument removes a saved card.
func (c *Client) DeleteInstrument(ctx context.Context, auth session.AuthContext, instrumentID string) error {
	body, err := c.do(ctx, EndpointInstruments, auth, http.MethodDelete, auth.PathPrefix()+"/cards/"+url.PathEscape(instrumentID), nil)
	if err != nil {
		return err
	}
	doc, err := decodeDocument(body)
	if err != nil {
		return err
	}
	if ok, present := doc["success"].(bool); present && !ok {
		return fmt.Errorf("delete saved card %s: backend reported failure", instrumentID)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, auth session.AuthContext, method, path string, payload any) ([]byte, error) {
	if strings.TrimSpace(auth.BaseURL) == "" {
		return nil, domainErrors.NewValidationError("base_url", "backend base url is required")
	}

	ctx, span := c.tracer.Start(ctx, "backend."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("backend.endpoint", endpoint),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := strings.TrimRight(auth.BaseURL, "/") + path
	start := time.Now()
	body, err := c.breakers[endpoint].Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, auth, method, target, payload)
	})
	c.observe(endpoint, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %w", domainErrors.ErrBackendUnavailable, endpoint, err)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, auth session.AuthContext, method, target string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}
	if auth.TenantID != "" {
		req.Header.Set(session.TenantHeader, auth.TenantID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *Client) observe(endpoint string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	var httpErr *HTTPError
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
	case errors.As(err, &httpErr):
		outcome = fmt.Sprintf("http_%d", httpErr.StatusCode)
	default:
		outcome = "error"
	}
	c.metrics.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	c.metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	c.metrics.CircuitBreakerRequests.WithLabelValues(endpoint, outcome).Inc()
}
