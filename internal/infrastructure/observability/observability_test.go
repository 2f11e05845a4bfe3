package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestInitLogger_WritesServiceAndTransaction(t *testing.T) {
	var buf bytes.Buffer
	logger := WithTransaction(InitLogger("debug", &buf), "txn-1")

	logger.Debug().Msg("polled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ServiceName, entry["service"])
	assert.Equal(t, "txn-1", entry["transaction_id"])
	assert.Equal(t, "polled", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestInitLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("error", &buf)

	logger.Info().Msg("dropped")

	assert.Zero(t, buf.Len())
}

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ConfirmAttempts.WithLabelValues("widget", "confirmed").Inc()
	m.ActiveSessions.Set(3)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConfirmAttempts.WithLabelValues("widget", "confirmed")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ActiveSessions))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_confirm_attempts_total")
	assert.Contains(t, names, "test_active_sessions")
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics("dup", reg)

	assert.Panics(t, func() { NewMetrics("dup", reg) })
}

func TestTracer_UsesServicePrefix(t *testing.T) {
	assert.NotNil(t, Tracer("backend"))
}
