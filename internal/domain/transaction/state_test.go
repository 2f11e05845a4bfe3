package transaction_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingState(t *testing.T, onComplete transaction.CompletionFunc) *transaction.State {
	t.Helper()
	txn, err := transaction.New(transaction.Payload{ID: "tx-1", Amount: 5000, Currency: "USD"})
	require.NoError(t, err)
	return transaction.NewState(txn, onComplete)
}

func TestState_PendingToProcessingToCompleted(t *testing.T) {
	s := newPendingState(t, nil)

	assert.True(t, s.Transition(transaction.StatusProcessing, "widget_success", nil))
	assert.Equal(t, transaction.StatusProcessing, s.Status())
	assert.True(t, s.Transition(transaction.StatusCompleted, "widget_success", nil))
	assert.Equal(t, transaction.StatusCompleted, s.Status())
	assert.True(t, s.IsTerminal())
}

func TestState_ProcessingBackToPending(t *testing.T) {
	s := newPendingState(t, nil)
	require.True(t, s.Transition(transaction.StatusProcessing, "widget_close", nil))

	assert.True(t, s.Transition(transaction.StatusPending, "widget_close", nil))
	assert.Equal(t, transaction.StatusPending, s.Status())
}

func TestState_SameStatusIsNoop(t *testing.T) {
	s := newPendingState(t, nil)
	assert.False(t, s.Transition(transaction.StatusPending, "poller", nil))
}

func TestState_TerminalIdempotence(t *testing.T) {
	for _, terminal := range []transaction.Status{
		transaction.StatusCompleted,
		transaction.StatusFailed,
		transaction.StatusExpired,
	} {
		t.Run(string(terminal), func(t *testing.T) {
			var calls int32
			s := newPendingState(t, func(map[string]any) { atomic.AddInt32(&calls, 1) })
			require.True(t, s.Transition(terminal, "test", nil))

			for _, next := range []transaction.Status{
				transaction.StatusPending,
				transaction.StatusProcessing,
				transaction.StatusCompleted,
				transaction.StatusFailed,
				transaction.StatusExpired,
			} {
				assert.False(t, s.Transition(next, "late", nil))
			}
			assert.Equal(t, terminal, s.Status())

			want := int32(0)
			if terminal == transaction.StatusCompleted {
				want = 1
			}
			assert.Equal(t, want, atomic.LoadInt32(&calls))
		})
	}
}

func TestState_CompletionFiresOnceUnderContention(t *testing.T) {
	var calls int32
	var got map[string]any
	s := newPendingState(t, func(p map[string]any) {
		atomic.AddInt32(&calls, 1)
		got = p
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Transition(transaction.StatusCompleted, "race", map[string]any{"n": i})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NotNil(t, got)
}

func TestState_DoneClosedOnTerminal(t *testing.T) {
	s := newPendingState(t, nil)

	select {
	case <-s.Done():
		t.Fatal("done closed before terminal transition")
	default:
	}

	s.Transition(transaction.StatusExpired, "countdown", nil)

	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed after terminal transition")
	}
}

func TestState_InitiallyTerminal(t *testing.T) {
	txn, err := transaction.New(transaction.Payload{ID: "tx", Status: "paid"})
	require.NoError(t, err)
	s := transaction.NewState(txn, nil)

	assert.True(t, s.IsTerminal())
	<-s.Done()
	assert.False(t, s.Transition(transaction.StatusPending, "x", nil))
}

func TestState_ObserversSeeTransitions(t *testing.T) {
	s := newPendingState(t, nil)
	var seen []transaction.Transition
	s.Observe(func(tr transaction.Transition) { seen = append(seen, tr) })

	s.Transition(transaction.StatusProcessing, "widget_success", nil)
	s.Transition(transaction.StatusCompleted, "widget_success", map[string]any{"status": "successful"})
	s.Transition(transaction.StatusFailed, "poller", nil)

	require.Len(t, seen, 2)
	assert.Equal(t, transaction.StatusPending, seen[0].From)
	assert.Equal(t, transaction.StatusProcessing, seen[0].To)
	assert.Equal(t, transaction.StatusCompleted, seen[1].To)
	assert.Equal(t, "tx-1", seen[1].TransactionID)
	assert.Equal(t, "successful", seen[1].Payload["status"])
}

func TestState_ObserverMayReadState(t *testing.T) {
	s := newPendingState(t, nil)
	var observed transaction.Status
	s.Observe(func(transaction.Transition) { observed = s.Status() })

	s.Transition(transaction.StatusFailed, "poller", nil)
	assert.Equal(t, transaction.StatusFailed, observed)
}

func TestNewEvent(t *testing.T) {
	ev := transaction.NewEvent(transaction.Transition{
		TransactionID: "tx-1",
		From:          transaction.StatusPending,
		To:            transaction.StatusExpired,
		Source:        "countdown",
	})
	assert.Equal(t, "tx-1", ev.TransactionID)
	assert.Equal(t, transaction.StatusExpired, ev.ToStatus)
	assert.NotEqual(t, [16]byte{}, [16]byte(ev.ID))
}
