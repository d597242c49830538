package mirror

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMirror is a scripted Mirror implementation for dispatcher tests.
type mockMirror struct {
	mu         sync.Mutex
	eventCalls int
	orderCalls int
	failUntil  int
	err        error
}

func (m *mockMirror) MirrorEvent(_ context.Context, entry EventEntry) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.eventCalls++
	if m.err != nil {
		return nil, m.err
	}
	if m.eventCalls <= m.failUntil {
		return nil, ErrUnavailable
	}
	return &Record{TxRef: "tx-" + entry.EventID, URL: "https://ledger/tx-" + entry.EventID, RecordedAt: time.Now()}, nil
}

func (m *mockMirror) MirrorOrderTransition(_ context.Context, entry OrderEntry) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orderCalls++
	if m.err != nil {
		return nil, m.err
	}
	return &Record{TxRef: "tx-" + entry.OrderID, RecordedAt: time.Now()}, nil
}

// TestDispatcher_EventSuccess verifies onDone receives the mirror record.
func TestDispatcher_EventSuccess(t *testing.T) {
	m := &mockMirror{}
	d := NewDispatcher(m, DispatcherOptions{QueueSize: 4, MaxRetries: 1, BaseDelay: time.Millisecond})
	d.Start()

	recCh := make(chan Record, 1)
	d.EnqueueEvent(EventEntry{EventID: "ev-1", BatchID: "B1"}, func(r Record) {
		recCh <- r
	})

	select {
	case rec := <-recCh:
		assert.Equal(t, "tx-ev-1", rec.TxRef)
	case <-time.After(2 * time.Second):
		t.Fatal("mirror record never delivered")
	}

	d.Close()
}

// TestDispatcher_RetriesThenSucceeds verifies transient failures are retried.
func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	m := &mockMirror{failUntil: 2}
	d := NewDispatcher(m, DispatcherOptions{QueueSize: 4, MaxRetries: 5, BaseDelay: time.Millisecond})
	d.Start()

	recCh := make(chan Record, 1)
	d.EnqueueEvent(EventEntry{EventID: "ev-2"}, func(r Record) {
		recCh <- r
	})

	select {
	case rec := <-recCh:
		assert.Equal(t, "tx-ev-2", rec.TxRef)
	case <-time.After(2 * time.Second):
		t.Fatal("mirror record never delivered")
	}

	d.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 3, m.eventCalls)
}

// TestDispatcher_DropsAfterRetryBudget verifies the entry is abandoned, not blocking.
func TestDispatcher_DropsAfterRetryBudget(t *testing.T) {
	m := &mockMirror{err: ErrUnavailable}
	d := NewDispatcher(m, DispatcherOptions{QueueSize: 4, MaxRetries: 2, BaseDelay: time.Millisecond})
	d.Start()

	called := false
	d.EnqueueEvent(EventEntry{EventID: "ev-3"}, func(Record) { called = true })

	d.Close() // drains the queue

	assert.False(t, called)
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 3, m.eventCalls) // initial + 2 retries
}

// TestDispatcher_DisabledNotRetried verifies the noop adapter short-circuits.
func TestDispatcher_DisabledNotRetried(t *testing.T) {
	d := NewDispatcher(NewNoopAdapter(), DispatcherOptions{QueueSize: 4, MaxRetries: 5, BaseDelay: time.Millisecond})
	d.Start()

	d.EnqueueEvent(EventEntry{EventID: "ev-4"}, nil)
	d.EnqueueOrderTransition(OrderEntry{OrderID: "ord-1"}, nil)

	d.Close()
}

// TestDispatcher_OrderTransition verifies order entries flow through.
func TestDispatcher_OrderTransition(t *testing.T) {
	m := &mockMirror{}
	d := NewDispatcher(m, DispatcherOptions{QueueSize: 4, MaxRetries: 1, BaseDelay: time.Millisecond})
	d.Start()

	recCh := make(chan Record, 1)
	d.EnqueueOrderTransition(OrderEntry{OrderID: "ord-2", NewStatus: "SHIPPED"}, func(r Record) {
		recCh <- r
	})

	select {
	case rec := <-recCh:
		require.Equal(t, "tx-ord-2", rec.TxRef)
	case <-time.After(2 * time.Second):
		t.Fatal("mirror record never delivered")
	}

	d.Close()
}
