package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	r "github.com/INNOCENT-010/storefront-checkout/internal/orders/repository"
)

type mockEventStore struct {
	m         sync.Mutex
	events    []*r.OutboxEvent
	processed []int64
	fetchErr  error
	markErr   error
}

func (s *mockEventStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*r.OutboxEvent, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if len(s.events) > limit {
		return s.events[:limit], nil
	}
	return s.events, nil
}

func (s *mockEventStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.processed = append(s.processed, id)
	return nil
}

type mockWriter struct {
	m        sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.m.Lock()
	defer w.m.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func newPollerFixture(store *mockEventStore, writer *mockWriter) *OutboxPoller {
	return &OutboxPoller{
		timeout:   time.Second,
		eventTick: 10 * time.Millisecond,
		store:     store,
		writer:    writer,
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	store := &mockEventStore{events: []*r.OutboxEvent{
		{ID: 1, EventType: "payment.confirmed", Payload: []byte(`{"order_number":"ORD-1"}`)},
		{ID: 2, EventType: "payment.confirmed", Payload: []byte(`{"order_number":"ORD-2"}`)},
	}}
	writer := &mockWriter{}
	p := newPollerFixture(store, writer)

	p.processUnpublishedEvents(context.Background())

	require.Len(t, writer.messages, 2)
	assert.Equal(t, []byte("1"), writer.messages[0].Key)
	assert.Equal(t, []byte(`{"order_number":"ORD-1"}`), writer.messages[0].Value)
	require.Len(t, writer.messages[0].Headers, 1)
	assert.Equal(t, "event_type", writer.messages[0].Headers[0].Key)
	assert.Equal(t, []byte("payment.confirmed"), writer.messages[0].Headers[0].Value)
	assert.Equal(t, []int64{1, 2}, store.processed)
}

func TestProcessUnpublishedEvents_PublishFailureLeavesEventUnprocessed(t *testing.T) {
	store := &mockEventStore{events: []*r.OutboxEvent{
		{ID: 7, EventType: "payment.confirmed", Payload: []byte(`{}`)},
	}}
	writer := &mockWriter{err: errors.New("broker unreachable")}
	p := newPollerFixture(store, writer)

	p.processUnpublishedEvents(context.Background())

	assert.Empty(t, store.processed)
}

func TestProcessUnpublishedEvents_FetchErrorIsSwallowed(t *testing.T) {
	store := &mockEventStore{fetchErr: errors.New("db down")}
	writer := &mockWriter{}
	p := newPollerFixture(store, writer)

	p.processUnpublishedEvents(context.Background())

	assert.Empty(t, writer.messages)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := &mockEventStore{events: []*r.OutboxEvent{
		{ID: 1, EventType: "payment.confirmed", Payload: []byte(`{}`)},
	}}
	writer := &mockWriter{}
	p := newPollerFixture(store, writer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}

	writer.m.Lock()
	defer writer.m.Unlock()
	assert.NotEmpty(t, writer.messages)
}
