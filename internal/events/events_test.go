package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smartcampus/campus-api/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAcknowledger struct {
	acked, nacked, requeued int
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked++
	if requeue {
		f.requeued++
	}
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type recordingSink struct {
	changes []realtime.Change
	err     error
}

func (r *recordingSink) Publish(_ context.Context, c realtime.Change) error {
	if r.err != nil {
		return r.err
	}
	r.changes = append(r.changes, c)
	return nil
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "events.update", RoutingKey(realtime.Change{Table: "events", Type: realtime.Update}))
	assert.Equal(t, "lost_and_found.delete", RoutingKey(realtime.NewDelete("lost_and_found", "x")))
}

func TestConsumerForwardsChanges(t *testing.T) {
	sink := &recordingSink{}
	c := &Consumer{sink: sink, log: zap.NewNop()}
	ack := &fakeAcknowledger{}

	change := realtime.NewDelete("events", "event-1")
	body, err := json.Marshal(change)
	require.NoError(t, err)

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body, RoutingKey: "events.delete"})

	require.Len(t, sink.changes, 1)
	assert.Equal(t, change.ID, sink.changes[0].ID)
	assert.Equal(t, 1, ack.acked)
}

func TestConsumerDropsMalformed(t *testing.T) {
	sink := &recordingSink{}
	c := &Consumer{sink: sink, log: zap.NewNop()}
	ack := &fakeAcknowledger{}

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})

	assert.Empty(t, sink.changes)
	assert.Equal(t, 1, ack.nacked)
	assert.Equal(t, 0, ack.requeued)
}

func TestConsumerRequeuesOnSinkFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("hub closed")}
	c := &Consumer{sink: sink, log: zap.NewNop()}
	ack := &fakeAcknowledger{}

	body, err := json.Marshal(realtime.NewDelete("clubs", "c"))
	require.NoError(t, err)
	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body})

	assert.Equal(t, 1, ack.requeued)
	assert.Equal(t, 0, ack.acked)
}

type fakeConfirmation struct {
	done chan struct{}
	ack  bool
}

func pendingConfirmation() *fakeConfirmation {
	return &fakeConfirmation{done: make(chan struct{})}
}

func settledConfirmation(ack bool) *fakeConfirmation {
	c := pendingConfirmation()
	c.settle(ack)
	return c
}

func (c *fakeConfirmation) settle(ack bool) {
	c.ack = ack
	close(c.done)
}

func (c *fakeConfirmation) WaitContext(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.done:
		return c.ack, nil
	}
}

// scriptedChannel answers each publishing with the next scripted result.
type scriptedChannel struct {
	mu      sync.Mutex
	results []any // *fakeConfirmation or error
	keys    []string
}

func (s *scriptedChannel) publish(_ context.Context, key string, _ amqp.Publishing) (confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	next := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	if err, ok := next.(error); ok {
		return nil, err
	}
	return next.(*fakeConfirmation), nil
}

func (s *scriptedChannel) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func newTestPublisher(ch *scriptedChannel, timeout time.Duration) *Publisher {
	return &Publisher{publish: ch.publish, timeout: timeout, log: zap.NewNop()}
}

func TestPublisherPublish(t *testing.T) {
	change := realtime.NewDelete("events", "event-1")

	tests := []struct {
		name    string
		results []any
		calls   int
		wantErr error
	}{
		{"acked", []any{settledConfirmation(true)}, 1, nil},
		{"nack then ack", []any{settledConfirmation(false), settledConfirmation(true)}, 2, nil},
		{"send error then ack", []any{errors.New("channel busy"), settledConfirmation(true)}, 2, nil},
		{"always nacked", []any{settledConfirmation(false)}, maxRetries, errNotAcknowledged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &scriptedChannel{results: tt.results}
			err := newTestPublisher(ch, 5*time.Second).Publish(context.Background(), change)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.calls, ch.calls())
			assert.Equal(t, "events.delete", ch.keys[0])
		})
	}
}

func TestPublisherBoundsUnconfirmedPublish(t *testing.T) {
	ch := &scriptedChannel{results: []any{pendingConfirmation()}}
	p := newTestPublisher(ch, 50*time.Millisecond)

	start := time.Now()
	err := p.Publish(context.Background(), realtime.NewDelete("clubs", "c"))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, ch.calls(), "no retry once the deadline is spent")
}

func TestPublisherHonoursCallerContext(t *testing.T) {
	ch := &scriptedChannel{results: []any{pendingConfirmation()}}
	p := newTestPublisher(ch, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, realtime.NewDelete("clubs", "c"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisherLateAckBelongsToItsOwnMessage(t *testing.T) {
	first := pendingConfirmation()
	second := pendingConfirmation()
	ch := &scriptedChannel{results: []any{first, second}}
	p := newTestPublisher(ch, 50*time.Millisecond)

	err := p.Publish(context.Background(), realtime.NewDelete("events", "a"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The first message is acked only after its publish gave up. The second
	// message stays unconfirmed and must not borrow that ack.
	first.settle(true)

	err = p.Publish(context.Background(), realtime.NewDelete("events", "b"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, ch.calls())
}
