package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []messaging.InboundEvent
	done   chan struct{}
}

func newRecordingHandler(expect int) *recordingHandler {
	return &recordingHandler{done: make(chan struct{}, expect)}
}

func (h *recordingHandler) Handle(_ context.Context, evt messaging.InboundEvent) {
	h.mu.Lock()
	h.events = append(h.events, evt)
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *recordingHandler) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
}

func (h *recordingHandler) texts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Text)
	}
	return out
}

type fakeProcessed struct {
	mu    sync.Mutex
	seen  map[string]bool
	err   error
	delay func() time.Duration
}

func (f *fakeProcessed) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	if f.delay != nil {
		time.Sleep(f.delay())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	key := provider + ":" + eventID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func textEvent(id, identity, text string) messaging.InboundEvent {
	return messaging.InboundEvent{
		ID:        id,
		Identity:  identity,
		Timestamp: time.Now(),
		Kind:      messaging.KindText,
		Text:      text,
	}
}

func TestWorkerDeliversEventsInOrder(t *testing.T) {
	queue := NewMemoryQueue(16)
	pub := NewPublisher(queue, logging.Discard())
	handler := newRecordingHandler(3)
	worker := NewWorker(handler, queue, NewInlineExecutor(), logging.Discard(), WithReceiveWaitSeconds(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i, text := range []string{"hi", "2", "3"} {
		require.NoError(t, pub.EnqueueEvent(ctx, textEvent(string(rune('a'+i)), "u2", text)))
	}

	worker.Start(ctx)
	handler.wait(t, 3)
	cancel()
	worker.Wait()

	assert.Equal(t, []string{"hi", "2", "3"}, handler.texts())
}

func TestWorkerKeepsIdentityOrderAcrossLanes(t *testing.T) {
	const perIdentity = 40
	identities := []string{"u1", "u2", "u3"}

	queue := NewMemoryQueue(256)
	pub := NewPublisher(queue, logging.Discard())
	handler := newRecordingHandler(perIdentity * len(identities))
	processed := &fakeProcessed{
		seen:  make(map[string]bool),
		delay: func() time.Duration { return time.Duration(rand.IntN(300)) * time.Microsecond },
	}
	d := NewDispatcher(16, logging.Discard())
	worker := NewWorker(handler, queue, d, logging.Discard(),
		WithReceiveWaitSeconds(0), WithProcessedEventsStore(processed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < perIdentity; i++ {
		for _, id := range identities {
			require.NoError(t, pub.EnqueueEvent(ctx, textEvent(fmt.Sprintf("%s-%d", id, i), id, strconv.Itoa(i))))
		}
	}

	worker.Start(ctx)
	handler.wait(t, perIdentity*len(identities))
	cancel()
	worker.Wait()
	d.Close()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	got := make(map[string][]string)
	for _, evt := range handler.events {
		got[evt.Identity] = append(got[evt.Identity], evt.Text)
	}
	for _, id := range identities {
		want := make([]string, perIdentity)
		for i := range want {
			want[i] = strconv.Itoa(i)
		}
		assert.Equal(t, want, got[id], id)
	}
}

func TestWorkerSkipsDuplicateEvents(t *testing.T) {
	queue := NewMemoryQueue(16)
	pub := NewPublisher(queue, logging.Discard())
	handler := newRecordingHandler(2)
	processed := &fakeProcessed{seen: make(map[string]bool)}
	worker := NewWorker(handler, queue, NewInlineExecutor(), logging.Discard(),
		WithReceiveWaitSeconds(0), WithProcessedEventsStore(processed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pub.EnqueueEvent(ctx, textEvent("wamid.1", "u1", "hi")))
	require.NoError(t, pub.EnqueueEvent(ctx, textEvent("wamid.1", "u1", "hi")))
	require.NoError(t, pub.EnqueueEvent(ctx, textEvent("wamid.2", "u1", "1")))

	worker.Start(ctx)
	handler.wait(t, 2)
	require.Eventually(t, func() bool { return queue.Len() == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	worker.Wait()

	assert.Equal(t, []string{"hi", "1"}, handler.texts())
}

func TestWorkerProcessesWhenDedupeStoreFails(t *testing.T) {
	queue := NewMemoryQueue(4)
	handler := newRecordingHandler(1)
	processed := &fakeProcessed{seen: make(map[string]bool), err: errors.New("redis down")}
	worker := NewWorker(handler, queue, NewInlineExecutor(), logging.Discard(), WithProcessedEventsStore(processed))

	worker.handleMessage(context.Background(), mustMessage(t, textEvent("e1", "u1", "hi")))

	assert.Equal(t, []string{"hi"}, handler.texts())
}

func TestWorkerDropsUndecodablePayload(t *testing.T) {
	queue := NewMemoryQueue(4)
	handler := newRecordingHandler(1)
	worker := NewWorker(handler, queue, NewInlineExecutor(), logging.Discard())

	worker.handleMessage(context.Background(), queueMessage{ID: "m1", Body: "{not json", ReceiptHandle: "r1"})
	worker.handleMessage(context.Background(), queueMessage{ID: "m2", Body: `{"id":"x","kind":"other"}`, ReceiptHandle: "r2"})

	assert.Empty(t, handler.texts())
}

func TestWorkerOptionsClamp(t *testing.T) {
	worker := NewWorker(newRecordingHandler(0), NewMemoryQueue(1), NewInlineExecutor(), nil,
		WithReceiveWaitSeconds(60), WithReceiveBatchSize(50))

	assert.Equal(t, maxWaitSeconds, worker.cfg.receiveWaitSecs)
	assert.Equal(t, maxReceiveBatchSize, worker.cfg.receiveBatchSize)
}

func mustMessage(t *testing.T, evt messaging.InboundEvent) queueMessage {
	t.Helper()
	payload, body, err := encodePayload(queuePayload{ID: evt.ID, Event: evt})
	require.NoError(t, err)
	return queueMessage{ID: payload.ID, Body: body, ReceiptHandle: "r-" + payload.ID}
}
