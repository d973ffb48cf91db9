package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct {
	id       string
	old, new Status
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []transition
}

func (r *recordingObserver) OnStatusChange(_ context.Context, o Order, old, new Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, transition{id: o.ID, old: old, new: new})
}

func TestAdvanceNotifiesOncePerDistinctTransition(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	obs := &recordingObserver{}
	svc := NewService(ledger, logging.Discard(), obs)
	ctx := context.Background()

	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)

	_, err = svc.Advance(ctx, id, StatusDelivered)
	require.NoError(t, err)
	require.Len(t, obs.calls, 1)
	assert.Equal(t, transition{id: id, old: StatusPending, new: StatusDelivered}, obs.calls[0])

	// Delivered orders are archived, so a second advance finds nothing live
	// and never reaches the observer.
	_, err = svc.Advance(ctx, id, StatusDelivered)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Len(t, obs.calls, 1)

	archived, err := ledger.ListArchived(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestAdvanceSameNonTerminalStatusIsSilent(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	obs := &recordingObserver{}
	svc := NewService(ledger, logging.Discard(), obs)
	ctx := context.Background()

	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)

	_, err = svc.Advance(ctx, id, StatusPreparing)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, id, StatusPreparing)
	require.NoError(t, err)
	assert.Len(t, obs.calls, 1)
}

func TestAdvanceArchiveFailureIsRetriedLater(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	obs := &recordingObserver{}
	svc := NewService(ledger, logging.Discard(), obs)
	ctx := context.Background()

	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)

	store.FailWrites(KeyArchive, 1)
	order, err := svc.Advance(ctx, id, StatusDelivered)
	require.NoError(t, err, "archive failures must not fail the status change")
	assert.Equal(t, StatusDelivered, order.Status)

	live, err := ledger.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, live, 1)

	_, err = svc.Advance(ctx, id, StatusDelivered)
	require.NoError(t, err)
	assert.Len(t, obs.calls, 1)

	live, err = ledger.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestAdvanceRefusesLeavingFinishedOrder(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	obs := &recordingObserver{}
	svc := NewService(ledger, logging.Discard(), obs)
	ctx := context.Background()

	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	store.FailWrites(KeyArchive, 1)
	_, err = svc.Advance(ctx, id, StatusCancelled)
	require.NoError(t, err)

	order, err := svc.Advance(ctx, id, StatusPreparing)
	assert.ErrorIs(t, err, ErrStatusRefused)
	assert.Equal(t, StatusCancelled, order.Status)
	assert.Len(t, obs.calls, 1)

	_, err = svc.StaffCancel(ctx, id)
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestStaffCancelAnyOpenStage(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	svc := NewService(ledger, logging.Discard())
	ctx := context.Background()

	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	_, err = svc.Advance(ctx, id, StatusOutForDelivery)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, id)
	assert.ErrorIs(t, err, ErrNotCancellable)

	order, err := svc.StaffCancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, order.Status)

	order, err = svc.StaffCancel(ctx, id)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, StatusCancelled, order.Status)
}

func TestCancel(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	obs := &recordingObserver{}
	svc := NewService(ledger, logging.Discard())
	svc.Observe(obs)
	ctx := context.Background()

	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	other, err := ledger.Upsert(ctx, sampleOrder("b"))
	require.NoError(t, err)
	_, err = svc.Advance(ctx, other, StatusOutForDelivery)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, other)
	assert.ErrorIs(t, err, ErrNotCancellable)

	order, err := svc.Cancel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, order.Status)
	require.Len(t, obs.calls, 2)
	assert.Equal(t, StatusCancelled, obs.calls[1].new)

	// Cancelled orders are archived.
	_, err = svc.Cancel(ctx, id)
	assert.ErrorIs(t, err, ErrNotCancellable)

	_, err = svc.Cancel(ctx, "99999999")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelRacingStaffUpdateNeverCancelsLaterStage(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	obs := &recordingObserver{}
	svc := NewService(ledger, logging.Discard(), obs)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		id, err := ledger.Upsert(ctx, sampleOrder(fmt.Sprintf("u%d", i)))
		require.NoError(t, err)

		var wg sync.WaitGroup
		var cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Advance(ctx, id, StatusPreparing)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = svc.Cancel(ctx, id)
		}()
		wg.Wait()

		final, err := ledger.Find(ctx, id)
		require.NoError(t, err)
		if cancelErr == nil {
			assert.Equal(t, StatusCancelled, final.Status)
		} else {
			assert.ErrorIs(t, cancelErr, ErrNotCancellable)
			assert.Equal(t, StatusPreparing, final.Status)
		}
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	for _, c := range obs.calls {
		if c.new == StatusCancelled {
			assert.Equal(t, StatusPending, c.old, "order %s cancelled from %s", c.id, c.old)
		}
	}
}
