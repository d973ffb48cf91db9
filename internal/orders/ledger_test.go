package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/Mohamed39200Lo/Coffee/internal/clock"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T, opts ...LedgerOption) (*Ledger, *docstore.MemoryStore, *clock.FakeClock) {
	t.Helper()
	store := docstore.NewMemoryStore()
	fake := clock.Fake(epoch)
	base := []LedgerOption{WithClock(fake), WithLogger(logging.Discard())}
	return NewLedger(store, append(base, opts...)...), store, fake
}

func sampleOrder(identity string) Order {
	return Order{
		Identity: identity,
		Kind:     KindText,
		Details:  "2 x latte\n1 x croissant",
		Filling:  "cheese",
		Name:     "Sara",
		Language: "ar",
	}
}

func TestRandomIDIsEightDigits(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := RandomID()
		require.Len(t, id, 8)
		assert.NotEqual(t, byte('0'), id[0])
	}
}

func TestUpsertThenFindRoundTrip(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	in := sampleOrder("966500000001")
	in.PaymentProofRef = "media/abc.jpg"
	id, err := ledger.Upsert(ctx, in)
	require.NoError(t, err)
	require.Len(t, id, 8)

	got, err := ledger.Find(ctx, id)
	require.NoError(t, err)

	want := in
	want.ID = id
	want.Status = StatusPending
	want.CreatedAt = epoch
	want.UpdatedAt = epoch
	assert.Equal(t, want, got)
}

func TestUpsertRegeneratesCollidingID(t *testing.T) {
	ids := []string{"11111111", "11111111", "22222222"}
	next := 0
	ledger, _, _ := newTestLedger(t, WithIDGenerator(func() string {
		id := ids[next%len(ids)]
		next++
		return id
	}))
	ctx := context.Background()

	first, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	assert.Equal(t, "11111111", first)

	clash := sampleOrder("b")
	clash.ID = "11111111"
	second, err := ledger.Upsert(ctx, clash)
	require.NoError(t, err)
	assert.Equal(t, "22222222", second)

	a, err := ledger.Find(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "a", a.Identity)
}

func TestUpsertSameOrderReplacesInPlace(t *testing.T) {
	ledger, _, fake := newTestLedger(t)
	ctx := context.Background()

	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	stored, err := ledger.Find(ctx, id)
	require.NoError(t, err)

	fake.Advance(time.Minute)
	stored.PaymentProofRef = "media/proof.png"
	again, err := ledger.Upsert(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	all, err := ledger.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "media/proof.png", all[0].PaymentProofRef)
	assert.Equal(t, epoch, all[0].CreatedAt)
	assert.Equal(t, epoch.Add(time.Minute), all[0].UpdatedAt)
}

func TestConcurrentUpsertsYieldDistinctIDs(t *testing.T) {
	// A narrow id space forces many collisions.
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(1, 2))
	ledger, _, _ := newTestLedger(t, WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Sprintf("%d", 10000000+rng.IntN(1500))
	}))
	ctx := context.Background()

	const n = 1000
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := sampleOrder(fmt.Sprintf("user-%d", i))
			o.ID = "12345678"
			id, err := ledger.Upsert(ctx, o)
			if err != nil {
				t.Errorf("upsert %d: %v", i, err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)

	all, err := ledger.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestListFiltersAndReadFailure(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()

	a, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	_, err = ledger.Upsert(ctx, sampleOrder("b"))
	require.NoError(t, err)
	_, _, err = ledger.SetStatus(ctx, a, StatusPreparing)
	require.NoError(t, err)

	preparing, err := ledger.List(ctx, Filter{Status: StatusPreparing})
	require.NoError(t, err)
	require.Len(t, preparing, 1)
	assert.Equal(t, a, preparing[0].ID)

	byIdentity, err := ledger.List(ctx, Filter{Identity: "b"})
	require.NoError(t, err)
	require.Len(t, byIdentity, 1)

	store.FailReads(KeyOrders, 1)
	list, err := ledger.List(ctx, Filter{})
	assert.True(t, docstore.IsReadError(err))
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestSetStatusReturnsPreviousStatus(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()

	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)

	order, old, err := ledger.SetStatus(ctx, id, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, old)
	assert.Equal(t, StatusConfirmed, order.Status)

	writes := store.Writes(KeyOrders)
	_, old, err = ledger.SetStatus(ctx, id, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, old)
	assert.Equal(t, writes, store.Writes(KeyOrders), "same status must not rewrite the document")

	_, _, err = ledger.SetStatus(ctx, "00000000", StatusConfirmed)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, _, err = ledger.SetStatus(ctx, id, Status("teleported"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSetStatusIfChecksCurrentStatus(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()
	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	_, _, err = ledger.SetStatus(ctx, id, StatusPreparing)
	require.NoError(t, err)

	writes := store.Writes(KeyOrders)
	order, old, err := ledger.SetStatusIf(ctx, id, StatusCancelled, Status.Cancellable)
	assert.ErrorIs(t, err, ErrStatusRefused)
	assert.Equal(t, StatusPreparing, old)
	assert.Equal(t, StatusPreparing, order.Status)
	assert.Equal(t, writes, store.Writes(KeyOrders))

	order, old, err = ledger.SetStatusIf(ctx, id, StatusOutForDelivery, func(s Status) bool { return s == StatusPreparing })
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, old)
	assert.Equal(t, StatusOutForDelivery, order.Status)
}

func TestSetStatusWriteFailureLeavesOrder(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()
	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)

	store.FailWrites(KeyOrders, 1)
	_, _, err = ledger.SetStatus(ctx, id, StatusDelivered)
	require.True(t, docstore.IsWriteError(err))

	got, err := ledger.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestArchiveMovesTerminalOrder(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()
	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)

	assert.ErrorIs(t, ledger.Archive(ctx, id), ErrNotTerminal)

	_, _, err = ledger.SetStatus(ctx, id, StatusDelivered)
	require.NoError(t, err)
	require.NoError(t, ledger.Archive(ctx, id))

	live, err := ledger.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	archived, err := ledger.ListArchived(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, StatusDelivered, archived[0].Status)

	found, err := ledger.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, found.ID)

	assert.ErrorIs(t, ledger.Archive(ctx, id), ErrOrderNotFound)
}

func TestArchiveRollsBackWhenLiveWriteFails(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()
	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	_, _, err = ledger.SetStatus(ctx, id, StatusCancelled)
	require.NoError(t, err)

	store.FailWrites(KeyOrders, 1)
	err = ledger.Archive(ctx, id)
	require.True(t, docstore.IsWriteError(err))

	live, err := ledger.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, live, 1)

	archived, err := ledger.ListArchived(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, archived)
}

func TestArchiveWriteFailureKeepsOrderLive(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()
	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	_, _, err = ledger.SetStatus(ctx, id, StatusDelivered)
	require.NoError(t, err)

	store.FailWrites(KeyArchive, 1)
	require.Error(t, ledger.Archive(ctx, id))

	live, err := ledger.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestUpsertSurvivesForeignOverwriteOnRetry(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()

	// Another writer replaces the document right after our write lands.
	store.OnWrite(func(key string, data []byte) []byte {
		if key != KeyOrders {
			return nil
		}
		return []byte(`{"orders":[]}`)
	})
	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)
	_, err = ledger.Find(ctx, id)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// Idempotent retry of the same placement restores it.
	store.OnWrite(nil)
	retry := sampleOrder("a")
	retry.ID = id
	again, err := ledger.Upsert(ctx, retry)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	_, err = ledger.Find(ctx, id)
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()
	id, err := ledger.Upsert(ctx, sampleOrder("a"))
	require.NoError(t, err)

	require.NoError(t, ledger.Delete(ctx, id))
	assert.ErrorIs(t, ledger.Delete(ctx, id), ErrOrderNotFound)

	raw, _ := store.Get(KeyOrders)
	var doc ordersDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Empty(t, doc.Orders)
}

func TestFindReadFailure(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	store.FailReads(KeyOrders, 1)
	_, err := ledger.Find(context.Background(), "12345678")
	assert.True(t, docstore.IsReadError(err))
	assert.False(t, errors.Is(err, ErrOrderNotFound))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Out-For-Delivery ")
	require.NoError(t, err)
	assert.Equal(t, StatusOutForDelivery, s)
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPreparing.Terminal())
	assert.True(t, StatusPending.Cancellable())
	assert.False(t, StatusOutForDelivery.Cancellable())

	_, err = ParseStatus("")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
