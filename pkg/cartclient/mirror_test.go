package cartclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mirrorFixture(t *testing.T) (*Mirror, *fakeServer, string, string) {
	t.Helper()
	ctx := context.Background()
	server := newFakeServer(map[string]int64{"A": 10, "B": 10})
	_, err := server.AddItem(ctx, NewItem{ProductID: "A", Quantity: 2})
	require.NoError(t, err)
	initial, err := server.AddItem(ctx, NewItem{ProductID: "B", Quantity: 1})
	require.NoError(t, err)
	a, _ := initial.ItemByProduct("A")
	b, _ := initial.ItemByProduct("B")
	return NewMirror(server, initial, time.Second), server, a.ID, b.ID
}

func TestMirror_SuccessAdoptsServerCart(t *testing.T) {
	m, server, aID, _ := mirrorFixture(t)

	cart, err := m.Dispatch(context.Background(), UpdateQuantity(aID, 5))
	require.NoError(t, err)
	it, _ := cart.Item(aID)
	assert.Equal(t, int64(5), it.Quantity)
	assert.Equal(t, int64(5), server.stock["A"])
	_, pending := m.Pending(aID)
	assert.False(t, pending)
}

func TestMirror_PredictionVisibleWhileInFlight(t *testing.T) {
	m, server, aID, _ := mirrorFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	server.hook = func(context.Context) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Dispatch(context.Background(), Remove(aID))
		done <- err
	}()
	<-entered

	snap := m.Snapshot()
	it, _ := snap.Item(aID)
	assert.Nil(t, it, "removal is predicted before the server answers")
	op, ok := m.Pending(aID)
	assert.True(t, ok)
	assert.Equal(t, PendingRemove, op)

	close(release)
	require.NoError(t, <-done)
}

func TestMirror_FailureRollsBack(t *testing.T) {
	m, server, aID, _ := mirrorFixture(t)
	before := m.Snapshot()

	// The server only has 8 more units of A.
	_, err := m.Dispatch(context.Background(), UpdateQuantity(aID, 30))
	require.Error(t, err)
	assert.True(t, IsInsufficientStock(err))
	assertSameCart(t, before, m.Snapshot())
	assert.Equal(t, int64(8), server.stock["A"])
}

func TestMirror_RemoveFailureRestoresPosition(t *testing.T) {
	m, server, aID, bID := mirrorFixture(t)
	server.hook = func(context.Context) error { return errors.New("503") }

	_, err := m.Dispatch(context.Background(), Remove(aID))
	require.Error(t, err)
	assert.Equal(t, []string{aID, bID}, ids(m.Snapshot()))
}

func TestMirror_AddFailureDropsProvisionalLine(t *testing.T) {
	m, _, _, _ := mirrorFixture(t)
	before := m.Snapshot()

	_, err := m.Dispatch(context.Background(), Add(NewItem{ProductID: "C", Quantity: 1}))
	require.Error(t, err, "no stock for C")
	assertSameCart(t, before, m.Snapshot())
}

func TestMirror_TimeoutRollsBack(t *testing.T) {
	m, server, aID, _ := mirrorFixture(t)
	m.timeout = 20 * time.Millisecond
	server.hook = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	before := m.Snapshot()

	_, err := m.Dispatch(context.Background(), UpdateQuantity(aID, 4))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assertSameCart(t, before, m.Snapshot())
}

func TestMirror_SecondMutationOnSameItemRejected(t *testing.T) {
	m, server, aID, _ := mirrorFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	server.hook = func(context.Context) error {
		entered <- struct{}{}
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Dispatch(context.Background(), UpdateQuantity(aID, 3))
		done <- err
	}()
	<-entered

	_, err := m.Dispatch(context.Background(), UpdateQuantity(aID, 4))
	assert.ErrorIs(t, err, ErrMutationPending)

	close(release)
	require.NoError(t, <-done)
	it, _ := m.Snapshot().Item(aID)
	assert.Equal(t, int64(3), it.Quantity)
}

// An Add for a product and an update of that product's line target the
// same line, so they must not be in flight together.
func TestMirror_AddRejectedWhileLineUpdatePending(t *testing.T) {
	m, server, aID, _ := mirrorFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	server.hook = func(context.Context) error {
		entered <- struct{}{}
		<-release
		return errors.New("503")
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Dispatch(context.Background(), UpdateQuantity(aID, 5))
		done <- err
	}()
	<-entered

	_, err := m.Dispatch(context.Background(), Add(NewItem{ProductID: "A", Quantity: 2}))
	assert.ErrorIs(t, err, ErrMutationPending)
	op, ok := m.Pending(productKeyPrefix + "A")
	assert.True(t, ok)
	assert.Equal(t, PendingUpdate, op)
	it, _ := m.Snapshot().Item(aID)
	assert.Equal(t, int64(5), it.Quantity)

	close(release)
	require.Error(t, <-done)
	it, _ = m.Snapshot().Item(aID)
	assert.Equal(t, int64(2), it.Quantity)
	assert.Equal(t, int64(8), server.stock["A"])
	_, ok = m.Pending(aID)
	assert.False(t, ok)
	_, ok = m.Pending(productKeyPrefix + "A")
	assert.False(t, ok)
}

func TestMirror_LineUpdateRejectedWhileAddPending(t *testing.T) {
	m, server, aID, _ := mirrorFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	server.hook = func(context.Context) error {
		entered <- struct{}{}
		<-release
		return errors.New("503")
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Dispatch(context.Background(), Add(NewItem{ProductID: "A", Quantity: 2}))
		done <- err
	}()
	<-entered

	_, err := m.Dispatch(context.Background(), UpdateQuantity(aID, 5))
	assert.ErrorIs(t, err, ErrMutationPending)
	_, err = m.Dispatch(context.Background(), Remove(aID))
	assert.ErrorIs(t, err, ErrMutationPending)

	close(release)
	require.Error(t, <-done)
	it, _ := m.Snapshot().Item(aID)
	assert.Equal(t, int64(2), it.Quantity)
	assert.Equal(t, int64(8), server.stock["A"])
}

// An update on the provisional line of an in-flight Add is rejected too.
func TestMirror_ProvisionalLineLockedWithItsAdd(t *testing.T) {
	m, server, _, _ := mirrorFixture(t)
	server.stock["C"] = 5
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	server.hook = func(context.Context) error {
		entered <- struct{}{}
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Dispatch(context.Background(), Add(NewItem{ProductID: "C", Quantity: 1}))
		done <- err
	}()
	<-entered

	provisional, _ := m.Snapshot().ItemByProduct("C")
	require.NotNil(t, provisional)
	_, err := m.Dispatch(context.Background(), UpdateQuantity(provisional.ID, 3))
	assert.ErrorIs(t, err, ErrMutationPending)

	close(release)
	require.NoError(t, <-done)
	c, _ := m.Snapshot().ItemByProduct("C")
	require.NotNil(t, c)
	assert.Equal(t, int64(1), c.Quantity)
	assert.False(t, c.ID == provisional.ID)
}

// A failure on one item rolls back only that item, even while another item's
// mutation succeeds concurrently.
func TestMirror_ConcurrentItemsCompensateIndependently(t *testing.T) {
	m, server, aID, bID := mirrorFixture(t)

	var once sync.Once
	aEntered := make(chan struct{})
	releaseA := make(chan struct{})
	server.hook = func(ctx context.Context) error {
		var first bool
		once.Do(func() { first = true })
		if first {
			close(aEntered)
			<-releaseA
			return errors.New("503")
		}
		return nil
	}

	aDone := make(chan error, 1)
	go func() {
		_, err := m.Dispatch(context.Background(), UpdateQuantity(aID, 9))
		aDone <- err
	}()
	<-aEntered

	_, err := m.Dispatch(context.Background(), UpdateQuantity(bID, 4))
	require.NoError(t, err)

	// B's authoritative cart is adopted with A's prediction re-applied.
	it, _ := m.Snapshot().Item(aID)
	assert.Equal(t, int64(9), it.Quantity)

	close(releaseA)
	require.Error(t, <-aDone)

	snap := m.Snapshot()
	a, _ := snap.Item(aID)
	b, _ := snap.Item(bID)
	assert.Equal(t, int64(2), a.Quantity)
	assert.Equal(t, int64(4), b.Quantity)
	assert.Equal(t, int64(6), snap.TotalCount)
}

func TestMirror_Refresh(t *testing.T) {
	m, server, _, _ := mirrorFixture(t)
	_, err := server.Clear(context.Background())
	require.NoError(t, err)

	cart, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Empty(t, m.Snapshot().Items)
}

func assertSameCart(t *testing.T, want, got *Cart) {
	t.Helper()
	require.Equal(t, ids(want), ids(got))
	for i := range want.Items {
		assert.Equal(t, want.Items[i].Quantity, got.Items[i].Quantity, want.Items[i].ID)
	}
	assert.Equal(t, want.TotalCount, got.TotalCount)
	assert.True(t, want.Subtotal.Equal(got.Subtotal), "subtotal %s != %s", want.Subtotal, got.Subtotal)
}
