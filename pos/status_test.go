package pos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanchonete/pos-engine/pos"
)

func timeZero() time.Time {
	return time.Time{}
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

func TestStatus_CanTransition_ForwardOnlyFlow(t *testing.T) {
	allowed := []struct{ from, to pos.OrderStatus }{
		{pos.StatusPending, pos.StatusPreparing},
		{pos.StatusPending, pos.StatusCancelled},
		{pos.StatusPreparing, pos.StatusReady},
		{pos.StatusReady, pos.StatusDelivered},
	}
	for _, tc := range allowed {
		assert.True(t, pos.CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	rejected := []struct{ from, to pos.OrderStatus }{
		{pos.StatusPending, pos.StatusReady},      // skipping a step
		{pos.StatusPending, pos.StatusDelivered},  // skipping two
		{pos.StatusPreparing, pos.StatusPending},  // backwards
		{pos.StatusPreparing, pos.StatusCancelled}, // cancel only from pending
		{pos.StatusReady, pos.StatusPreparing},    // backwards
		{pos.StatusDelivered, pos.StatusPending},  // terminal
		{pos.StatusCancelled, pos.StatusPreparing}, // terminal
		{pos.StatusPending, pos.StatusPending},    // self-loop
	}
	for _, tc := range rejected {
		assert.False(t, pos.CanTransition(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, pos.StatusDelivered.Terminal())
	assert.True(t, pos.StatusCancelled.Terminal())
	assert.False(t, pos.StatusPending.Terminal())
	assert.False(t, pos.StatusPreparing.Terminal())
	assert.False(t, pos.StatusReady.Terminal())
}

func TestStatus_ValidateTransition_CarriesContext(t *testing.T) {
	err := pos.ValidateTransition("order-1", pos.StatusReady, pos.StatusPending)

	require.Error(t, err)
	assert.ErrorIs(t, err, pos.ErrInvalidTransition)
	var transErr *pos.TransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, pos.OrderID("order-1"), transErr.OrderID)
	assert.Equal(t, pos.StatusReady, transErr.From)
	assert.Equal(t, pos.StatusPending, transErr.To)
}

// =============================================================================
// ENGINE-LEVEL STATUS UPDATES
// =============================================================================

func TestSettlement_UpdateStatus_WalksTheFullFlow(t *testing.T) {
	// GIVEN: A settled pending order
	// WHEN: Advancing pending -> preparing -> ready -> delivered
	// THEN: Every step persists

	engine, till, _ := newTestSettlement(t)
	ctx := context.Background()

	_, err := till.Open(ctx, "user-1", money("0.00"))
	require.NoError(t, err)
	order, err := engine.PlaceOrder(ctx, coffeeDraft(1))
	require.NoError(t, err)

	for _, next := range []pos.OrderStatus{pos.StatusPreparing, pos.StatusReady, pos.StatusDelivered} {
		require.NoError(t, engine.UpdateStatus(ctx, order.ID, next))
		got, err := engine.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, next, got.Status)
	}
}

func TestSettlement_UpdateStatus_InvalidJump_Rejected(t *testing.T) {
	engine, till, _ := newTestSettlement(t)
	ctx := context.Background()

	_, err := till.Open(ctx, "user-1", money("0.00"))
	require.NoError(t, err)
	order, err := engine.PlaceOrder(ctx, coffeeDraft(1))
	require.NoError(t, err)

	err = engine.UpdateStatus(ctx, order.ID, pos.StatusDelivered)
	assert.ErrorIs(t, err, pos.ErrInvalidTransition)

	// The failed attempt leaves the status untouched.
	got, err := engine.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, pos.StatusPending, got.Status)
}

func TestSettlement_UpdateStatus_CancelKeepsSaleMovement(t *testing.T) {
	// Cancelling an order does not claw back cash. The sale movement and
	// the balance stand; reports exclude the cancelled order instead.
	engine, till, _ := newTestSettlement(t)
	ctx := context.Background()

	_, err := till.Open(ctx, "user-1", money("0.00"))
	require.NoError(t, err)
	order, err := engine.PlaceOrder(ctx, coffeeDraft(2)) // 10.00
	require.NoError(t, err)

	require.NoError(t, engine.UpdateStatus(ctx, order.ID, pos.StatusCancelled))

	current, err := till.CurrentStatus(ctx)
	require.NoError(t, err)
	assert.True(t, current.CurrentAmount.Equal(money("10.00")))
}

func TestSettlement_UpdateStatus_UnknownOrder_NotFound(t *testing.T) {
	engine, _, _ := newTestSettlement(t)

	err := engine.UpdateStatus(context.Background(), "order-ghost", pos.StatusPreparing)

	assert.ErrorIs(t, err, pos.ErrOrderNotFound)
}
