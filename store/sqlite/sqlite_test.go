package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanchonete/pos-engine/pos"
	"github.com/lanchonete/pos-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func money(s string) pos.Money {
	return pos.MustMoney(s)
}

func openSession(t *testing.T, store *sqlite.Store, initial string) pos.TillSession {
	t.Helper()
	sess := pos.TillSession{
		ID:            pos.SessionID("sess-" + t.Name()),
		IsOpen:        true,
		OpenedAt:      time.Now().UTC().Truncate(time.Second),
		OpenedBy:      "user-1",
		InitialAmount: money(initial),
		CurrentAmount: money(initial),
	}
	require.NoError(t, store.InsertSession(context.Background(), sess))
	return sess
}

// =============================================================================
// MIGRATIONS
// =============================================================================

func TestSqlite_Migrations_IdempotentAcrossReopens(t *testing.T) {
	// GIVEN: A file database migrated once
	// WHEN: Opening it a second time
	// THEN: Migrations are skipped, data survives

	path := filepath.Join(t.TempDir(), "pos.db")

	store, err := sqlite.New(path)
	require.NoError(t, err)
	sess := openSession(t, store, "100.00")
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	current, err := reopened.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, sess.ID, current.ID)
	assert.True(t, current.InitialAmount.Equal(money("100.00")))
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSqlite_SingleOpenIndex_MapsToErrAlreadyOpen(t *testing.T) {
	// The partial unique index is the last line of defense when a second
	// open session row reaches the database.
	store := newTestStore(t)
	ctx := context.Background()

	openSession(t, store, "50.00")

	err := store.InsertSession(ctx, pos.TillSession{
		ID: "sess-2", IsOpen: true, OpenedAt: time.Now().UTC(),
		OpenedBy: "user-2", InitialAmount: money("10.00"), CurrentAmount: money("10.00"),
	})
	assert.ErrorIs(t, err, pos.ErrAlreadyOpen)
}

func TestSqlite_ClosedSessions_MayCoexist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := openSession(t, store, "50.00")
	require.NoError(t, store.CloseSession(ctx, sess.ID))

	// A second closed row and a new open row are both fine.
	require.NoError(t, store.InsertSession(ctx, pos.TillSession{
		ID: "sess-2", IsOpen: false, OpenedAt: time.Now().UTC(),
		OpenedBy: "user-1", InitialAmount: money("1.00"), CurrentAmount: money("1.00"),
	}))
	require.NoError(t, store.InsertSession(ctx, pos.TillSession{
		ID: "sess-3", IsOpen: true, OpenedAt: time.Now().UTC(),
		OpenedBy: "user-1", InitialAmount: money("2.00"), CurrentAmount: money("2.00"),
	}))

	current, err := store.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, pos.SessionID("sess-3"), current.ID)
}

func TestSqlite_CurrentSession_NilWhenClosed(t *testing.T) {
	store := newTestStore(t)

	current, err := store.CurrentSession(context.Background())

	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSqlite_ApplyBalanceDelta_ExactDecimalArithmetic(t *testing.T) {
	// GIVEN: A session at 10.10
	// WHEN: Applying +0.20 a hundred times
	// THEN: The balance is exactly 30.10 (floats would drift)

	store := newTestStore(t)
	ctx := context.Background()
	sess := openSession(t, store, "10.10")

	for i := 0; i < 100; i++ {
		require.NoError(t, store.ApplyBalanceDelta(ctx, sess.ID, money("0.20")))
	}

	current, err := store.CurrentSession(ctx)
	require.NoError(t, err)
	assert.True(t, current.CurrentAmount.Equal(money("30.10")),
		"expected 30.10, got %s", current.CurrentAmount)
}

func TestSqlite_ApplyBalanceDelta_ClosedSession_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := openSession(t, store, "10.00")
	require.NoError(t, store.CloseSession(ctx, sess.ID))

	err := store.ApplyBalanceDelta(ctx, sess.ID, money("5.00"))
	assert.ErrorIs(t, err, pos.ErrNotOpen)
}

// =============================================================================
// TRANSACTION SCOPE
// =============================================================================

func TestSqlite_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes a movement and then fails
	// WHEN: WithTx returns the error
	// THEN: The movement is not visible afterwards

	store := newTestStore(t)
	ctx := context.Background()
	openSession(t, store, "100.00")

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s pos.Store) error {
		if err := s.AppendMovement(ctx, pos.CashMovement{
			ID: "mv-1", Type: pos.MovementDeposit, Amount: money("50.00"),
			UserID: "user-1", CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	movements, err := store.MovementsSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestSqlite_WithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sess := openSession(t, store, "100.00")

	err := store.WithTx(ctx, func(s pos.Store) error {
		if err := s.AppendMovement(ctx, pos.CashMovement{
			ID: "mv-1", Type: pos.MovementDeposit, Amount: money("50.00"),
			UserID: "user-1", CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return s.ApplyBalanceDelta(ctx, sess.ID, money("50.00"))
	})
	require.NoError(t, err)

	current, err := store.CurrentSession(ctx)
	require.NoError(t, err)
	assert.True(t, current.CurrentAmount.Equal(money("150.00")))

	movements, err := store.MovementsSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func TestSqlite_MovementsForDate_JoinsUserAndTable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.SaveUser(ctx, pos.User{ID: "user-1", Name: "Maria"}))
	require.NoError(t, store.InsertOrder(ctx, pos.Order{
		ID: "order-1", UserID: "user-1", TableNumber: "4",
		Status: pos.StatusPending, Total: money("10.00"),
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.AppendMovement(ctx, pos.CashMovement{
		ID: "mv-1", Type: pos.MovementSale, Amount: money("10.00"),
		Description: "Sale - Order #order-1", OrderID: "order-1",
		UserID: "user-1", CreatedAt: now,
	}))
	require.NoError(t, store.AppendMovement(ctx, pos.CashMovement{
		ID: "mv-2", Type: pos.MovementDeposit, Amount: money("5.00"),
		UserID: "user-ghost", CreatedAt: now.Add(time.Second),
	}))

	details, err := store.MovementsForDate(ctx, now)
	require.NoError(t, err)
	require.Len(t, details, 2)

	// Newest first; unknown user and absent order degrade to empty joins.
	assert.Equal(t, pos.MovementID("mv-2"), details[0].ID)
	assert.Empty(t, details[0].UserName)
	assert.Empty(t, details[0].TableNumber)

	assert.Equal(t, pos.MovementID("mv-1"), details[1].ID)
	assert.Equal(t, "Maria", details[1].UserName)
	assert.Equal(t, "4", details[1].TableNumber)
}

func TestSqlite_MovementsInRange_HalfOpenBounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.August, 27, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"mv-a", "mv-b", "mv-c"} {
		require.NoError(t, store.AppendMovement(ctx, pos.CashMovement{
			ID: pos.MovementID(id), Type: pos.MovementDeposit, Amount: money("1.00"),
			UserID: "user-1", CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	movements, err := store.MovementsInRange(ctx, base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, pos.MovementID("mv-a"), movements[0].ID)
	assert.Equal(t, pos.MovementID("mv-b"), movements[1].ID)
}

// =============================================================================
// ORDERS
// =============================================================================

func TestSqlite_Orders_RoundTripWithItemsAndJoins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	product := sqlite.ProductRecord{Name: "Coffee", Price: money("5.00"), Category: "drinks", Active: true}
	require.NoError(t, store.SaveProduct(ctx, &product))
	customer := sqlite.CustomerRecord{Name: "Ana", Phone: "555-0101"}
	require.NoError(t, store.SaveCustomer(ctx, &customer))

	order := pos.Order{
		ID: "order-1", CustomerID: customer.ID, UserID: "user-1",
		TableNumber: "2", Status: pos.StatusPending, Total: money("10.00"),
		CreatedAt: now, UpdatedAt: now,
		Items: []pos.OrderItem{
			{ID: "item-1", ProductID: product.ID, Quantity: 2, UnitPrice: money("5.00"), Notes: "no sugar"},
		},
	}
	require.NoError(t, store.InsertOrder(ctx, order))

	got, err := store.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.CustomerName)
	assert.True(t, got.Total.Equal(money("10.00")))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Coffee", got.Items[0].ProductName)
	assert.Equal(t, "no sugar", got.Items[0].Notes)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestSqlite_ListOrders_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.August, 27, 9, 0, 0, 0, time.UTC)

	for i, id := range []pos.OrderID{"order-a", "order-b"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.InsertOrder(ctx, pos.Order{
			ID: id, UserID: "user-1", Status: pos.StatusPending,
			Total: money("1.00"), CreatedAt: ts, UpdatedAt: ts,
		}))
	}

	orders, err := store.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, pos.OrderID("order-b"), orders[0].ID)
	assert.Equal(t, pos.OrderID("order-a"), orders[1].ID)
}

func TestSqlite_OrderStatus_ReadAndWrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.InsertOrder(ctx, pos.Order{
		ID: "order-1", UserID: "user-1", Status: pos.StatusPending,
		Total: money("1.00"), CreatedAt: now, UpdatedAt: now,
	}))

	status, err := store.GetOrderStatus(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, pos.StatusPending, status)

	require.NoError(t, store.SetOrderStatus(ctx, "order-1", pos.StatusPreparing))
	status, err = store.GetOrderStatus(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, pos.StatusPreparing, status)

	_, err = store.GetOrderStatus(ctx, "order-ghost")
	assert.ErrorIs(t, err, pos.ErrOrderNotFound)
	err = store.SetOrderStatus(ctx, "order-ghost", pos.StatusPreparing)
	assert.ErrorIs(t, err, pos.ErrOrderNotFound)
}

// =============================================================================
// DIRECTORIES
// =============================================================================

func TestSqlite_Catalog_ActiveFilterAndSoftDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	product := sqlite.ProductRecord{Name: "Coffee", Price: money("5.00"), Category: "drinks", Active: true}
	require.NoError(t, store.SaveProduct(ctx, &product))
	require.NotEmpty(t, product.ID)

	got, err := store.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coffee", got.Name)
	assert.True(t, got.Price.Equal(money("5.00")))

	require.NoError(t, store.DeactivateProduct(ctx, product.ID))

	_, err = store.GetProduct(ctx, product.ID)
	assert.ErrorIs(t, err, pos.ErrProductNotFound)

	products, err := store.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestSqlite_Customers_SearchAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Ana Silva", "Anabela", "Jorge"} {
		c := sqlite.CustomerRecord{Name: name}
		require.NoError(t, store.SaveCustomer(ctx, &c))
	}

	found, err := store.SearchCustomers(ctx, "Ana")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Ana Silva", found[0].Name)
	assert.Equal(t, "Anabela", found[1].Name)

	require.NoError(t, store.DeleteCustomer(ctx, found[0].ID))
	all, err := store.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSqlite_Users_UnknownIsNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, pos.User{ID: "user-1", Name: "Maria"}))

	got, err := store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Maria", got.Name)

	missing, err := store.GetUser(ctx, "user-ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
