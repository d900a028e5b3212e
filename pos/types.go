/*
Package pos contains the cash-session and order-settlement core of a
point-of-sale system for a small food-service business.

PURPOSE:
  The core owns three things and nothing else:
  - The till session state machine (a till can only be open once).
  - The append-only cash movement ledger and its running balance.
  - Order settlement: an order and its matching sale movement commit
    together or not at all.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: exact decimal currency (shopspring/decimal, never float)
  - TillSession: one bounded period of the register being open
  - CashMovement: immutable ledger entry, amount always stored positive
  - Order/OrderItem: order with price-snapshot line items

DESIGN PRINCIPLES:
  1. Immutability: movements are never updated or deleted
  2. Precision: decimal.Decimal everywhere money flows
  3. Type safety: distinct ID types so a UserID can't slip into an OrderID
  4. Reconstructibility: the session balance always equals the initial
     amount plus the signed sum of its movements

SEE ALSO:
  - till.go: till session manager
  - settlement.go: order settlement engine
  - store.go: persistence interfaces
*/
package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact decimal currency values
// =============================================================================

// Money is an exact decimal currency amount. It is an alias so that all
// of decimal.Decimal's arithmetic is available without wrapping.
type Money = decimal.Decimal

// NewMoney builds a Money value from major units and cents.
func NewMoney(units int64, cents int64) Money {
	return decimal.New(units*100+cents, -2)
}

// MustMoney parses a decimal string ("30.00"). Invalid input yields zero;
// it is intended for constants and tests, not user input.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SessionID string
type MovementID string
type OrderID string
type UserID string
type ProductID string
type CustomerID string

// Short returns a compact order reference for receipts and movement
// descriptions ("Sale - Order #ab12cd34").
func (id OrderID) Short() string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// =============================================================================
// CASH MOVEMENT - Immutable ledger entry
// =============================================================================

type MovementType string

const (
	MovementOpening    MovementType = "opening"
	MovementClosing    MovementType = "closing"
	MovementSale       MovementType = "sale"
	MovementExpense    MovementType = "expense"
	MovementWithdrawal MovementType = "withdrawal"
	MovementDeposit    MovementType = "deposit"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementOpening, MovementClosing, MovementSale,
		MovementExpense, MovementWithdrawal, MovementDeposit:
		return true
	}
	return false
}

// Inflow reports whether the type adds to the till balance.
// Amounts are stored positive; direction is implied by the type.
func (t MovementType) Inflow() bool {
	switch t {
	case MovementOpening, MovementSale, MovementDeposit:
		return true
	}
	return false
}

// Manual reports whether the type may be recorded directly by a cashier.
// opening/closing are reserved for the session lifecycle and sale for
// order settlement.
func (t MovementType) Manual() bool {
	switch t {
	case MovementDeposit, MovementWithdrawal, MovementExpense:
		return true
	}
	return false
}

// SignedDelta returns the balance delta this type implies for a positive
// stored amount: +amount for inflows, -amount for outflows.
func (t MovementType) SignedDelta(amount Money) Money {
	if t.Inflow() {
		return amount
	}
	return amount.Neg()
}

// CashMovement is a single recorded change to the till balance.
// Movements are append-only: never updated, never deleted.
type CashMovement struct {
	ID          MovementID
	Type        MovementType
	Amount      Money // always stored positive
	Description string
	OrderID     OrderID // back-reference for sale movements, never ownership
	UserID      UserID
	CreatedAt   time.Time
}

// MovementDetail is a movement joined with display fields for the
// cashier screen: the acting user's name and, for sale movements, the
// originating order's table number.
type MovementDetail struct {
	CashMovement
	UserName    string
	TableNumber string
}

// =============================================================================
// TILL SESSION - One bounded period of the register being open
// =============================================================================

// TillSession tracks the running balance of an open register.
// At most one session is open at any time, system-wide. Closed sessions
// are kept as historical records.
type TillSession struct {
	ID            SessionID
	IsOpen        bool
	OpenedAt      time.Time
	OpenedBy      UserID
	InitialAmount Money
	CurrentAmount Money
}

// =============================================================================
// ORDER - Settled atomically with its items and sale movement
// =============================================================================

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderItem is a line item with a price snapshot taken at order time.
// The unit price is never re-read from the catalog afterwards.
type OrderItem struct {
	ID        string
	ProductID ProductID
	Quantity  int
	UnitPrice Money
	Notes     string

	// ProductName is resolved on reads for display; not persisted on the item.
	ProductName string
}

// Subtotal is quantity * unit price.
func (i OrderItem) Subtotal() Money {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order owns its items (cascade lifetime). Total equals the sum of item
// subtotals at creation time and is never recomputed from current
// catalog prices.
type Order struct {
	ID          OrderID
	CustomerID  CustomerID // optional weak reference; empty for walk-ins
	UserID      UserID
	TableNumber string
	Status      OrderStatus
	Total       Money
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Items       []OrderItem

	// CustomerName is resolved on reads for display.
	CustomerName string
}

// ItemsTotal sums the item subtotals.
func (o Order) ItemsTotal() Money {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// =============================================================================
// ORDER DRAFT - Input to PlaceOrder
// =============================================================================

// DraftItem is a requested line item. A zero UnitPrice means "resolve
// the current catalog price"; a non-zero one is an explicit snapshot
// (the original cart already carried prices).
type DraftItem struct {
	ProductID ProductID
	Quantity  int
	UnitPrice Money
	Notes     string
}

// OrderDraft is what a caller submits to the settlement engine. The
// engine computes the authoritative total from the items; drafts carry
// no client-side total to trust.
type OrderDraft struct {
	CustomerID  CustomerID
	UserID      UserID
	TableNumber string
	Items       []DraftItem
}

// =============================================================================
// EXTERNAL COLLABORATOR RECORDS
// =============================================================================

// Product as seen by the settlement engine for price resolution.
type Product struct {
	ID       ProductID
	Name     string
	Price    Money
	Category string
}

// Customer as resolved for order display.
type Customer struct {
	ID    CustomerID
	Name  string
	Phone string
}

// User supplies display names for movement listings. The core performs
// no authentication; callers hand in an already-authenticated UserID.
type User struct {
	ID   UserID
	Name string
}
