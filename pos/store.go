/*
store.go - Persistence interfaces for the POS core

PURPOSE:
  Defines the boundary between the domain engines and the embedded
  relational store. Every multi-step mutation in till.go and
  settlement.go runs inside TxStore.WithTx: a scoped transaction with
  guaranteed commit-or-rollback on every exit path.

APPEND-ONLY CONTRACT:
  The ledger side of Store has AppendMovement and reads only. No update,
  no delete. The session balance is mutated exclusively through
  ApplyBalanceDelta (a delta, never an overwrite).

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - pos/store: in-memory store for tests

SEE ALSO:
  - till.go, settlement.go, report.go: consumers
*/
package pos

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Operations available inside and outside a transaction scope
// =============================================================================

// Store is the persistence surface the engines program against. When
// obtained through TxStore.WithTx, all calls share one database
// transaction.
type Store interface {
	// --- Till sessions ---

	// InsertSession persists a new open session.
	InsertSession(ctx context.Context, s TillSession) error

	// CurrentSession returns the open session, or nil if the till is closed.
	CurrentSession(ctx context.Context) (*TillSession, error)

	// CloseSession marks the session closed. Sessions are never deleted.
	CloseSession(ctx context.Context, id SessionID) error

	// ApplyBalanceDelta adds delta (signed) to the session's current
	// amount. This is the only way the balance changes.
	ApplyBalanceDelta(ctx context.Context, id SessionID, delta Money) error

	// --- Cash movement ledger (append-only) ---

	// AppendMovement adds a movement. The ONLY ledger write.
	AppendMovement(ctx context.Context, m CashMovement) error

	// MovementsForDate returns the movements of one calendar day, newest
	// first, joined with user names and sale table numbers. Read-only.
	MovementsForDate(ctx context.Context, day time.Time) ([]MovementDetail, error)

	// MovementsInRange returns movements with CreatedAt in [from, to).
	MovementsInRange(ctx context.Context, from, to time.Time) ([]CashMovement, error)

	// MovementsSince returns movements created at or after t, oldest
	// first. Used to reconstruct a session balance from the ledger.
	MovementsSince(ctx context.Context, t time.Time) ([]CashMovement, error)

	// --- Orders ---

	// InsertOrder persists an order together with its items.
	InsertOrder(ctx context.Context, o Order) error

	// GetOrder returns an order with items and resolved display names,
	// or ErrOrderNotFound.
	GetOrder(ctx context.Context, id OrderID) (*Order, error)

	// ListOrders returns all orders with items, most recent first.
	ListOrders(ctx context.Context) ([]Order, error)

	// OrdersInRange returns orders with CreatedAt in [from, to).
	OrdersInRange(ctx context.Context, from, to time.Time) ([]Order, error)

	// GetOrderStatus returns just the status, or ErrOrderNotFound.
	GetOrderStatus(ctx context.Context, id OrderID) (OrderStatus, error)

	// SetOrderStatus overwrites the status and bumps UpdatedAt.
	SetOrderStatus(ctx context.Context, id OrderID, status OrderStatus) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore adds transactional scoping to Store. Every multi-statement
// operation in this core MUST go through WithTx; a check made inside fn
// is guaranteed consistent with the writes that follow it.
type TxStore interface {
	Store

	// WithTx executes fn within one transaction. fn returning an error
	// rolls everything back; nil commits.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// EXTERNAL COLLABORATORS - consumed, not designed here
// =============================================================================

// Catalog resolves products for line-item pricing.
type Catalog interface {
	// GetProduct returns the product or ErrProductNotFound.
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
}

// CustomerDirectory resolves customer display data.
type CustomerDirectory interface {
	// GetCustomer returns the customer, or nil if unknown.
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
}

// UserDirectory resolves acting users' display names.
type UserDirectory interface {
	// GetUser returns the user, or nil if unknown.
	GetUser(ctx context.Context, id UserID) (*User, error)
}
