/*
settlement.go - Order Settlement Engine

PURPOSE:
  Turns an order draft into a persisted order AND a balance-affecting
  sale movement, atomically. Four effects commit as one unit: the order
  row, its items, the sale movement, and the session balance delta. On
  any failure none of them are visible.

TILL GATING:
  An order can only be settled while a till session is open. The "is the
  till open" check and the subsequent writes share one transaction, so a
  concurrent close cannot slip in between and leave a sale posted
  against a closed till.

TOTAL SEMANTICS:
  The total is always recomputed here from the items
  (sum of quantity * unitPrice). Unit prices missing from the draft are
  snapshotted from the catalog at settlement time and never re-read.

SEE ALSO:
  - till.go: movement posting shared through the same transaction scope
  - status.go: the forward-only status flow UpdateStatus enforces
*/
package pos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementEngine places and tracks orders. Construct with
// NewSettlementEngine; the zero value is not usable.
type SettlementEngine struct {
	store   TxStore
	till    *TillManager
	catalog Catalog
	log     *zap.Logger
	now     func() time.Time
}

// NewSettlementEngine wires the engine to its store, the till manager
// whose session gates settlement, and the catalog used for price
// resolution. A nil logger disables logging.
func NewSettlementEngine(store TxStore, till *TillManager, catalog Catalog, log *zap.Logger) *SettlementEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementEngine{
		store:   store,
		till:    till,
		catalog: catalog,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// PLACE ORDER
// =============================================================================

// PlaceOrder validates the draft, resolves price snapshots, and settles
// the order: order + items + sale movement + balance delta, all or
// nothing. Fails with ErrTillClosed when no session is open.
func (e *SettlementEngine) PlaceOrder(ctx context.Context, draft OrderDraft) (*Order, error) {
	if len(draft.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if draft.UserID == "" {
		return nil, ErrMissingUser
	}

	items, total, err := e.resolveItems(ctx, draft.Items)
	if err != nil {
		return nil, err
	}

	now := e.now()
	order := Order{
		ID:          OrderID(uuid.NewString()),
		CustomerID:  draft.CustomerID,
		UserID:      draft.UserID,
		TableNumber: draft.TableNumber,
		Status:      StatusPending,
		Total:       total,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       items,
	}

	err = e.store.WithTx(ctx, func(s Store) error {
		session, err := s.CurrentSession(ctx)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrTillClosed
		}

		if err := s.InsertOrder(ctx, order); err != nil {
			return err
		}

		return e.till.postMovement(ctx, s, session.ID, CashMovement{
			ID:          MovementID(uuid.NewString()),
			Type:        MovementSale,
			Amount:      total,
			Description: saleDescription(order),
			OrderID:     order.ID,
			UserID:      draft.UserID,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, storageErr("place order", err)
	}

	e.log.Info("order settled",
		zap.String("order_id", string(order.ID)),
		zap.String("user_id", string(draft.UserID)),
		zap.String("total", total.String()),
		zap.Int("items", len(items)))
	return &order, nil
}

// resolveItems validates quantities, snapshots unit prices (from the
// catalog when the draft carries none), and computes the authoritative
// total. Pure validation and reads; runs before the write transaction.
func (e *SettlementEngine) resolveItems(ctx context.Context, drafts []DraftItem) ([]OrderItem, Money, error) {
	items := make([]OrderItem, 0, len(drafts))
	total := decimal.Zero

	for _, d := range drafts {
		if d.Quantity <= 0 {
			return nil, decimal.Zero, &AmountError{
				Field:  "quantity",
				Amount: decimal.NewFromInt(int64(d.Quantity)),
			}
		}
		if d.UnitPrice.IsNegative() {
			return nil, decimal.Zero, &AmountError{Field: "unit_price", Amount: d.UnitPrice}
		}

		price := d.UnitPrice
		if price.IsZero() {
			product, err := e.catalog.GetProduct(ctx, d.ProductID)
			if err != nil {
				return nil, decimal.Zero, err
			}
			if product == nil {
				return nil, decimal.Zero, ErrProductNotFound
			}
			price = product.Price
		}

		item := OrderItem{
			ID:        uuid.NewString(),
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			UnitPrice: price,
			Notes:     d.Notes,
		}
		items = append(items, item)
		total = total.Add(item.Subtotal())
	}

	return items, total, nil
}

func saleDescription(o Order) string {
	desc := fmt.Sprintf("Sale - Order #%s", o.ID.Short())
	if o.TableNumber != "" {
		desc += fmt.Sprintf(" - Table %s", o.TableNumber)
	}
	return desc
}

// =============================================================================
// STATUS
// =============================================================================

// UpdateStatus moves an order along the forward-only flow. The read of
// the current status and the write share one transaction.
func (e *SettlementEngine) UpdateStatus(ctx context.Context, id OrderID, status OrderStatus) error {
	err := e.store.WithTx(ctx, func(s Store) error {
		current, err := s.GetOrderStatus(ctx, id)
		if err != nil {
			return err
		}
		if err := ValidateTransition(id, current, status); err != nil {
			return err
		}
		return s.SetOrderStatus(ctx, id, status)
	})
	if err != nil {
		if IsClientError(err) || IsNotFound(err) {
			return err
		}
		return storageErr("update order status", err)
	}

	e.log.Info("order status updated",
		zap.String("order_id", string(id)),
		zap.String("status", string(status)))
	return nil
}

// =============================================================================
// READS
// =============================================================================

// FindAll returns all orders with items and resolved customer names,
// most recent first.
func (e *SettlementEngine) FindAll(ctx context.Context) ([]Order, error) {
	orders, err := e.store.ListOrders(ctx)
	if err != nil {
		return nil, storageErr("list orders", err)
	}
	return orders, nil
}

// FindByID returns one order with its items, or ErrOrderNotFound.
func (e *SettlementEngine) FindByID(ctx context.Context, id OrderID) (*Order, error) {
	order, err := e.store.GetOrder(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, storageErr("get order", err)
	}
	return order, nil
}
