/*
Package sqlite provides the SQLite-backed implementation of the POS
storage interfaces.

PURPOSE:
  Implements pos.TxStore plus the external collaborator directories
  (pos.Catalog, pos.CustomerDirectory, pos.UserDirectory) over one
  embedded database file.

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statement in this package touches cash_movements.
  The till balance changes only through ApplyBalanceDelta.

KEY TABLES:
  till_sessions:  session rows, at most one with is_open = 1
  cash_movements: immutable ledger
  orders/order_items: settled orders with price snapshots
  products/customers/users: collaborator records

INVARIANT INDEX:
  idx_till_single_open (partial unique on is_open = 1) backstops the
  single-open-session invariant; its constraint error maps to
  pos.ErrAlreadyOpen.

CONCURRENCY:
  A sync.RWMutex serializes writers on top of SQLite's own locking;
  WAL mode keeps readers unblocked.

MONEY:
  Amounts are stored as decimal TEXT and re-parsed with
  shopspring/decimal. SQL arithmetic is never used on them.

USAGE:
  store, err := sqlite.New("./data/pos.db")
  if err != nil { ... }
  defer store.Close()
  till := pos.NewTillManager(store, logger)

SEE ALSO:
  - migrate.go: ordered schema migrations
  - pos/store.go: interface definitions
  - pos/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lanchonete/pos-engine/pos"
)

// Store implements pos.TxStore and the directory interfaces.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ pos.TxStore           = (*Store)(nil)
	_ pos.Catalog           = (*Store)(nil)
	_ pos.CustomerDirectory = (*Store)(nil)
	_ pos.UserDirectory     = (*Store)(nil)
)

// New opens (or creates) the database at dbPath and applies pending
// migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and matches
	// the single-writer discipline.
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL SCOPE (pos.TxStore)
// =============================================================================

// WithTx executes fn within one database transaction. Rollback is
// guaranteed on every error path, commit on success.
func (s *Store) WithTx(ctx context.Context, fn func(pos.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txView{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txView runs pos.Store calls against an open transaction. The store
// mutex is already held by WithTx.
type txView struct {
	q querier
}

func (v *txView) InsertSession(ctx context.Context, sess pos.TillSession) error {
	return insertSession(ctx, v.q, sess)
}
func (v *txView) CurrentSession(ctx context.Context) (*pos.TillSession, error) {
	return currentSession(ctx, v.q)
}
func (v *txView) CloseSession(ctx context.Context, id pos.SessionID) error {
	return closeSession(ctx, v.q, id)
}
func (v *txView) ApplyBalanceDelta(ctx context.Context, id pos.SessionID, delta pos.Money) error {
	return applyBalanceDelta(ctx, v.q, id, delta)
}
func (v *txView) AppendMovement(ctx context.Context, m pos.CashMovement) error {
	return appendMovement(ctx, v.q, m)
}
func (v *txView) MovementsForDate(ctx context.Context, day time.Time) ([]pos.MovementDetail, error) {
	return movementsForDate(ctx, v.q, day)
}
func (v *txView) MovementsInRange(ctx context.Context, from, to time.Time) ([]pos.CashMovement, error) {
	return movementsInRange(ctx, v.q, from, to)
}
func (v *txView) MovementsSince(ctx context.Context, t time.Time) ([]pos.CashMovement, error) {
	return movementsSince(ctx, v.q, t)
}
func (v *txView) InsertOrder(ctx context.Context, o pos.Order) error {
	return insertOrder(ctx, v.q, o)
}
func (v *txView) GetOrder(ctx context.Context, id pos.OrderID) (*pos.Order, error) {
	return getOrder(ctx, v.q, id)
}
func (v *txView) ListOrders(ctx context.Context) ([]pos.Order, error) {
	return listOrders(ctx, v.q)
}
func (v *txView) OrdersInRange(ctx context.Context, from, to time.Time) ([]pos.Order, error) {
	return ordersInRange(ctx, v.q, from, to)
}
func (v *txView) GetOrderStatus(ctx context.Context, id pos.OrderID) (pos.OrderStatus, error) {
	return getOrderStatus(ctx, v.q, id)
}
func (v *txView) SetOrderStatus(ctx context.Context, id pos.OrderID, status pos.OrderStatus) error {
	return setOrderStatus(ctx, v.q, id, status)
}

// =============================================================================
// pos.Store - locked entry points against the root connection
// =============================================================================

func (s *Store) InsertSession(ctx context.Context, sess pos.TillSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSession(ctx, s.db, sess)
}

func (s *Store) CurrentSession(ctx context.Context) (*pos.TillSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return currentSession(ctx, s.db)
}

func (s *Store) CloseSession(ctx context.Context, id pos.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closeSession(ctx, s.db, id)
}

func (s *Store) ApplyBalanceDelta(ctx context.Context, id pos.SessionID, delta pos.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return applyBalanceDelta(ctx, s.db, id, delta)
}

func (s *Store) AppendMovement(ctx context.Context, m pos.CashMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendMovement(ctx, s.db, m)
}

func (s *Store) MovementsForDate(ctx context.Context, day time.Time) ([]pos.MovementDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movementsForDate(ctx, s.db, day)
}

func (s *Store) MovementsInRange(ctx context.Context, from, to time.Time) ([]pos.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movementsInRange(ctx, s.db, from, to)
}

func (s *Store) MovementsSince(ctx context.Context, t time.Time) ([]pos.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movementsSince(ctx, s.db, t)
}

func (s *Store) InsertOrder(ctx context.Context, o pos.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOrder(ctx, s.db, o)
}

func (s *Store) GetOrder(ctx context.Context, id pos.OrderID) (*pos.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOrder(ctx, s.db, id)
}

func (s *Store) ListOrders(ctx context.Context) ([]pos.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOrders(ctx, s.db)
}

func (s *Store) OrdersInRange(ctx context.Context, from, to time.Time) ([]pos.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ordersInRange(ctx, s.db, from, to)
}

func (s *Store) GetOrderStatus(ctx context.Context, id pos.OrderID) (pos.OrderStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOrderStatus(ctx, s.db, id)
}

func (s *Store) SetOrderStatus(ctx context.Context, id pos.OrderID, status pos.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setOrderStatus(ctx, s.db, id, status)
}

// =============================================================================
// TILL SESSIONS
// =============================================================================

func insertSession(ctx context.Context, q querier, sess pos.TillSession) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO till_sessions (id, is_open, opened_at, opened_by, initial_amount, current_amount)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID,
		boolToInt(sess.IsOpen),
		sess.OpenedAt.UTC().Format(time.RFC3339),
		sess.OpenedBy,
		sess.InitialAmount.String(),
		sess.CurrentAmount.String(),
	)
	if err != nil {
		if isSingleOpenViolation(err) {
			return pos.ErrAlreadyOpen
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func currentSession(ctx context.Context, q querier) (*pos.TillSession, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, is_open, opened_at, opened_by, initial_amount, current_amount
		FROM till_sessions
		WHERE is_open = 1`)

	var (
		sess     pos.TillSession
		isOpen   int
		openedAt string
		initial  string
		current  string
	)
	err := row.Scan(&sess.ID, &isOpen, &openedAt, &sess.OpenedBy, &initial, &current)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current session: %w", err)
	}

	sess.IsOpen = isOpen == 1
	sess.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
	sess.InitialAmount = mustDecimal(initial)
	sess.CurrentAmount = mustDecimal(current)
	return &sess, nil
}

func closeSession(ctx context.Context, q querier, id pos.SessionID) error {
	res, err := q.ExecContext(ctx,
		"UPDATE till_sessions SET is_open = 0 WHERE id = ? AND is_open = 1", id)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pos.ErrNotOpen
	}
	return nil
}

// applyBalanceDelta is read-modify-write in Go so decimal arithmetic
// stays exact; callers hold the transaction scope.
func applyBalanceDelta(ctx context.Context, q querier, id pos.SessionID, delta pos.Money) error {
	var current string
	err := q.QueryRowContext(ctx,
		"SELECT current_amount FROM till_sessions WHERE id = ? AND is_open = 1", id,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return pos.ErrNotOpen
	}
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	next := mustDecimal(current).Add(delta)
	_, err = q.ExecContext(ctx,
		"UPDATE till_sessions SET current_amount = ? WHERE id = ?", next.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return nil
}

// =============================================================================
// CASH MOVEMENT LEDGER (append-only)
// =============================================================================

func appendMovement(ctx context.Context, q querier, m pos.CashMovement) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cash_movements (id, type, amount, description, order_id, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.Type,
		m.Amount.String(),
		nullString(m.Description),
		nullString(string(m.OrderID)),
		m.UserID,
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

func movementsForDate(ctx context.Context, q querier, day time.Time) ([]pos.MovementDetail, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT cm.id, cm.type, cm.amount, cm.description, cm.order_id, cm.user_id, cm.created_at,
		       COALESCE(u.name, ''), COALESCE(o.table_number, '')
		FROM cash_movements cm
		LEFT JOIN users u ON cm.user_id = u.id
		LEFT JOIN orders o ON cm.order_id = o.id
		WHERE date(cm.created_at) = date(?)
		ORDER BY cm.created_at DESC, cm.rowid DESC`,
		day.UTC().Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var details []pos.MovementDetail
	for rows.Next() {
		var (
			d    pos.MovementDetail
			meta movementRow
		)
		if err := rows.Scan(
			&meta.id, &meta.typ, &meta.amount, &meta.description,
			&meta.orderID, &meta.userID, &meta.createdAt,
			&d.UserName, &d.TableNumber,
		); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		d.CashMovement = meta.toMovement()
		details = append(details, d)
	}
	return details, rows.Err()
}

func movementsInRange(ctx context.Context, q querier, from, to time.Time) ([]pos.CashMovement, error) {
	return queryMovements(ctx, q, `
		SELECT id, type, amount, description, order_id, user_id, created_at
		FROM cash_movements
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC, rowid ASC`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

func movementsSince(ctx context.Context, q querier, t time.Time) ([]pos.CashMovement, error) {
	return queryMovements(ctx, q, `
		SELECT id, type, amount, description, order_id, user_id, created_at
		FROM cash_movements
		WHERE created_at >= ?
		ORDER BY created_at ASC, rowid ASC`,
		t.UTC().Format(time.RFC3339))
}

func queryMovements(ctx context.Context, q querier, query string, args ...any) ([]pos.CashMovement, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []pos.CashMovement
	for rows.Next() {
		var meta movementRow
		if err := rows.Scan(
			&meta.id, &meta.typ, &meta.amount, &meta.description,
			&meta.orderID, &meta.userID, &meta.createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, meta.toMovement())
	}
	return movements, rows.Err()
}

type movementRow struct {
	id          string
	typ         string
	amount      string
	description sql.NullString
	orderID     sql.NullString
	userID      string
	createdAt   string
}

func (r movementRow) toMovement() pos.CashMovement {
	created, _ := time.Parse(time.RFC3339, r.createdAt)
	return pos.CashMovement{
		ID:          pos.MovementID(r.id),
		Type:        pos.MovementType(r.typ),
		Amount:      mustDecimal(r.amount),
		Description: r.description.String,
		OrderID:     pos.OrderID(r.orderID.String),
		UserID:      pos.UserID(r.userID),
		CreatedAt:   created,
	}
}

// =============================================================================
// ORDERS
// =============================================================================

func insertOrder(ctx context.Context, q querier, o pos.Order) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, user_id, table_number, status, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		nullString(string(o.CustomerID)),
		o.UserID,
		nullString(o.TableNumber),
		o.Status,
		o.Total.String(),
		o.CreatedAt.UTC().Format(time.RFC3339),
		o.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, notes)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, o.ID, item.ProductID, item.Quantity,
			item.UnitPrice.String(), nullString(item.Notes),
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func getOrder(ctx context.Context, q querier, id pos.OrderID) (*pos.Order, error) {
	row := q.QueryRowContext(ctx, `
		SELECT o.id, o.customer_id, o.user_id, o.table_number, o.status, o.total,
		       o.created_at, o.updated_at, COALESCE(c.name, '')
		FROM orders o
		LEFT JOIN customers c ON o.customer_id = c.id
		WHERE o.id = ?`, id)

	order, err := scanOrderRow(row)
	if err == sql.ErrNoRows {
		return nil, pos.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	items, err := orderItems(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func listOrders(ctx context.Context, q querier) ([]pos.Order, error) {
	return queryOrders(ctx, q, `
		SELECT o.id, o.customer_id, o.user_id, o.table_number, o.status, o.total,
		       o.created_at, o.updated_at, COALESCE(c.name, '')
		FROM orders o
		LEFT JOIN customers c ON o.customer_id = c.id
		ORDER BY o.created_at DESC, o.rowid DESC`)
}

func ordersInRange(ctx context.Context, q querier, from, to time.Time) ([]pos.Order, error) {
	return queryOrders(ctx, q, `
		SELECT o.id, o.customer_id, o.user_id, o.table_number, o.status, o.total,
		       o.created_at, o.updated_at, COALESCE(c.name, '')
		FROM orders o
		LEFT JOIN customers c ON o.customer_id = c.id
		WHERE o.created_at >= ? AND o.created_at < ?
		ORDER BY o.created_at ASC, o.rowid ASC`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

func queryOrders(ctx context.Context, q querier, query string, args ...any) ([]pos.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	var orders []pos.Order
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range orders {
		items, err := orderItems(ctx, q, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderRow(row rowScanner) (*pos.Order, error) {
	var (
		o           pos.Order
		customerID  sql.NullString
		tableNumber sql.NullString
		total       string
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&o.ID, &customerID, &o.UserID, &tableNumber, &o.Status,
		&total, &createdAt, &updatedAt, &o.CustomerName)
	if err != nil {
		return nil, err
	}

	o.CustomerID = pos.CustomerID(customerID.String)
	o.TableNumber = tableNumber.String
	o.Total = mustDecimal(total)
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &o, nil
}

func orderItems(ctx context.Context, q querier, orderID pos.OrderID) ([]pos.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT oi.id, oi.product_id, oi.quantity, oi.unit_price, oi.notes,
		       COALESCE(p.name, '')
		FROM order_items oi
		LEFT JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = ?
		ORDER BY oi.rowid ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []pos.OrderItem
	for rows.Next() {
		var (
			item      pos.OrderItem
			unitPrice string
			notes     sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity,
			&unitPrice, &notes, &item.ProductName); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.UnitPrice = mustDecimal(unitPrice)
		item.Notes = notes.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func getOrderStatus(ctx context.Context, q querier, id pos.OrderID) (pos.OrderStatus, error) {
	var status string
	err := q.QueryRowContext(ctx, "SELECT status FROM orders WHERE id = ?", id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", pos.ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read order status: %w", err)
	}
	return pos.OrderStatus(status), nil
}

func setOrderStatus(ctx context.Context, q querier, id pos.OrderID, status pos.OrderStatus) error {
	res, err := q.ExecContext(ctx,
		"UPDATE orders SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pos.ErrOrderNotFound
	}
	return nil
}

// =============================================================================
// CATALOG (pos.Catalog + management)
// =============================================================================

// GetProduct returns an active product or pos.ErrProductNotFound.
func (s *Store) GetProduct(ctx context.Context, id pos.ProductID) (*pos.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p     pos.Product
		price string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, price, category FROM products WHERE id = ? AND active = 1", id,
	).Scan(&p.ID, &p.Name, &price, &p.Category)
	if err == sql.ErrNoRows {
		return nil, pos.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	p.Price = mustDecimal(price)
	return &p, nil
}

// ProductRecord is a full catalog row for management surfaces.
type ProductRecord struct {
	ID          pos.ProductID
	Name        string
	Description string
	Price       pos.Money
	Category    string
	Active      bool
}

// SaveProduct inserts or updates a product. A new product gets a
// generated id, returned through the record.
func (s *Store) SaveProduct(ctx context.Context, p *ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = pos.ProductID(uuid.NewString())
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, category, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			price = excluded.price,
			category = excluded.category,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, nullString(p.Description), p.Price.String(),
		p.Category, boolToInt(p.Active), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// ListProducts returns active products ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), price, category, active
		FROM products WHERE active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []ProductRecord
	for rows.Next() {
		var (
			p      ProductRecord
			price  string
			active int
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Category, &active); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Price = mustDecimal(price)
		p.Active = active == 1
		products = append(products, p)
	}
	return products, rows.Err()
}

// DeactivateProduct soft-deletes a product; historical order items keep
// their snapshot price and name.
func (s *Store) DeactivateProduct(ctx context.Context, id pos.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET active = 0, updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}
	return nil
}

// =============================================================================
// CUSTOMERS (pos.CustomerDirectory + management)
// =============================================================================

// GetCustomer returns the customer, or nil if unknown.
func (s *Store) GetCustomer(ctx context.Context, id pos.CustomerID) (*pos.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c pos.Customer
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone FROM customers WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	c.Phone = phone.String
	return &c, nil
}

// CustomerRecord is a full customer row for management surfaces.
type CustomerRecord struct {
	ID      pos.CustomerID
	Name    string
	Phone   string
	Email   string
	Address string
	Notes   string
}

// SaveCustomer inserts or updates a customer.
func (s *Store) SaveCustomer(ctx context.Context, c *CustomerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = pos.CustomerID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, address, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			email = excluded.email,
			address = excluded.address,
			notes = excluded.notes`,
		c.ID, c.Name, nullString(c.Phone), nullString(c.Email),
		nullString(c.Address), nullString(c.Notes),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// ListCustomers returns all customers ordered by name.
func (s *Store) ListCustomers(ctx context.Context) ([]CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCustomers(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''),
		       COALESCE(address, ''), COALESCE(notes, '')
		FROM customers ORDER BY name`)
}

// SearchCustomers returns up to 5 customers whose name matches the
// search term, for autocomplete.
func (s *Store) SearchCustomers(ctx context.Context, term string) ([]CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCustomers(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''),
		       COALESCE(address, ''), COALESCE(notes, '')
		FROM customers
		WHERE name LIKE ?
		ORDER BY name
		LIMIT 5`, "%"+term+"%")
}

func (s *Store) queryCustomers(ctx context.Context, query string, args ...any) ([]CustomerRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []CustomerRecord
	for rows.Next() {
		var c CustomerRecord
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// DeleteCustomer removes a customer. Orders keep the id as a dangling
// weak reference; display resolution falls back to empty.
func (s *Store) DeleteCustomer(ctx context.Context, id pos.CustomerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}

// =============================================================================
// USERS (pos.UserDirectory)
// =============================================================================

// GetUser returns the user, or nil if unknown.
func (s *Store) GetUser(ctx context.Context, id pos.UserID) (*pos.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u pos.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name FROM users WHERE id = ? AND active = 1", id,
	).Scan(&u.ID, &u.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// SaveUser inserts or updates a user record.
func (s *Store) SaveUser(ctx context.Context, u pos.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, active, created_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		u.ID, u.Name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isSingleOpenViolation(err error) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), "till_sessions.is_open")
}
