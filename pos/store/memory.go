// Package store provides an in-memory pos.TxStore for tests and dev.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/lanchonete/pos-engine/pos"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds everything in process. It also implements pos.Catalog,
// pos.CustomerDirectory and pos.UserDirectory so tests need a single
// fixture. Transactions are simulated with snapshot + restore.
type Memory struct {
	mu sync.RWMutex

	sessions  []pos.TillSession
	movements []pos.CashMovement
	orders    []pos.Order

	products  map[pos.ProductID]pos.Product
	customers map[pos.CustomerID]pos.Customer
	users     map[pos.UserID]pos.User
}

func NewMemory() *Memory {
	return &Memory{
		products:  make(map[pos.ProductID]pos.Product),
		customers: make(map[pos.CustomerID]pos.Customer),
		users:     make(map[pos.UserID]pos.User),
	}
}

// =============================================================================
// FIXTURE SEEDING
// =============================================================================

func (m *Memory) AddProduct(p pos.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *Memory) AddCustomer(c pos.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
}

func (m *Memory) AddUser(u pos.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// =============================================================================
// TRANSACTION SCOPE
// =============================================================================

// WithTx executes fn under the store lock against a view that bypasses
// locking. On error the pre-transaction snapshot is restored, so no
// partial state survives.
func (m *Memory) WithTx(_ context.Context, fn func(pos.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memView{m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	sessions  []pos.TillSession
	movements []pos.CashMovement
	orders    []pos.Order
}

func (m *Memory) snapshot() memSnapshot {
	return memSnapshot{
		sessions:  append([]pos.TillSession(nil), m.sessions...),
		movements: append([]pos.CashMovement(nil), m.movements...),
		orders:    copyOrders(m.orders),
	}
}

func (m *Memory) restore(s memSnapshot) {
	m.sessions = s.sessions
	m.movements = s.movements
	m.orders = s.orders
}

func copyOrders(orders []pos.Order) []pos.Order {
	out := make([]pos.Order, len(orders))
	for i, o := range orders {
		o.Items = append([]pos.OrderItem(nil), o.Items...)
		out[i] = o
	}
	return out
}

// =============================================================================
// pos.Store - locked entry points
// =============================================================================

func (m *Memory) InsertSession(_ context.Context, s pos.TillSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSessionLocked(s)
}

func (m *Memory) CurrentSession(_ context.Context) (*pos.TillSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentSessionLocked(), nil
}

func (m *Memory) CloseSession(_ context.Context, id pos.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeSessionLocked(id)
}

func (m *Memory) ApplyBalanceDelta(_ context.Context, id pos.SessionID, delta pos.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyBalanceDeltaLocked(id, delta)
}

func (m *Memory) AppendMovement(_ context.Context, mv pos.CashMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendMovementLocked(mv)
}

func (m *Memory) MovementsForDate(_ context.Context, day time.Time) ([]pos.MovementDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.movementsForDateLocked(day), nil
}

func (m *Memory) MovementsInRange(_ context.Context, from, to time.Time) ([]pos.CashMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.movementsInRangeLocked(from, to), nil
}

func (m *Memory) MovementsSince(_ context.Context, t time.Time) ([]pos.CashMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.movementsSinceLocked(t), nil
}

func (m *Memory) InsertOrder(_ context.Context, o pos.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertOrderLocked(o)
}

func (m *Memory) GetOrder(_ context.Context, id pos.OrderID) (*pos.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getOrderLocked(id)
}

func (m *Memory) ListOrders(_ context.Context) ([]pos.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOrdersLocked(), nil
}

func (m *Memory) OrdersInRange(_ context.Context, from, to time.Time) ([]pos.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ordersInRangeLocked(from, to), nil
}

func (m *Memory) GetOrderStatus(_ context.Context, id pos.OrderID) (pos.OrderStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getOrderStatusLocked(id)
}

func (m *Memory) SetOrderStatus(_ context.Context, id pos.OrderID, status pos.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setOrderStatusLocked(id, status)
}

// =============================================================================
// DIRECTORIES (pos.Catalog, pos.CustomerDirectory, pos.UserDirectory)
// =============================================================================

func (m *Memory) GetProduct(_ context.Context, id pos.ProductID) (*pos.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.products[id]; ok {
		return &p, nil
	}
	return nil, pos.ErrProductNotFound
}

func (m *Memory) GetCustomer(_ context.Context, id pos.CustomerID) (*pos.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.customers[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) GetUser(_ context.Context, id pos.UserID) (*pos.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

// =============================================================================
// LOCKED IMPLEMENTATIONS
// =============================================================================

func (m *Memory) insertSessionLocked(s pos.TillSession) error {
	if s.IsOpen && m.currentSessionLocked() != nil {
		return pos.ErrAlreadyOpen
	}
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *Memory) currentSessionLocked() *pos.TillSession {
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].IsOpen {
			s := m.sessions[i]
			return &s
		}
	}
	return nil
}

func (m *Memory) closeSessionLocked(id pos.SessionID) error {
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			m.sessions[i].IsOpen = false
			return nil
		}
	}
	return pos.ErrNotOpen
}

func (m *Memory) applyBalanceDeltaLocked(id pos.SessionID, delta pos.Money) error {
	for i := range m.sessions {
		if m.sessions[i].ID == id && m.sessions[i].IsOpen {
			m.sessions[i].CurrentAmount = m.sessions[i].CurrentAmount.Add(delta)
			return nil
		}
	}
	return pos.ErrNotOpen
}

func (m *Memory) appendMovementLocked(mv pos.CashMovement) error {
	m.movements = append(m.movements, mv)
	return nil
}

func (m *Memory) movementsForDateLocked(day time.Time) []pos.MovementDetail {
	y, mo, d := day.UTC().Date()
	var details []pos.MovementDetail
	for i := len(m.movements) - 1; i >= 0; i-- {
		mv := m.movements[i]
		my, mmo, md := mv.CreatedAt.UTC().Date()
		if my != y || mmo != mo || md != d {
			continue
		}
		detail := pos.MovementDetail{CashMovement: mv}
		if u, ok := m.users[mv.UserID]; ok {
			detail.UserName = u.Name
		}
		if mv.OrderID != "" {
			for _, o := range m.orders {
				if o.ID == mv.OrderID {
					detail.TableNumber = o.TableNumber
					break
				}
			}
		}
		details = append(details, detail)
	}
	return details
}

func (m *Memory) movementsInRangeLocked(from, to time.Time) []pos.CashMovement {
	var out []pos.CashMovement
	for _, mv := range m.movements {
		if !mv.CreatedAt.Before(from) && mv.CreatedAt.Before(to) {
			out = append(out, mv)
		}
	}
	return out
}

func (m *Memory) movementsSinceLocked(t time.Time) []pos.CashMovement {
	var out []pos.CashMovement
	for _, mv := range m.movements {
		if !mv.CreatedAt.Before(t) {
			out = append(out, mv)
		}
	}
	return out
}

func (m *Memory) insertOrderLocked(o pos.Order) error {
	o.Items = append([]pos.OrderItem(nil), o.Items...)
	m.orders = append(m.orders, o)
	return nil
}

func (m *Memory) resolveOrderLocked(o pos.Order) pos.Order {
	if o.CustomerID != "" {
		if c, ok := m.customers[o.CustomerID]; ok {
			o.CustomerName = c.Name
		}
	}
	items := make([]pos.OrderItem, len(o.Items))
	for i, item := range o.Items {
		if p, ok := m.products[item.ProductID]; ok {
			item.ProductName = p.Name
		}
		items[i] = item
	}
	o.Items = items
	return o
}

func (m *Memory) getOrderLocked(id pos.OrderID) (*pos.Order, error) {
	for _, o := range m.orders {
		if o.ID == id {
			resolved := m.resolveOrderLocked(o)
			return &resolved, nil
		}
	}
	return nil, pos.ErrOrderNotFound
}

func (m *Memory) listOrdersLocked() []pos.Order {
	out := make([]pos.Order, 0, len(m.orders))
	for i := len(m.orders) - 1; i >= 0; i-- {
		out = append(out, m.resolveOrderLocked(m.orders[i]))
	}
	return out
}

func (m *Memory) ordersInRangeLocked(from, to time.Time) []pos.Order {
	var out []pos.Order
	for _, o := range m.orders {
		if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, m.resolveOrderLocked(o))
		}
	}
	return out
}

func (m *Memory) getOrderStatusLocked(id pos.OrderID) (pos.OrderStatus, error) {
	for _, o := range m.orders {
		if o.ID == id {
			return o.Status, nil
		}
	}
	return "", pos.ErrOrderNotFound
}

func (m *Memory) setOrderStatusLocked(id pos.OrderID, status pos.OrderStatus) error {
	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Status = status
			m.orders[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return pos.ErrOrderNotFound
}

// =============================================================================
// TRANSACTIONAL VIEW - bypasses locking inside WithTx
// =============================================================================

type memView struct {
	parent *Memory
}

func (v *memView) InsertSession(_ context.Context, s pos.TillSession) error {
	return v.parent.insertSessionLocked(s)
}

func (v *memView) CurrentSession(_ context.Context) (*pos.TillSession, error) {
	return v.parent.currentSessionLocked(), nil
}

func (v *memView) CloseSession(_ context.Context, id pos.SessionID) error {
	return v.parent.closeSessionLocked(id)
}

func (v *memView) ApplyBalanceDelta(_ context.Context, id pos.SessionID, delta pos.Money) error {
	return v.parent.applyBalanceDeltaLocked(id, delta)
}

func (v *memView) AppendMovement(_ context.Context, mv pos.CashMovement) error {
	return v.parent.appendMovementLocked(mv)
}

func (v *memView) MovementsForDate(_ context.Context, day time.Time) ([]pos.MovementDetail, error) {
	return v.parent.movementsForDateLocked(day), nil
}

func (v *memView) MovementsInRange(_ context.Context, from, to time.Time) ([]pos.CashMovement, error) {
	return v.parent.movementsInRangeLocked(from, to), nil
}

func (v *memView) MovementsSince(_ context.Context, t time.Time) ([]pos.CashMovement, error) {
	return v.parent.movementsSinceLocked(t), nil
}

func (v *memView) InsertOrder(_ context.Context, o pos.Order) error {
	return v.parent.insertOrderLocked(o)
}

func (v *memView) GetOrder(_ context.Context, id pos.OrderID) (*pos.Order, error) {
	return v.parent.getOrderLocked(id)
}

func (v *memView) ListOrders(_ context.Context) ([]pos.Order, error) {
	return v.parent.listOrdersLocked(), nil
}

func (v *memView) OrdersInRange(_ context.Context, from, to time.Time) ([]pos.Order, error) {
	return v.parent.ordersInRangeLocked(from, to), nil
}

func (v *memView) GetOrderStatus(_ context.Context, id pos.OrderID) (pos.OrderStatus, error) {
	return v.parent.getOrderStatusLocked(id)
}

func (v *memView) SetOrderStatus(_ context.Context, id pos.OrderID, status pos.OrderStatus) error {
	return v.parent.setOrderStatusLocked(id, status)
}
