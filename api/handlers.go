/*
handlers.go - HTTP API handlers for the POS engine

PURPOSE:
  Exposes the till, order and reporting engines via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Till:
    GET    /api/till                 Current open/closed status
    POST   /api/till/open            Open a session with an initial float
    POST   /api/till/close           Close the open session
    POST   /api/till/movements       Record a manual movement
    GET    /api/till/movements       Movements for one day (?date=YYYY-MM-DD)

  Orders:
    GET    /api/orders               List orders, newest first
    POST   /api/orders               Place (settle) an order
    GET    /api/orders/{id}          Get one order
    PUT    /api/orders/{id}/status   Advance the order status

  Reports:
    GET    /api/reports/summary      Range summary (?from=&to=&top=)

  Catalog / customers:
    GET    /api/products             List active products
    POST   /api/products             Create or update a product
    DELETE /api/products/{id}        Deactivate a product
    GET    /api/customers            List customers (?q= searches)
    POST   /api/customers            Create or update a customer
    DELETE /api/customers/{id}       Delete a customer

ERROR HANDLING:
  Domain errors map onto HTTP status by category:
  - 400: validation (empty order, bad amount, invalid transition)
  - 404: order or product not found
  - 409: state conflict (till already open, till closed)
  - 500: storage failures

SECURITY NOTE:
  No authentication middleware. The acting user arrives as user_id in
  the request body, pre-authenticated by the caller.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lanchonete/pos-engine/pos"
	"github.com/lanchonete/pos-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Till    *pos.TillManager
	Orders  *pos.SettlementEngine
	Reports *pos.Reporter
	Log     *zap.Logger
}

// NewHandler wires the domain engines around the given store.
func NewHandler(store *sqlite.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	till := pos.NewTillManager(store, log)
	return &Handler{
		Store:   store,
		Till:    till,
		Orders:  pos.NewSettlementEngine(store, till, store, log),
		Reports: pos.NewReporter(store),
		Log:     log,
	}
}

// =============================================================================
// TILL HANDLERS
// =============================================================================

// GetTillStatus returns whether the till is open and the open session.
// GET /api/till
func (h *Handler) GetTillStatus(w http.ResponseWriter, r *http.Request) {
	session, err := h.Till.CurrentStatus(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load till status", err)
		return
	}
	writeJSON(w, http.StatusOK, TillStatusDTO{
		IsOpen:  session != nil,
		Session: toSessionDTO(session),
	})
}

// OpenTill opens a session with an initial cash float.
// POST /api/till/open
func (h *Handler) OpenTill(w http.ResponseWriter, r *http.Request) {
	var req OpenTillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	initial, err := decimal.NewFromString(req.InitialAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid initial_amount", err)
		return
	}

	session, err := h.Till.Open(r.Context(), pos.UserID(req.UserID), initial)
	if err != nil {
		writeDomainError(w, "Failed to open till", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(session))
}

// CloseTill closes the open session.
// POST /api/till/close
func (h *Handler) CloseTill(w http.ResponseWriter, r *http.Request) {
	var req CloseTillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.Till.Close(r.Context(), pos.UserID(req.UserID))
	if err != nil {
		writeDomainError(w, "Failed to close till", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

// RecordMovement records a manual deposit, withdrawal or expense.
// POST /api/till/movements
func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req RecordMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	movement, err := h.Till.RecordMovement(r.Context(),
		pos.MovementType(req.Type), amount, req.Description,
		pos.UserID(req.UserID), "")
	if err != nil {
		writeDomainError(w, "Failed to record movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(pos.MovementDetail{CashMovement: *movement}))
}

// ListMovements returns the movements of one calendar day, newest first.
// GET /api/till/movements?date=YYYY-MM-DD (defaults to today)
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
			return
		}
		day = parsed
	}

	details, err := h.Till.MovementsForDate(r.Context(), day)
	if err != nil {
		writeDomainError(w, "Failed to list movements", err)
		return
	}

	dtos := make([]MovementDTO, len(details))
	for i, d := range details {
		dtos[i] = toMovementDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// PlaceOrder settles a new order against the open till.
// POST /api/orders
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	draft := pos.OrderDraft{
		CustomerID:  pos.CustomerID(req.CustomerID),
		UserID:      pos.UserID(req.UserID),
		TableNumber: req.TableNumber,
		Items:       make([]pos.DraftItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		price := decimal.Zero
		if item.UnitPrice != "" {
			parsed, err := decimal.NewFromString(item.UnitPrice)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
				return
			}
			price = parsed
		}
		draft.Items = append(draft.Items, pos.DraftItem{
			ProductID: pos.ProductID(item.ProductID),
			Quantity:  item.Quantity,
			UnitPrice: price,
			Notes:     item.Notes,
		})
	}

	order, err := h.Orders.PlaceOrder(r.Context(), draft)
	if err != nil {
		writeDomainError(w, "Failed to place order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(*order))
}

// ListOrders returns all orders with items, newest first.
// GET /api/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.FindAll(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list orders", err)
		return
	}

	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetOrder returns one order with its items.
// GET /api/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := pos.OrderID(chi.URLParam(r, "id"))

	order, err := h.Orders.FindByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*order))
}

// UpdateOrderStatus advances an order along the status flow.
// PUT /api/orders/{id}/status
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := pos.OrderID(chi.URLParam(r, "id"))

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Orders.UpdateStatus(r.Context(), id, pos.OrderStatus(req.Status)); err != nil {
		writeDomainError(w, "Failed to update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": string(id), "status": req.Status})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetSummary aggregates orders and movements over a range.
// GET /api/reports/summary?from=YYYY-MM-DD&to=YYYY-MM-DD&top=N
// The range defaults to today; to is exclusive after adding one day.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	topN := 0
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid top", err)
			return
		}
		topN = n
	}

	summary, err := h.Reports.Summarize(r.Context(), from, to, topN)
	if err != nil {
		writeDomainError(w, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListProducts returns active catalog products.
// GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = ProductDTO{
			ID:          string(p.ID),
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.StringFixed(2),
			Category:    p.Category,
			Active:      p.Active,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveProduct creates or updates a product.
// POST /api/products
func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var req SaveProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	record := sqlite.ProductRecord{
		ID:          pos.ProductID(req.ID),
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Category:    req.Category,
		Active:      true,
	}
	if err := h.Store.SaveProduct(r.Context(), &record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusCreated, ProductDTO{
		ID:          string(record.ID),
		Name:        record.Name,
		Description: record.Description,
		Price:       record.Price.StringFixed(2),
		Category:    record.Category,
		Active:      record.Active,
	})
}

// DeactivateProduct soft-deletes a product.
// DELETE /api/products/{id}
func (h *Handler) DeactivateProduct(w http.ResponseWriter, r *http.Request) {
	id := pos.ProductID(chi.URLParam(r, "id"))
	if err := h.Store.DeactivateProduct(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to deactivate product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers lists customers, or searches by name with ?q=.
// GET /api/customers
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	var (
		customers []sqlite.CustomerRecord
		err       error
	)
	if term := r.URL.Query().Get("q"); term != "" {
		customers, err = h.Store.SearchCustomers(r.Context(), term)
	} else {
		customers, err = h.Store.ListCustomers(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = CustomerDTO{
			ID:      string(c.ID),
			Name:    c.Name,
			Phone:   c.Phone,
			Email:   c.Email,
			Address: c.Address,
			Notes:   c.Notes,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveCustomer creates or updates a customer.
// POST /api/customers
func (h *Handler) SaveCustomer(w http.ResponseWriter, r *http.Request) {
	var req SaveCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	record := sqlite.CustomerRecord{
		ID:      pos.CustomerID(req.ID),
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
		Notes:   req.Notes,
	}
	if err := h.Store.SaveCustomer(r.Context(), &record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, CustomerDTO{
		ID:      string(record.ID),
		Name:    record.Name,
		Phone:   record.Phone,
		Email:   record.Email,
		Address: record.Address,
		Notes:   record.Notes,
	})
}

// DeleteCustomer removes a customer record.
// DELETE /api/customers/{id}
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := pos.CustomerID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteCustomer(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error categories onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case pos.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case pos.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case pos.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
