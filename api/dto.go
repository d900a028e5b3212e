/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Amounts travel as decimal strings ("130.00"), never as floats. Handlers
  parse them with shopspring/decimal and reject anything unparseable.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - pos/types.go: The domain model these mirror
*/
package api

import (
	"time"

	"github.com/lanchonete/pos-engine/pos"
)

// =============================================================================
// TILL SESSION
// =============================================================================

// TillStatusDTO is the open/closed state of the register.
type TillStatusDTO struct {
	IsOpen  bool        `json:"is_open"`
	Session *SessionDTO `json:"session,omitempty"`
}

// SessionDTO represents a till session in API responses.
type SessionDTO struct {
	ID            string `json:"id"`
	IsOpen        bool   `json:"is_open"`
	OpenedAt      string `json:"opened_at"`
	OpenedBy      string `json:"opened_by"`
	InitialAmount string `json:"initial_amount"`
	CurrentAmount string `json:"current_amount"`
}

// OpenTillRequest opens a session with an initial cash float.
type OpenTillRequest struct {
	UserID        string `json:"user_id"`
	InitialAmount string `json:"initial_amount"`
}

// CloseTillRequest closes the open session.
type CloseTillRequest struct {
	UserID string `json:"user_id"`
}

// =============================================================================
// CASH MOVEMENTS
// =============================================================================

// RecordMovementRequest records a manual deposit, withdrawal or expense.
type RecordMovementRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	UserID      string `json:"user_id"`
}

// MovementDTO is one ledger entry with display joins.
type MovementDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name,omitempty"`
	TableNumber string `json:"table_number,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// =============================================================================
// ORDERS
// =============================================================================

// PlaceOrderRequest settles a new order against the open till.
type PlaceOrderRequest struct {
	CustomerID  string             `json:"customer_id,omitempty"`
	UserID      string             `json:"user_id"`
	TableNumber string             `json:"table_number,omitempty"`
	Items       []OrderItemRequest `json:"items"`
}

// OrderItemRequest is one requested line item. An empty unit_price means
// "use the current catalog price".
type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// UpdateStatusRequest moves an order along the status flow.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// OrderDTO represents an order in API responses.
type OrderDTO struct {
	ID           string         `json:"id"`
	CustomerID   string         `json:"customer_id,omitempty"`
	CustomerName string         `json:"customer_name,omitempty"`
	UserID       string         `json:"user_id"`
	TableNumber  string         `json:"table_number,omitempty"`
	Status       string         `json:"status"`
	Total        string         `json:"total"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	Items        []OrderItemDTO `json:"items"`
}

// OrderItemDTO is one settled line item with its price snapshot.
type OrderItemDTO struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
	Notes       string `json:"notes,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

// SummaryDTO is the report for a date range.
type SummaryDTO struct {
	From          string            `json:"from"`
	To            string            `json:"to"`
	TotalSales    string            `json:"total_sales"`
	OrderCount    int               `json:"order_count"`
	AverageTicket string            `json:"average_ticket"`
	TopProducts   []ProductSalesDTO `json:"top_products"`
	Cash          CashFlowDTO       `json:"cash"`
}

// ProductSalesDTO is one row of the top-products ranking.
type ProductSalesDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Revenue   string `json:"revenue"`
}

// CashFlowDTO summarizes ledger movement over the range.
type CashFlowDTO struct {
	Inflow  string `json:"inflow"`
	Outflow string `json:"outflow"`
	Balance string `json:"balance"`
}

// =============================================================================
// CATALOG / CUSTOMERS
// =============================================================================

// ProductDTO represents a catalog product.
type ProductDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	Active      bool   `json:"active"`
}

// SaveProductRequest creates or updates a product.
type SaveProductRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Category    string `json:"category"`
}

// CustomerDTO represents a customer record.
type CustomerDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// SaveCustomerRequest creates or updates a customer.
type SaveCustomerRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSessionDTO(s *pos.TillSession) *SessionDTO {
	if s == nil {
		return nil
	}
	return &SessionDTO{
		ID:            string(s.ID),
		IsOpen:        s.IsOpen,
		OpenedAt:      s.OpenedAt.Format(time.RFC3339),
		OpenedBy:      string(s.OpenedBy),
		InitialAmount: s.InitialAmount.StringFixed(2),
		CurrentAmount: s.CurrentAmount.StringFixed(2),
	}
}

func toMovementDTO(d pos.MovementDetail) MovementDTO {
	return MovementDTO{
		ID:          string(d.ID),
		Type:        string(d.Type),
		Amount:      d.Amount.StringFixed(2),
		Description: d.Description,
		OrderID:     string(d.OrderID),
		UserID:      string(d.UserID),
		UserName:    d.UserName,
		TableNumber: d.TableNumber,
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
	}
}

func toOrderDTO(o pos.Order) OrderDTO {
	items := make([]OrderItemDTO, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemDTO{
			ID:          item.ID,
			ProductID:   string(item.ProductID),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Subtotal:    item.Subtotal().StringFixed(2),
			Notes:       item.Notes,
		}
	}
	return OrderDTO{
		ID:           string(o.ID),
		CustomerID:   string(o.CustomerID),
		CustomerName: o.CustomerName,
		UserID:       string(o.UserID),
		TableNumber:  o.TableNumber,
		Status:       string(o.Status),
		Total:        o.Total.StringFixed(2),
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    o.UpdatedAt.Format(time.RFC3339),
		Items:        items,
	}
}

func toSummaryDTO(s *pos.Summary) SummaryDTO {
	top := make([]ProductSalesDTO, len(s.TopProducts))
	for i, ps := range s.TopProducts {
		top[i] = ProductSalesDTO{
			ProductID: string(ps.ProductID),
			Name:      ps.Name,
			Quantity:  ps.Quantity,
			Revenue:   ps.Revenue.StringFixed(2),
		}
	}
	return SummaryDTO{
		From:          s.From.Format(time.RFC3339),
		To:            s.To.Format(time.RFC3339),
		TotalSales:    s.TotalSales.StringFixed(2),
		OrderCount:    s.OrderCount,
		AverageTicket: s.AverageTicket.StringFixed(2),
		TopProducts:   top,
		Cash: CashFlowDTO{
			Inflow:  s.Cash.Inflow.StringFixed(2),
			Outflow: s.Cash.Outflow.StringFixed(2),
			Balance: s.Cash.Balance.StringFixed(2),
		},
	}
}
