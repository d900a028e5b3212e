package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanchonete/pos-engine/api"
	"github.com/lanchonete/pos-engine/pos"
	"github.com/lanchonete/pos-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)

	handler := api.NewHandler(store, nil)
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	require.NoError(t, store.SaveUser(context.Background(), pos.User{ID: "user-1", Name: "Maria"}))
	return server, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func openTill(t *testing.T, server *httptest.Server, amount string) api.SessionDTO {
	t.Helper()
	resp := doJSON(t, http.MethodPost, server.URL+"/api/till/open", api.OpenTillRequest{
		UserID:        "user-1",
		InitialAmount: amount,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[api.SessionDTO](t, resp)
}

func seedProduct(t *testing.T, store *sqlite.Store, name, price string) pos.ProductID {
	t.Helper()
	record := sqlite.ProductRecord{Name: name, Price: pos.MustMoney(price), Category: "drinks", Active: true}
	require.NoError(t, store.SaveProduct(context.Background(), &record))
	return record.ID
}

// =============================================================================
// TILL ENDPOINTS
// =============================================================================

func TestAPI_TillLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	// Closed at first
	resp := doJSON(t, http.MethodGet, server.URL+"/api/till", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[api.TillStatusDTO](t, resp)
	assert.False(t, status.IsOpen)

	// Open
	session := openTill(t, server, "100.00")
	assert.Equal(t, "100.00", session.CurrentAmount)

	// Status reflects the open session
	resp = doJSON(t, http.MethodGet, server.URL+"/api/till", nil)
	status = decode[api.TillStatusDTO](t, resp)
	assert.True(t, status.IsOpen)
	require.NotNil(t, status.Session)
	assert.Equal(t, session.ID, status.Session.ID)

	// Second open conflicts
	resp = doJSON(t, http.MethodPost, server.URL+"/api/till/open", api.OpenTillRequest{
		UserID: "user-1", InitialAmount: "50.00",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Close
	resp = doJSON(t, http.MethodPost, server.URL+"/api/till/close", api.CloseTillRequest{UserID: "user-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	closed := decode[api.SessionDTO](t, resp)
	assert.False(t, closed.IsOpen)

	// Close again conflicts
	resp = doJSON(t, http.MethodPost, server.URL+"/api/till/close", api.CloseTillRequest{UserID: "user-1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_OpenTill_BadAmount(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/till/open", api.OpenTillRequest{
		UserID: "user-1", InitialAmount: "not-a-number",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/till/open", api.OpenTillRequest{
		UserID: "user-1", InitialAmount: "-5.00",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_RecordAndListMovements(t *testing.T) {
	server, _ := newTestServer(t)
	openTill(t, server, "100.00")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/till/movements", api.RecordMovementRequest{
		Type: "withdrawal", Amount: "30.00", Description: "safe drop", UserID: "user-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/till/movements", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	movements := decode[[]api.MovementDTO](t, resp)
	require.Len(t, movements, 2)
	assert.Equal(t, "withdrawal", movements[0].Type)
	assert.Equal(t, "Maria", movements[0].UserName)
	assert.Equal(t, "opening", movements[1].Type)

	// The balance followed the withdrawal.
	resp = doJSON(t, http.MethodGet, server.URL+"/api/till", nil)
	status := decode[api.TillStatusDTO](t, resp)
	assert.Equal(t, "70.00", status.Session.CurrentAmount)
}

func TestAPI_RecordMovement_WhileClosed_Conflict(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/till/movements", api.RecordMovementRequest{
		Type: "deposit", Amount: "10.00", UserID: "user-1",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// ORDER ENDPOINTS
// =============================================================================

func TestAPI_PlaceOrder_SettlesAgainstOpenTill(t *testing.T) {
	server, store := newTestServer(t)
	coffeeID := seedProduct(t, store, "Coffee", "5.00")
	openTill(t, server, "100.00")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/orders", api.PlaceOrderRequest{
		UserID:      "user-1",
		TableNumber: "3",
		Items: []api.OrderItemRequest{
			{ProductID: string(coffeeID), Quantity: 6},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[api.OrderDTO](t, resp)
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, "30.00", order.Total)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "5.00", order.Items[0].UnitPrice)

	// 100 + 30 settled into the till
	tillResp := doJSON(t, http.MethodGet, server.URL+"/api/till", nil)
	status := decode[api.TillStatusDTO](t, tillResp)
	assert.Equal(t, "130.00", status.Session.CurrentAmount)
}

func TestAPI_PlaceOrder_TillClosed_Conflict(t *testing.T) {
	server, store := newTestServer(t)
	coffeeID := seedProduct(t, store, "Coffee", "5.00")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/orders", api.PlaceOrderRequest{
		UserID: "user-1",
		Items:  []api.OrderItemRequest{{ProductID: string(coffeeID), Quantity: 1}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_PlaceOrder_EmptyItems_BadRequest(t *testing.T) {
	server, _ := newTestServer(t)
	openTill(t, server, "0.00")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/orders", api.PlaceOrderRequest{UserID: "user-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_OrderStatusFlow(t *testing.T) {
	server, store := newTestServer(t)
	coffeeID := seedProduct(t, store, "Coffee", "5.00")
	openTill(t, server, "0.00")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/orders", api.PlaceOrderRequest{
		UserID: "user-1",
		Items:  []api.OrderItemRequest{{ProductID: string(coffeeID), Quantity: 1}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[api.OrderDTO](t, resp)

	statusURL := fmt.Sprintf("%s/api/orders/%s/status", server.URL, order.ID)

	// Forward step succeeds
	resp = doJSON(t, http.MethodPut, statusURL, api.UpdateStatusRequest{Status: "preparing"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Skipping ahead is a validation error
	resp = doJSON(t, http.MethodPut, statusURL, api.UpdateStatusRequest{Status: "pending"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown order is 404
	resp = doJSON(t, http.MethodPut, server.URL+"/api/orders/ghost/status",
		api.UpdateStatusRequest{Status: "preparing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_GetOrder_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/orders/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// REPORT ENDPOINT
// =============================================================================

func TestAPI_Summary_DefaultsToToday(t *testing.T) {
	server, store := newTestServer(t)
	coffeeID := seedProduct(t, store, "Coffee", "5.00")
	openTill(t, server, "50.00")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/orders", api.PlaceOrderRequest{
		UserID: "user-1",
		Items:  []api.OrderItemRequest{{ProductID: string(coffeeID), Quantity: 4}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[api.SummaryDTO](t, resp)

	assert.Equal(t, 1, summary.OrderCount)
	assert.Equal(t, "20.00", summary.TotalSales)
	assert.Equal(t, "20.00", summary.AverageTicket)
	require.Len(t, summary.TopProducts, 1)
	assert.Equal(t, "Coffee", summary.TopProducts[0].Name)
	assert.Equal(t, "20.00", summary.Cash.Inflow)
}

// =============================================================================
// CATALOG / CUSTOMER ENDPOINTS
// =============================================================================

func TestAPI_ProductCRUD(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/products", api.SaveProductRequest{
		Name: "Espresso", Price: "4.50", Category: "drinks",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.ProductDTO](t, resp)
	require.NotEmpty(t, created.ID)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/products", nil)
	products := decode[[]api.ProductDTO](t, resp)
	require.Len(t, products, 1)
	assert.Equal(t, "Espresso", products[0].Name)

	resp = doJSON(t, http.MethodDelete, server.URL+"/api/products/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/products", nil)
	products = decode[[]api.ProductDTO](t, resp)
	assert.Empty(t, products)
}

func TestAPI_CustomerSearch(t *testing.T) {
	server, _ := newTestServer(t)

	for _, name := range []string{"Ana Silva", "Jorge Costa"} {
		resp := doJSON(t, http.MethodPost, server.URL+"/api/customers", api.SaveCustomerRequest{Name: name})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doJSON(t, http.MethodGet, server.URL+"/api/customers?q=Ana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decode[[]api.CustomerDTO](t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, "Ana Silva", found[0].Name)
}
