package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"brigade/internal/config"
	"brigade/internal/costing"
	"brigade/internal/eta"
	"brigade/internal/inventory"
	"brigade/internal/lifecycle"
	"brigade/internal/models"
)

const (
	pistaHost   = "pistahouse.chef.local:5555"
	pistaTenant = "tenant-pista-house"
)

func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ChefOrder{},
		&models.Ingredient{},
		&models.Recipe{},
		&models.MenuItem{},
		&models.InventoryTransaction{},
		&models.PurchaseOrder{},
	))

	registry := config.NewTenantRegistry([]config.Tenant{
		{ID: pistaTenant, Name: "Pista House Kitchen", Host: pistaHost},
		{ID: "tenant-chutneys", Name: "Chutneys Kitchen", Host: "chutneys.chef.local:5555"},
	})

	ledger := inventory.NewLedger(db)
	manager := lifecycle.NewManager(db, ledger, eta.NewEngine(db), costing.NewEngine(db), lifecycle.Options{})
	server := NewServer(registry, manager, ledger, zap.NewNop())

	require.NoError(t, db.Create(&models.Ingredient{
		ID: "ing-rice", TenantID: pistaTenant, Name: "Basmati Rice",
		CurrentStock: 10, ReorderPoint: 2, Unit: "kg", Supplier: "Krishna Traders", UnitCost: 40,
	}).Error)
	require.NoError(t, db.Create(&models.Recipe{
		TenantID: pistaTenant, MenuItemID: "item-biryani",
		IngredientID: "ing-rice", QuantityRequired: 0.5,
	}).Error)
	require.NoError(t, db.Create(&models.MenuItem{
		ID: "item-biryani", TenantID: pistaTenant, Name: "Biryani", Price: 250, PrepTime: 25,
	}).Error)

	return server, db
}

func doJSON(server *Server, method, path, host string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = host
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, req)
	return w
}

func rpcCall(server *Server, host, method string, params interface{}) *httptest.ResponseRecorder {
	return doJSON(server, http.MethodPost, "/api/a2a", host, gin.H{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func placeParams(orderID string, qty int) gin.H {
	return gin.H{
		"orderId": orderID,
		"items": []gin.H{
			{"itemId": "item-biryani", "itemName": "Biryani", "quantity": qty},
		},
	}
}

func TestRPCPlaceOrder(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		server, _ := newTestServer(t)
		w := rpcCall(server, pistaHost, "placeOrder", placeParams("order-1", 3))
		require.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		assert.Equal(t, "2.0", body["jsonrpc"])
		result := body["result"].(map[string]interface{})
		assert.Equal(t, true, result["success"])
		data := result["data"].(map[string]interface{})
		assert.Equal(t, "CONFIRMED", data["status"])
		assert.Equal(t, "order-1", data["orderId"])
		assert.EqualValues(t, 40, data["eta"], "25 min base plus 30 percent per extra plate")
	})

	t.Run("insufficient stock rides a success envelope", func(t *testing.T) {
		server, db := newTestServer(t)
		w := rpcCall(server, pistaHost, "placeOrder", placeParams("order-big", 25))
		require.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		result := body["result"].(map[string]interface{})
		assert.Equal(t, false, result["success"])
		assert.Contains(t, result["error"], "Missing ingredients")
		data := result["data"].(map[string]interface{})
		assert.Equal(t, "CANCELLED", data["status"])
		missing := data["missingIngredients"].([]interface{})
		require.Len(t, missing, 1)
		assert.Contains(t, missing[0], "Basmati Rice")

		var orders int64
		require.NoError(t, db.Model(&models.ChefOrder{}).Count(&orders).Error)
		assert.Zero(t, orders, "rejected order never persisted")
	})

	t.Run("missing orderId is invalid params", func(t *testing.T) {
		server, _ := newTestServer(t)
		w := rpcCall(server, pistaHost, "placeOrder", gin.H{
			"items": []gin.H{{"itemId": "item-biryani", "quantity": 1}},
		})
		body := decode(t, w)
		rpcErr := body["error"].(map[string]interface{})
		assert.EqualValues(t, -32602, rpcErr["code"])
	})
}

func TestRPCOrderStatus(t *testing.T) {
	server, _ := newTestServer(t)

	rpcCall(server, pistaHost, "placeOrder", placeParams("order-1", 1))

	t.Run("found", func(t *testing.T) {
		w := rpcCall(server, pistaHost, "getOrderStatus", gin.H{"orderId": "order-1"})
		body := decode(t, w)
		result := body["result"].(map[string]interface{})
		assert.Equal(t, "CONFIRMED", result["status"])
		assert.Contains(t, result["message"], "Order is confirmed")
	})

	t.Run("not found", func(t *testing.T) {
		w := rpcCall(server, pistaHost, "getOrderStatus", gin.H{"orderId": "order-ghost"})
		body := decode(t, w)
		rpcErr := body["error"].(map[string]interface{})
		assert.EqualValues(t, -32000, rpcErr["code"])
		assert.Equal(t, "not_found", rpcErr["data"].(map[string]interface{})["kind"])
	})

	t.Run("tenant isolation via host", func(t *testing.T) {
		w := rpcCall(server, "chutneys.chef.local:5555", "getOrderStatus", gin.H{"orderId": "order-1"})
		body := decode(t, w)
		require.NotNil(t, body["error"], "other tenant must not see the order")
	})
}

func TestRPCCancelOrder(t *testing.T) {
	server, _ := newTestServer(t)
	rpcCall(server, pistaHost, "placeOrder", placeParams("order-1", 1))

	w := rpcCall(server, pistaHost, "cancelOrder", gin.H{"orderId": "order-1"})
	body := decode(t, w)
	result := body["result"].(map[string]interface{})
	assert.Equal(t, true, result["success"])

	w = rpcCall(server, pistaHost, "getOrderStatus", gin.H{"orderId": "order-1"})
	body = decode(t, w)
	assert.Equal(t, "CANCELLED", body["result"].(map[string]interface{})["status"])
}

func TestRPCEnvelope(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("unknown method", func(t *testing.T) {
		w := rpcCall(server, pistaHost, "cookFaster", gin.H{})
		body := decode(t, w)
		rpcErr := body["error"].(map[string]interface{})
		assert.EqualValues(t, -32601, rpcErr["code"])
	})

	t.Run("missing envelope fields", func(t *testing.T) {
		w := doJSON(server, http.MethodPost, "/api/a2a", pistaHost, gin.H{"method": "placeOrder"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		rpcErr := body["error"].(map[string]interface{})
		assert.EqualValues(t, -32600, rpcErr["code"])
	})

	t.Run("unroutable host without default tenant", func(t *testing.T) {
		w := rpcCall(server, "nowhere.example.com", "placeOrder", placeParams("order-1", 1))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		rpcErr := body["error"].(map[string]interface{})
		assert.EqualValues(t, -32600, rpcErr["code"])
		assert.Contains(t, rpcErr["message"], "Tenant ID missing")
	})

	t.Run("explicit tenant header wins", func(t *testing.T) {
		var buf bytes.Buffer
		json.NewEncoder(&buf).Encode(gin.H{
			"jsonrpc": "2.0", "method": "getOrderStatus",
			"params": gin.H{"orderId": "nope"}, "id": 7,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/a2a", &buf)
		req.Host = "nowhere.example.com"
		req.Header.Set("X-Tenant-ID", pistaTenant)
		w := httptest.NewRecorder()
		server.Router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("health probe", func(t *testing.T) {
		w := doJSON(server, http.MethodGet, "/api/a2a", pistaHost, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "chef-agent", body["agent"])
	})
}

func TestDisplayEndpoints(t *testing.T) {
	server, db := newTestServer(t)

	for i, priority := range []string{"normal", "urgent"} {
		params := placeParams(fmt.Sprintf("order-%d", i), 1)
		params["priority"] = priority
		rpcCall(server, pistaHost, "placeOrder", params)
	}

	t.Run("list orders sorted by priority", func(t *testing.T) {
		w := doJSON(server, http.MethodGet, "/api/v1/orders", pistaHost, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		orders := body["orders"].([]interface{})
		require.Len(t, orders, 2)
		first := orders[0].(map[string]interface{})
		assert.Equal(t, "urgent", first["priority"])
	})

	t.Run("status filter", func(t *testing.T) {
		w := doJSON(server, http.MethodGet, "/api/v1/orders?status=served", pistaHost, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode(t, w)["orders"])
	})

	t.Run("advance status", func(t *testing.T) {
		var order models.ChefOrder
		require.NoError(t, db.Where("waiter_order_id = ?", "order-0").First(&order).Error)

		w := doJSON(server, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status",
			pistaHost, gin.H{"status": "PREPARING"})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "PREPARING", body["order"].(map[string]interface{})["status"])
	})

	t.Run("advance status unknown order", func(t *testing.T) {
		w := doJSON(server, http.MethodPatch, "/api/v1/orders/no-such/status",
			pistaHost, gin.H{"status": "READY"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("advance status invalid value", func(t *testing.T) {
		var order models.ChefOrder
		require.NoError(t, db.Where("waiter_order_id = ?", "order-0").First(&order).Error)
		w := doJSON(server, http.MethodPatch, "/api/v1/orders/"+order.ID+"/status",
			pistaHost, gin.H{"status": "BURNT"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing status field", func(t *testing.T) {
		w := doJSON(server, http.MethodPatch, "/api/v1/orders/x/status", pistaHost, gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("inventory alerts", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Ingredient{
			ID: "ing-saffron", TenantID: pistaTenant, Name: "Saffron",
			CurrentStock: 0.1, ReorderPoint: 5, Unit: "g",
		}).Error)

		w := doJSON(server, http.MethodGet, "/api/v1/inventory/alerts", pistaHost, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		alerts := body["alerts"].([]interface{})
		require.Len(t, alerts, 1)
		alert := alerts[0].(map[string]interface{})
		assert.Equal(t, "Saffron", alert["ingredientName"])
		assert.EqualValues(t, 5, alert["reorderPoint"])
	})

	t.Run("tenant missing", func(t *testing.T) {
		w := doJSON(server, http.MethodGet, "/api/v1/orders", "nowhere.example.com", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAgentCard(t *testing.T) {
	server, _ := newTestServer(t)
	w := doJSON(server, http.MethodGet, "/.well-known/agent-card.json", pistaHost, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Pista House Kitchen", body["name"])
	assert.Equal(t, "jsonrpc-2.0", body["protocol"])
	assert.Equal(t, "/api/a2a", body["endpoint"])
	methods := body["methods"].([]interface{})
	assert.Len(t, methods, 3)
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	w := doJSON(server, http.MethodGet, "/health", pistaHost, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
