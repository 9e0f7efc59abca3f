// Package api is the external-facing router: it dispatches inbound order
// messages to the lifecycle manager and serves the kitchen display's REST
// endpoints. It is thin plumbing; the business rules live in the core
// packages.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"brigade/internal/config"
	"brigade/internal/errs"
	"brigade/internal/inventory"
	"brigade/internal/lifecycle"
)

// Server holds the router and its collaborators
type Server struct {
	Router    *gin.Engine
	lifecycle *lifecycle.Manager
	ledger    *inventory.Ledger
	hub       *Hub
}

// NewServer wires the router, middleware, and routes
func NewServer(registry *config.TenantRegistry, manager *lifecycle.Manager, ledger *inventory.Ledger, log *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(MetricsMiddleware())
	router.Use(TenantMiddleware(registry))

	s := &Server{
		Router:    router,
		lifecycle: manager,
		ledger:    ledger,
		hub:       NewHub(),
	}
	manager.SetNotifier(s.hub)

	s.setupRoutes()
	return s
}

// setupRoutes configures all endpoints
func (s *Server) setupRoutes() {
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// agent-to-agent channel used by the waiter service
	s.Router.POST("/api/a2a", s.HandleRPC)
	s.Router.GET("/api/a2a", s.HandleRPCHealth)
	s.Router.GET("/.well-known/agent-card.json", s.HandleAgentCard)

	v1 := s.Router.Group("/api/v1")
	{
		v1.GET("/orders", s.ListOrders)
		v1.PATCH("/orders/:id/status", s.UpdateOrderStatus)
		v1.GET("/inventory/alerts", s.InventoryAlerts)
		v1.GET("/ws", s.HandleWS)
	}
}

// requireTenant fails the request when no tenant resolved
func requireTenant(c *gin.Context) (config.Tenant, bool) {
	tenant, ok := tenantFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Tenant ID missing"})
	}
	return tenant, ok
}

// ListOrders returns the display queue: urgent, then high, then normal;
// oldest first within a tier. Optional ?status= filter.
func (s *Server) ListOrders(c *gin.Context) {
	tenant, ok := requireTenant(c)
	if !ok {
		return
	}

	orders, err := s.lifecycle.ListOrders(c.Request.Context(), tenant.ID, c.Query("status"))
	if err != nil {
		s.writeError(c, err, "Failed to fetch orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

// UpdateOrderStatus moves one order through the state machine on behalf of
// kitchen staff
func (s *Server) UpdateOrderStatus(c *gin.Context) {
	tenant, ok := requireTenant(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Status is required"})
		return
	}

	order, err := s.lifecycle.AdvanceStatus(c.Request.Context(), tenant.ID, c.Param("id"), req.Status)
	if err != nil {
		s.writeError(c, err, "Failed to update order status")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   gin.H{"id": order.ID, "status": order.Status},
	})
}

// InventoryAlerts returns low-stock entries for the display banner; it
// always answers 200 with a list
func (s *Server) InventoryAlerts(c *gin.Context) {
	tenant, ok := requireTenant(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"alerts":  s.ledger.LowStockAlerts(c.Request.Context(), tenant.ID),
	})
}

// HandleAgentCard serves the static capability document other agents use
// for discovery
func (s *Server) HandleAgentCard(c *gin.Context) {
	name := "Chef Agent"
	if tenant, ok := tenantFrom(c); ok {
		name = tenant.Name
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        name,
		"description": "Kitchen agent: validates ingredient availability, estimates preparation time, and tracks order progress",
		"version":     "1.0.0",
		"protocol":    "jsonrpc-2.0",
		"endpoint":    "/api/a2a",
		"methods": []gin.H{
			{"name": "placeOrder", "description": "Submit a waiter order for preparation"},
			{"name": "getOrderStatus", "description": "Fetch order status and remaining ETA"},
			{"name": "cancelOrder", "description": "Cancel an order not yet ready"},
		},
	})
}

// writeError maps the error taxonomy onto HTTP statuses. Internal failures
// surface only the generic message.
func (s *Server) writeError(c *gin.Context, err error, generic string) {
	switch {
	case errs.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errs.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errs.IsInvalidTransition(err):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	default:
		loggerFrom(c).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": generic})
	}
}
