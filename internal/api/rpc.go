package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"brigade/internal/errs"
	"brigade/internal/lifecycle"
	"brigade/internal/models"
)

// JSON-RPC 2.0 error codes used by the A2A endpoint. Engine failures map
// to server-defined codes carrying a machine-readable kind in data.
const (
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcInternalError  = -32603
	rpcBusinessError  = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// agentResponse is the chef agent's result envelope inside a successful
// JSON-RPC response; business rejections travel here, not as RPC errors
type agentResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// orderStatusPayload mirrors what the waiter agent expects back
type orderStatusPayload struct {
	OrderID            string   `json:"orderId"`
	Status             string   `json:"status"`
	ETA                int      `json:"eta,omitempty"`
	MissingIngredients []string `json:"missingIngredients,omitempty"`
	Message            string   `json:"message"`
}

// HandleRPC serves the A2A channel: placeOrder, getOrderStatus, cancelOrder
func (s *Server) HandleRPC(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			Error: &rpcError{
				Code:    rpcInvalidRequest,
				Message: "Tenant ID missing - multi-tenant routing failed",
			},
		})
		return
	}

	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: rpcInvalidRequest, Message: "Invalid Request: " + err.Error()},
		})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		c.JSON(http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: rpcInvalidRequest, Message: "Invalid Request: jsonrpc 2.0 envelope required"},
			ID:      req.ID,
		})
		return
	}

	log := loggerFrom(c).With(
		zap.String("tenant_id", tenant.ID),
		zap.String("method", req.Method))
	log.Info("a2a message received")

	var (
		result interface{}
		rpcErr *rpcError
	)
	switch req.Method {
	case "placeOrder":
		result, rpcErr = s.rpcPlaceOrder(c, tenant.ID, req.Params)
	case "getOrderStatus":
		result, rpcErr = s.rpcOrderStatus(c, tenant.ID, req.Params)
	case "cancelOrder":
		result, rpcErr = s.rpcCancelOrder(c, tenant.ID, req.Params)
	default:
		rpcErr = &rpcError{Code: rpcMethodNotFound, Message: "Method not found: " + req.Method}
	}

	if rpcErr != nil {
		log.Warn("a2a message failed",
			zap.Int("code", rpcErr.Code),
			zap.String("error", rpcErr.Message))
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", Error: rpcErr, ID: req.ID})
		return
	}
	c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (s *Server) rpcPlaceOrder(c *gin.Context, tenantID string, params json.RawMessage) (interface{}, *rpcError) {
	var place lifecycle.PlaceRequest
	if err := json.Unmarshal(params, &place); err != nil {
		return nil, &rpcError{Code: rpcInvalidParams, Message: "Invalid params for placeOrder"}
	}

	result, err := s.lifecycle.Place(c.Request.Context(), tenantID, place)
	if err != nil {
		var stockErr *errs.InsufficientStockError
		if errors.As(err, &stockErr) {
			// a legitimate business outcome: the rejection rides inside a
			// successful envelope so the waiter agent can surface it
			missing := make([]string, 0, len(stockErr.Missing))
			for _, shortfall := range stockErr.Missing {
				missing = append(missing, shortfall.Describe())
			}
			return agentResponse{
				Success: false,
				Error:   "Missing ingredients: " + strings.Join(missing, ", "),
				Data: orderStatusPayload{
					OrderID:            place.OrderID,
					Status:             string(models.OrderStatusCancelled),
					MissingIngredients: missing,
					Message:            "Cannot fulfill order - insufficient stock",
				},
			}, nil
		}
		return nil, mapRPCError(err)
	}

	return agentResponse{
		Success: true,
		Data: orderStatusPayload{
			OrderID: result.OrderID,
			Status:  string(result.Status),
			ETA:     result.ETAMinutes,
			Message: result.Message,
		},
	}, nil
}

func (s *Server) rpcOrderStatus(c *gin.Context, tenantID string, params json.RawMessage) (interface{}, *rpcError) {
	var p struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.OrderID == "" {
		return nil, &rpcError{Code: rpcInvalidParams, Message: "Invalid params for getOrderStatus"}
	}

	status, err := s.lifecycle.GetStatus(c.Request.Context(), tenantID, p.OrderID)
	if err != nil {
		return nil, mapRPCError(err)
	}
	return orderStatusPayload{
		OrderID: status.OrderID,
		Status:  string(status.Status),
		ETA:     status.RemainingETA,
		Message: status.Message,
	}, nil
}

func (s *Server) rpcCancelOrder(c *gin.Context, tenantID string, params json.RawMessage) (interface{}, *rpcError) {
	var p struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.OrderID == "" {
		return nil, &rpcError{Code: rpcInvalidParams, Message: "Invalid params for cancelOrder"}
	}

	result, err := s.lifecycle.Cancel(c.Request.Context(), tenantID, p.OrderID)
	if err != nil {
		return nil, mapRPCError(err)
	}
	return agentResponse{Success: true, Data: result}, nil
}

// mapRPCError translates the error taxonomy into RPC codes; internal detail
// never crosses the boundary
func mapRPCError(err error) *rpcError {
	switch {
	case errs.IsValidation(err):
		return &rpcError{Code: rpcInvalidParams, Message: err.Error()}
	case errs.IsNotFound(err):
		return &rpcError{Code: rpcBusinessError, Message: err.Error(), Data: gin.H{"kind": "not_found"}}
	case errs.IsInvalidTransition(err):
		return &rpcError{Code: rpcBusinessError, Message: err.Error(), Data: gin.H{"kind": "invalid_transition"}}
	default:
		return &rpcError{Code: rpcInternalError, Message: "Internal error"}
	}
}

// HandleRPCHealth answers GET probes on the A2A path
func (s *Server) HandleRPCHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"agent":     "chef-agent",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
