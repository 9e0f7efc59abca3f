// Package lifecycle owns the order state machine: placement, status
// transitions, cancellation, and the invariants tying status to timestamps
// and ETA.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"brigade/internal/costing"
	"brigade/internal/errs"
	"brigade/internal/eta"
	"brigade/internal/inventory"
	"brigade/internal/metrics"
	"brigade/internal/models"
)

// Event describes an order change pushed to display subscribers
type Event struct {
	Type          string             `json:"type"`
	OrderID       string             `json:"orderId"`
	WaiterOrderID string             `json:"waiterOrderId"`
	Status        models.OrderStatus `json:"status"`
	ETAMinutes    int                `json:"etaMinutes"`
}

// Notifier receives order events; best-effort, never blocks the lifecycle
type Notifier interface {
	Publish(tenantID string, event Event)
}

// Options tune the manager's behavior
type Options struct {
	// StrictTransitions enforces the forward-only transition table on
	// advance-status requests. Permissive mode only validates the value,
	// matching how kitchen staff actually work the display.
	StrictTransitions bool
}

// Manager coordinates the ledger and engines around the order state machine
type Manager struct {
	db       *gorm.DB
	ledger   *inventory.Ledger
	eta      *eta.Engine
	costs    *costing.Engine
	opts     Options
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewManager wires the lifecycle manager to its collaborators
func NewManager(db *gorm.DB, ledger *inventory.Ledger, etaEngine *eta.Engine, costs *costing.Engine, opts Options) *Manager {
	return &Manager{
		db:     db,
		ledger: ledger,
		eta:    etaEngine,
		costs:  costs,
		opts:   opts,
		log:    zap.L().Named("lifecycle"),
		now:    time.Now,
	}
}

// SetNotifier attaches an event sink for display push updates
func (m *Manager) SetNotifier(n Notifier) { m.notifier = n }

func (m *Manager) publish(tenantID string, event Event) {
	if m.notifier != nil {
		m.notifier.Publish(tenantID, event)
	}
}

// PlaceRequest is an inbound waiter order
type PlaceRequest struct {
	OrderID  string               `json:"orderId"`
	Items    models.OrderItems    `json:"items"`
	Priority models.OrderPriority `json:"priority"`
}

// PlaceResult reports a confirmed placement
type PlaceResult struct {
	OrderID    string             `json:"orderId"`
	Status     models.OrderStatus `json:"status"`
	ETAMinutes int                `json:"eta"`
	TotalCOGS  float64            `json:"totalCogs"`
	Message    string             `json:"message"`
}

// Place takes an order from submission to confirmation. Availability check,
// order insert, stock deduction, and procurement trigger run in a single
// transaction: either exactly one CONFIRMED order exists with stock deducted
// for every resolved ingredient, or nothing is persisted and the caller gets
// the full set of missing ingredients.
func (m *Manager) Place(ctx context.Context, tenantID string, req PlaceRequest) (*PlaceResult, error) {
	if req.OrderID == "" {
		return nil, errs.Validationf("orderId is required")
	}
	if len(req.Items) == 0 {
		return nil, errs.Validationf("order must contain at least one item")
	}
	for _, item := range req.Items {
		if item.ItemID == "" {
			return nil, errs.Validationf("every item requires an itemId")
		}
		if item.Quantity <= 0 {
			return nil, errs.Validationf("item %s: quantity must be a positive integer", item.ItemID)
		}
	}
	priority := req.Priority
	switch priority {
	case models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
	case "":
		priority = models.PriorityNormal
	default:
		return nil, errs.Validationf("unknown priority %q", priority)
	}

	var result *PlaceResult
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		availability, err := m.ledger.CheckAvailabilityTx(tx, tenantID, req.Items)
		if err != nil {
			return err
		}
		if !availability.Available {
			return &errs.InsufficientStockError{Missing: availability.Missing}
		}

		etaMinutes := m.eta.CalculateETATx(tx, tenantID, req.Items)
		totalCOGS := m.costs.CalculateCOGSTx(tx, tenantID, req.Items)

		now := m.now()
		order := models.ChefOrder{
			ID:            uuid.NewString(),
			WaiterOrderID: req.OrderID,
			TenantID:      tenantID,
			Items:         req.Items,
			Status:        models.OrderStatusConfirmed,
			Priority:      priority,
			ETAMinutes:    etaMinutes,
			TotalCOGS:     totalCOGS,
			StartedAt:     &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(&order).Error; err != nil {
			return errs.Internal(err)
		}

		// a conditional decrement losing a race surfaces here and rolls
		// back the insert above
		if err := m.ledger.DeductTx(tx, tenantID, order.ID, req.Items); err != nil {
			return err
		}

		result = &PlaceResult{
			OrderID:    req.OrderID,
			Status:     models.OrderStatusConfirmed,
			ETAMinutes: etaMinutes,
			TotalCOGS:  totalCOGS,
			Message:    fmt.Sprintf("Order confirmed. Estimated preparation time: %d minutes", etaMinutes),
		}
		return nil
	})
	if err != nil {
		if errs.IsInsufficientStock(err) {
			metrics.OrdersRejectedTotal.WithLabelValues(tenantID).Inc()
		}
		return nil, err
	}
	metrics.OrdersPlacedTotal.WithLabelValues(tenantID).Inc()

	m.log.Info("order placed",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", req.OrderID),
		zap.Int("eta_minutes", result.ETAMinutes),
		zap.Float64("total_cogs", result.TotalCOGS))

	m.publish(tenantID, Event{
		Type:          "order_placed",
		WaiterOrderID: req.OrderID,
		Status:        models.OrderStatusConfirmed,
		ETAMinutes:    result.ETAMinutes,
	})
	return result, nil
}

// StatusResult reports an order's current state to the waiter agent
type StatusResult struct {
	OrderID      string             `json:"orderId"`
	Status       models.OrderStatus `json:"status"`
	RemainingETA int                `json:"eta"`
	Message      string             `json:"message"`
}

// GetStatus returns the order's status with its remaining ETA. Reads are
// idempotent and side-effect-free.
func (m *Manager) GetStatus(ctx context.Context, tenantID, waiterOrderID string) (*StatusResult, error) {
	order, err := m.findByWaiterID(ctx, tenantID, waiterOrderID)
	if err != nil {
		return nil, err
	}

	remaining := eta.Remaining(order, m.now())
	suffix := "Ready for pickup!"
	if remaining > 0 {
		suffix = fmt.Sprintf("ETA: %d minutes", remaining)
	}
	return &StatusResult{
		OrderID:      waiterOrderID,
		Status:       order.Status,
		RemainingETA: remaining,
		Message:      fmt.Sprintf("Order is %s. %s", strings.ToLower(string(order.Status)), suffix),
	}, nil
}

// CancelResult reports the outcome of a cancellation
type CancelResult struct {
	OrderID          string `json:"orderId"`
	AlreadyCancelled bool   `json:"alreadyCancelled,omitempty"`
}

// Cancel marks an order CANCELLED. Orders already READY or SERVED reject the
// cancellation. If the order never reached PREPARING, the stock deducted at
// placement is restored by reversing its audit rows in the same transaction.
// Cancelling twice reports already-cancelled rather than failing.
func (m *Manager) Cancel(ctx context.Context, tenantID, waiterOrderID string) (*CancelResult, error) {
	var (
		result      *CancelResult
		cancelledID string
	)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.ChefOrder
		err := tx.Where("waiter_order_id = ? AND tenant_id = ?", waiterOrderID, tenantID).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFoundf("order %s not found", waiterOrderID)
		}
		if err != nil {
			return errs.Internal(err)
		}

		switch order.Status {
		case models.OrderStatusCancelled:
			result = &CancelResult{OrderID: waiterOrderID, AlreadyCancelled: true}
			return nil
		case models.OrderStatusReady, models.OrderStatusServed:
			return errs.InvalidTransitionf("cannot cancel order - already %s",
				strings.ToLower(string(order.Status)))
		}

		restorable := order.Status == models.OrderStatusPending ||
			order.Status == models.OrderStatusConfirmed

		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":     models.OrderStatusCancelled,
			"updated_at": m.now(),
		}).Error; err != nil {
			return errs.Internal(err)
		}

		if restorable {
			if err := m.ledger.RestoreTx(tx, tenantID, order.ID); err != nil {
				return err
			}
		}

		result = &CancelResult{OrderID: waiterOrderID}
		cancelledID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.AlreadyCancelled {
		metrics.OrdersCancelledTotal.WithLabelValues(tenantID).Inc()
		// publish only after the transaction committed, like Place and
		// AdvanceStatus; subscribers must never see a rolled-back cancel
		m.publish(tenantID, Event{
			Type:          "order_cancelled",
			OrderID:       cancelledID,
			WaiterOrderID: waiterOrderID,
			Status:        models.OrderStatusCancelled,
		})
	}

	m.log.Info("order cancelled",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", waiterOrderID),
		zap.Bool("already_cancelled", result.AlreadyCancelled))
	return result, nil
}

// transitions is the forward-only table enforced in strict mode
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusPreparing, models.OrderStatusCancelled},
	models.OrderStatusPreparing: {models.OrderStatusReady, models.OrderStatusCancelled},
	models.OrderStatusReady:     {models.OrderStatusServed},
	models.OrderStatusServed:    {},
	models.OrderStatusCancelled: {},
}

func transitionAllowed(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AdvanceStatus moves an order to newStatus on behalf of the kitchen
// display. PREPARING stamps startedAt; READY zeroes the ETA and stamps
// completedAt; updatedAt always advances. Cancellation of READY/SERVED
// orders is rejected in both modes; strict mode additionally rejects skips
// and reversals.
func (m *Manager) AdvanceStatus(ctx context.Context, tenantID, orderID, newStatus string) (*models.ChefOrder, error) {
	status, ok := models.ParseOrderStatus(strings.ToUpper(newStatus))
	if !ok {
		return nil, errs.Validationf("invalid status %q", newStatus)
	}

	var updated models.ChefOrder
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.ChefOrder
		err := tx.Where("id = ? AND tenant_id = ?", orderID, tenantID).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFoundf("order %s not found", orderID)
		}
		if err != nil {
			return errs.Internal(err)
		}

		if status == models.OrderStatusCancelled && order.Status.Terminal() {
			return errs.InvalidTransitionf("cannot cancel order - already %s",
				strings.ToLower(string(order.Status)))
		}
		if m.opts.StrictTransitions && !transitionAllowed(order.Status, status) {
			return errs.InvalidTransitionf("cannot move order from %s to %s",
				order.Status, status)
		}

		now := m.now()
		updates := map[string]interface{}{
			"status":     status,
			"updated_at": now,
		}
		switch status {
		case models.OrderStatusPreparing:
			updates["started_at"] = now
		case models.OrderStatusReady:
			updates["eta_minutes"] = 0
			updates["completed_at"] = now
		}

		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return errs.Internal(err)
		}
		if err := tx.Where("id = ? AND tenant_id = ?", orderID, tenantID).
			First(&updated).Error; err != nil {
			return errs.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("order status updated",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", orderID),
		zap.String("status", string(status)))

	m.publish(tenantID, Event{
		Type:          "status_changed",
		OrderID:       updated.ID,
		WaiterOrderID: updated.WaiterOrderID,
		Status:        updated.Status,
		ETAMinutes:    updated.ETAMinutes,
	})
	return &updated, nil
}

// ListOrders returns the tenant's orders for the display queue: urgent
// first, then high, then normal; oldest first within a tier.
func (m *Manager) ListOrders(ctx context.Context, tenantID string, statusFilter string) ([]models.ChefOrder, error) {
	query := m.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("CASE priority WHEN 'urgent' THEN 1 WHEN 'high' THEN 2 ELSE 3 END, created_at ASC")

	if statusFilter != "" {
		status, ok := models.ParseOrderStatus(strings.ToUpper(statusFilter))
		if !ok {
			return nil, errs.Validationf("invalid status %q", statusFilter)
		}
		query = query.Where("status = ?", status)
	}

	var orders []models.ChefOrder
	if err := query.Find(&orders).Error; err != nil {
		return nil, errs.Internal(err)
	}
	return orders, nil
}

func (m *Manager) findByWaiterID(ctx context.Context, tenantID, waiterOrderID string) (*models.ChefOrder, error) {
	var order models.ChefOrder
	err := m.db.WithContext(ctx).
		Where("waiter_order_id = ? AND tenant_id = ?", waiterOrderID, tenantID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFoundf("order %s not found in kitchen queue", waiterOrderID)
	}
	if err != nil {
		return nil, errs.Internal(err)
	}
	return &order, nil
}
