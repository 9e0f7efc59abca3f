// Package inventory implements the stock ledger: availability checks,
// order deductions with an append-only audit trail, compensation on
// cancellation, and procurement triggering.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"brigade/internal/errs"
	"brigade/internal/metrics"
	"brigade/internal/models"
)

// DeductionActor is recorded on every audit row written by the ledger
const DeductionActor = "chef_agent"

// Ledger tracks per-ingredient stock for all tenants
type Ledger struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewLedger creates a ledger backed by the given store
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, log: zap.L().Named("inventory")}
}

// Availability is the result of an order-level stock check
type Availability struct {
	Available bool
	Missing   []errs.Shortfall
}

// requirement is one resolved recipe row scaled by the ordered quantity
type requirement struct {
	IngredientID string
	Name         string
	CurrentStock float64
	Required     float64
	ItemName     string
	ItemQuantity int
}

// resolve joins each item's recipe against current stock. Items without a
// recipe resolve to nothing; that is a warning, not a failure.
func (l *Ledger) resolve(tx *gorm.DB, tenantID string, items models.OrderItems) ([]requirement, error) {
	var reqs []requirement
	for _, item := range items {
		var rows []struct {
			IngredientID     string
			QuantityRequired float64
			Name             string
			CurrentStock     float64
		}
		err := tx.
			Table("recipes").
			Select("recipes.ingredient_id, recipes.quantity_required, ingredients.name, ingredients.current_stock").
			Joins("JOIN ingredients ON ingredients.id = recipes.ingredient_id AND ingredients.tenant_id = recipes.tenant_id").
			Where("recipes.tenant_id = ? AND recipes.menu_item_id = ?", tenantID, item.ItemID).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			l.log.Warn("no recipe found for item",
				zap.String("tenant_id", tenantID),
				zap.String("item_id", item.ItemID))
			continue
		}
		for _, row := range rows {
			reqs = append(reqs, requirement{
				IngredientID: row.IngredientID,
				Name:         row.Name,
				CurrentStock: row.CurrentStock,
				Required:     row.QuantityRequired * float64(item.Quantity),
				ItemName:     item.ItemName,
				ItemQuantity: item.Quantity,
			})
		}
	}
	return reqs, nil
}

// CheckAvailability reports whether stock covers every resolved ingredient
// requirement for the order. All shortfalls are collected, not just the
// first.
func (l *Ledger) CheckAvailability(ctx context.Context, tenantID string, items models.OrderItems) (*Availability, error) {
	return l.CheckAvailabilityTx(l.db.WithContext(ctx), tenantID, items)
}

// CheckAvailabilityTx is CheckAvailability running against an existing
// transaction so placement can pair the check with the deduction
func (l *Ledger) CheckAvailabilityTx(tx *gorm.DB, tenantID string, items models.OrderItems) (*Availability, error) {
	reqs, err := l.resolve(tx, tenantID, items)
	if err != nil {
		return nil, errs.Internal(err)
	}

	var missing []errs.Shortfall
	for _, req := range reqs {
		if req.CurrentStock < req.Required {
			missing = append(missing, errs.Shortfall{
				IngredientName: req.Name,
				Required:       req.Required,
				Available:      req.CurrentStock,
			})
		}
	}
	return &Availability{Available: len(missing) == 0, Missing: missing}, nil
}

// DeductTx decrements stock for every resolved ingredient requirement and
// appends a signed audit row per decrement, all inside the caller's
// transaction. Each decrement is conditional on remaining stock, so a
// concurrent racer that drained the shelf first surfaces as
// InsufficientStock here and the caller's transaction rolls back — stock
// is never observably negative and deductions are all-or-nothing.
func (l *Ledger) DeductTx(tx *gorm.DB, tenantID, orderID string, items models.OrderItems) error {
	reqs, err := l.resolve(tx, tenantID, items)
	if err != nil {
		return errs.Internal(err)
	}

	for _, req := range reqs {
		res := tx.Model(&models.Ingredient{}).
			Where("id = ? AND tenant_id = ? AND current_stock >= ?",
				req.IngredientID, tenantID, req.Required).
			Update("current_stock", gorm.Expr("current_stock - ?", req.Required))
		if res.Error != nil {
			return errs.Internal(res.Error)
		}
		if res.RowsAffected == 0 {
			// lost the race: re-read for an accurate shortfall report
			var ing models.Ingredient
			available := 0.0
			if err := tx.Where("id = ? AND tenant_id = ?", req.IngredientID, tenantID).
				First(&ing).Error; err == nil {
				available = ing.CurrentStock
			}
			return &errs.InsufficientStockError{Missing: []errs.Shortfall{{
				IngredientName: req.Name,
				Required:       req.Required,
				Available:      available,
			}}}
		}

		audit := models.InventoryTransaction{
			TenantID:       tenantID,
			IngredientID:   req.IngredientID,
			Type:           models.TransactionDeduction,
			Quantity:       -req.Required,
			RelatedOrderID: orderID,
			Notes:          fmt.Sprintf("Deducted for order %s: %s x%d", orderID, req.ItemName, req.ItemQuantity),
			CreatedBy:      DeductionActor,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return errs.Internal(err)
		}

		l.log.Info("deducted ingredient",
			zap.String("tenant_id", tenantID),
			zap.String("order_id", orderID),
			zap.String("ingredient", req.Name),
			zap.Float64("quantity", req.Required))
	}

	return l.TriggerProcurementTx(tx, tenantID)
}

// RestoreTx reverses exactly the deduction audit rows tied to an order,
// writing compensating restoration rows. Used when a not-yet-started order
// is cancelled.
func (l *Ledger) RestoreTx(tx *gorm.DB, tenantID, orderID string) error {
	var deductions []models.InventoryTransaction
	if err := tx.
		Where("tenant_id = ? AND related_order_id = ? AND transaction_type = ?",
			tenantID, orderID, models.TransactionDeduction).
		Find(&deductions).Error; err != nil {
		return errs.Internal(err)
	}

	for _, d := range deductions {
		restored := -d.Quantity // deductions are negative
		if err := tx.Model(&models.Ingredient{}).
			Where("id = ? AND tenant_id = ?", d.IngredientID, tenantID).
			Update("current_stock", gorm.Expr("current_stock + ?", restored)).Error; err != nil {
			return errs.Internal(err)
		}
		audit := models.InventoryTransaction{
			TenantID:       tenantID,
			IngredientID:   d.IngredientID,
			Type:           models.TransactionRestoration,
			Quantity:       restored,
			RelatedOrderID: orderID,
			Notes:          fmt.Sprintf("Restored for cancelled order %s", orderID),
			CreatedBy:      DeductionActor,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return errs.Internal(err)
		}
	}

	if len(deductions) > 0 {
		l.log.Info("restored inventory for cancelled order",
			zap.String("tenant_id", tenantID),
			zap.String("order_id", orderID),
			zap.Int("transactions", len(deductions)))
	}
	return nil
}

// TriggerProcurementTx scans for ingredients under their reorder point and
// creates a purchase order sized at twice the reorder point for each, unless
// a pending one already exists. The dedup check runs in the same transaction
// as the insert so concurrent low-stock detections cannot double-order.
func (l *Ledger) TriggerProcurementTx(tx *gorm.DB, tenantID string) error {
	var low []models.Ingredient
	if err := tx.
		Where("tenant_id = ? AND current_stock < reorder_point", tenantID).
		Find(&low).Error; err != nil {
		return errs.Internal(err)
	}

	for _, ing := range low {
		var pending int64
		if err := tx.Model(&models.PurchaseOrder{}).
			Where("tenant_id = ? AND ingredient_id = ? AND status = ?",
				tenantID, ing.ID, models.PurchaseOrderPending).
			Count(&pending).Error; err != nil {
			return errs.Internal(err)
		}
		if pending > 0 {
			l.log.Debug("purchase order already pending",
				zap.String("tenant_id", tenantID),
				zap.String("ingredient", ing.Name))
			continue
		}

		po := models.PurchaseOrder{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			IngredientID: ing.ID,
			Quantity:     ing.ReorderPoint * 2,
			Supplier:     ing.Supplier,
			Status:       models.PurchaseOrderPending,
		}
		if err := tx.Create(&po).Error; err != nil {
			return errs.Internal(err)
		}
		metrics.PurchaseOrdersCreatedTotal.WithLabelValues(tenantID).Inc()

		l.log.Info("created purchase order",
			zap.String("tenant_id", tenantID),
			zap.String("ingredient", ing.Name),
			zap.Float64("quantity", po.Quantity),
			zap.String("unit", ing.Unit))
	}
	return nil
}

// TriggerProcurement runs the low-stock scan in its own transaction
func (l *Ledger) TriggerProcurement(ctx context.Context, tenantID string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.TriggerProcurementTx(tx, tenantID)
	})
}

// GetStockLevel returns current stock for one ingredient
func (l *Ledger) GetStockLevel(ctx context.Context, tenantID, ingredientID string) (float64, error) {
	var ing models.Ingredient
	err := l.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", ingredientID, tenantID).
		First(&ing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errs.NotFoundf("ingredient %s not found", ingredientID)
	}
	if err != nil {
		return 0, errs.Internal(err)
	}
	return ing.CurrentStock, nil
}

// Alert is one low-stock entry for the display
type Alert struct {
	IngredientName string  `json:"ingredientName"`
	CurrentStock   float64 `json:"currentStock"`
	ReorderPoint   float64 `json:"reorderPoint"`
	Unit           string  `json:"unit"`
}

// LowStockAlerts returns up to 10 ingredients under their reorder point,
// worst deficit first. It never fails outward: internal errors degrade to
// an empty list so the display is never blocked.
func (l *Ledger) LowStockAlerts(ctx context.Context, tenantID string) []Alert {
	var ingredients []models.Ingredient
	err := l.db.WithContext(ctx).
		Where("tenant_id = ? AND current_stock < reorder_point", tenantID).
		Order("(reorder_point - current_stock) DESC").
		Limit(10).
		Find(&ingredients).Error
	if err != nil {
		l.log.Error("low stock query failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return []Alert{}
	}

	alerts := make([]Alert, 0, len(ingredients))
	for _, ing := range ingredients {
		alerts = append(alerts, Alert{
			IngredientName: ing.Name,
			CurrentStock:   ing.CurrentStock,
			ReorderPoint:   ing.ReorderPoint,
			Unit:           ing.Unit,
		})
	}
	return alerts
}
