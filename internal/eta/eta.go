// Package eta estimates preparation time from per-item prep times, ordered
// quantities, and current kitchen load. Estimates are best-effort: any
// resolution failure returns a fixed fallback instead of an error.
package eta

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"brigade/internal/models"
)

const (
	// DefaultPrepMinutes is assumed when a menu item has no prep time
	DefaultPrepMinutes = 15
	// NoItemsMinutes is returned when no ordered item resolves to a menu entry
	NoItemsMinutes = 20
	// FallbackMinutes is returned when resolution fails outright
	FallbackMinutes = 25

	// quantityScale is the diminishing-returns factor for multiples of the
	// same dish; extra portions cook mostly in parallel
	quantityScale = 0.3
	// loadPerOrder is the delay each active order adds
	loadPerOrder = 0.10
	// loadCap bounds the total kitchen-load delay
	loadCap = 0.50
)

// activeStatuses are the order states that count toward kitchen load
var activeStatuses = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusConfirmed,
	models.OrderStatusPreparing,
}

// Engine computes preparation-time estimates
type Engine struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewEngine creates an ETA engine backed by the given store
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db, log: zap.L().Named("eta")}
}

// CalculateETA estimates minutes until the order is ready. Items are assumed
// prepared in parallel, so the base time is the slowest item's time; the
// current kitchen load then stretches it by up to 50%.
func (e *Engine) CalculateETA(ctx context.Context, tenantID string, items models.OrderItems) int {
	return e.CalculateETATx(e.db.WithContext(ctx), tenantID, items)
}

// CalculateETATx is CalculateETA against an existing transaction
func (e *Engine) CalculateETATx(tx *gorm.DB, tenantID string, items models.OrderItems) int {
	var itemTimes []float64
	for _, item := range items {
		var menuItem models.MenuItem
		err := tx.Where("id = ? AND tenant_id = ?", item.ItemID, tenantID).
			First(&menuItem).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			e.log.Error("eta resolution failed",
				zap.String("tenant_id", tenantID),
				zap.String("item_id", item.ItemID),
				zap.Error(err))
			return FallbackMinutes
		}

		base := float64(menuItem.PrepTime)
		if base <= 0 {
			base = DefaultPrepMinutes
		}
		itemTimes = append(itemTimes, base+base*quantityScale*float64(item.Quantity-1))
	}

	if len(itemTimes) == 0 {
		return NoItemsMinutes
	}

	baseTime := itemTimes[0]
	for _, t := range itemTimes[1:] {
		if t > baseTime {
			baseTime = t
		}
	}

	var load int64
	if err := tx.Model(&models.ChefOrder{}).
		Where("tenant_id = ? AND status IN ?", tenantID, activeStatuses).
		Count(&load).Error; err != nil {
		e.log.Error("kitchen load query failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return FallbackMinutes
	}

	multiplier := 1 + math.Min(float64(load)*loadPerOrder, loadCap)
	final := int(math.Ceil(baseTime * multiplier))

	e.log.Debug("eta calculated",
		zap.String("tenant_id", tenantID),
		zap.Float64("base_minutes", baseTime),
		zap.Int64("kitchen_load", load),
		zap.Int("final_minutes", final))

	return final
}

// Remaining returns the minutes left on an order's estimate, floored at 0
func Remaining(order *models.ChefOrder, now time.Time) int {
	elapsed := int(now.Sub(order.CreatedAt).Minutes())
	if remaining := order.ETAMinutes - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}
