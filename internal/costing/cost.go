// Package costing computes cost-of-goods-sold and profit margins from
// recipe and ingredient cost data. Estimates are best-effort: failures
// degrade to documented fallbacks rather than blocking order placement.
package costing

import (
	"context"
	"math"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"brigade/internal/models"
)

// Engine computes order economics against the recipe tables
type Engine struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewEngine creates a cost engine backed by the given store
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db, log: zap.L().Named("costing")}
}

// round2 rounds to 2 decimal places; applied once at the end of each
// calculation, never per item
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// itemCOGS sums quantity_required * unit_cost over one item's recipe.
// An item with no recipe contributes 0.
func (e *Engine) itemCOGS(tx *gorm.DB, tenantID string, item models.OrderItem) (float64, error) {
	var rows []struct {
		QuantityRequired float64
		UnitCost         float64
	}
	err := tx.
		Table("recipes").
		Select("recipes.quantity_required, ingredients.unit_cost").
		Joins("JOIN ingredients ON ingredients.id = recipes.ingredient_id AND ingredients.tenant_id = recipes.tenant_id").
		Where("recipes.tenant_id = ? AND recipes.menu_item_id = ?", tenantID, item.ItemID).
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		e.log.Warn("no recipe found for item, skipping cost",
			zap.String("tenant_id", tenantID),
			zap.String("item_id", item.ItemID))
		return 0, nil
	}

	var unitCost float64
	for _, row := range rows {
		unitCost += row.QuantityRequired * row.UnitCost
	}
	return unitCost * float64(item.Quantity), nil
}

// CalculateCOGS returns the total ingredient cost for the order, rounded to
// 2 decimal places. Failures are absorbed and reported as 0 — a degraded
// figure is preferable to blocking placement.
func (e *Engine) CalculateCOGS(ctx context.Context, tenantID string, items models.OrderItems) float64 {
	return e.CalculateCOGSTx(e.db.WithContext(ctx), tenantID, items)
}

// CalculateCOGSTx is CalculateCOGS against an existing transaction
func (e *Engine) CalculateCOGSTx(tx *gorm.DB, tenantID string, items models.OrderItems) float64 {
	var total float64
	for _, item := range items {
		cost, err := e.itemCOGS(tx, tenantID, item)
		if err != nil {
			e.log.Error("cogs calculation failed",
				zap.String("tenant_id", tenantID),
				zap.String("item_id", item.ItemID),
				zap.Error(err))
			return 0
		}
		total += cost
	}
	return round2(total)
}

// Breakdown is the per-item COGS listing used for analytics
type Breakdown struct {
	ItemID   string  `json:"itemId"`
	ItemName string  `json:"itemName"`
	Quantity int     `json:"quantity"`
	COGS     float64 `json:"cogs"`
}

// COGSBreakdown returns per-item costs for the order
func (e *Engine) COGSBreakdown(ctx context.Context, tenantID string, items models.OrderItems) ([]Breakdown, error) {
	tx := e.db.WithContext(ctx)
	breakdown := make([]Breakdown, 0, len(items))
	for _, item := range items {
		cost, err := e.itemCOGS(tx, tenantID, item)
		if err != nil {
			return nil, err
		}
		breakdown = append(breakdown, Breakdown{
			ItemID:   item.ItemID,
			ItemName: item.ItemName,
			Quantity: item.Quantity,
			COGS:     round2(cost),
		})
	}
	return breakdown, nil
}

// Margin summarizes order economics
type Margin struct {
	Revenue       float64 `json:"revenue"`
	COGS          float64 `json:"cogs"`
	MarginPercent float64 `json:"marginPercent"`
}

// ProfitMargin computes revenue from menu prices and margin over COGS.
// Margin is defined as 0 when revenue is 0.
func (e *Engine) ProfitMargin(ctx context.Context, tenantID string, items models.OrderItems) Margin {
	tx := e.db.WithContext(ctx)
	cogs := e.CalculateCOGSTx(tx, tenantID, items)

	var revenue float64
	for _, item := range items {
		var menuItem models.MenuItem
		err := tx.Where("id = ? AND tenant_id = ?", item.ItemID, tenantID).
			First(&menuItem).Error
		if err != nil {
			// unresolvable items contribute no revenue
			continue
		}
		revenue += menuItem.Price * float64(item.Quantity)
	}

	var margin float64
	if revenue > 0 {
		margin = (revenue - cogs) / revenue * 100
	}
	return Margin{
		Revenue:       round2(revenue),
		COGS:          cogs,
		MarginPercent: round2(margin),
	}
}
