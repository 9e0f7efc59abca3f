package costing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"brigade/internal/models"
)

const testTenant = "tenant-chutneys"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Ingredient{},
		&models.Recipe{},
		&models.MenuItem{},
	))
	return db
}

func seedBiryani(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.Ingredient{
		ID: "ing-rice", TenantID: testTenant, Name: "Basmati Rice",
		CurrentStock: 10, ReorderPoint: 2, Unit: "kg", UnitCost: 40,
	}).Error)
	require.NoError(t, db.Create(&models.Recipe{
		TenantID: testTenant, MenuItemID: "item-biryani",
		IngredientID: "ing-rice", QuantityRequired: 0.5,
	}).Error)
	require.NoError(t, db.Create(&models.MenuItem{
		ID: "item-biryani", TenantID: testTenant, Name: "Biryani",
		Price: 250, PrepTime: 25,
	}).Error)
}

func order(itemID string, qty int) models.OrderItems {
	return models.OrderItems{{ItemID: itemID, ItemName: itemID, Quantity: qty}}
}

func TestCalculateCOGS(t *testing.T) {
	db := newTestDB(t)
	seedBiryani(t, db)
	engine := NewEngine(db)
	ctx := context.Background()

	t.Run("biryani scenario", func(t *testing.T) {
		// 3 portions x 0.5kg x 40/kg
		assert.Equal(t, 60.0, engine.CalculateCOGS(ctx, testTenant, order("item-biryani", 3)))
	})

	t.Run("linear in quantity", func(t *testing.T) {
		one := engine.CalculateCOGS(ctx, testTenant, order("item-biryani", 1))
		two := engine.CalculateCOGS(ctx, testTenant, order("item-biryani", 2))
		assert.Equal(t, 2*one, two)
	})

	t.Run("item without recipe contributes zero", func(t *testing.T) {
		items := models.OrderItems{
			{ItemID: "item-biryani", ItemName: "Biryani", Quantity: 1},
			{ItemID: "item-nothing", ItemName: "Nothing", Quantity: 4},
		}
		assert.Equal(t, 20.0, engine.CalculateCOGS(ctx, testTenant, items))
	})

	t.Run("rounds once at the end", func(t *testing.T) {
		// each papad costs 0.333 x 0.01 = 0.00333; three items sum to
		// 0.00999 and round to 0.01 — per-item rounding would yield 0
		require.NoError(t, db.Create(&models.Ingredient{
			ID: "ing-flour", TenantID: testTenant, Name: "Flour",
			CurrentStock: 5, ReorderPoint: 1, Unit: "kg", UnitCost: 0.01,
		}).Error)
		require.NoError(t, db.Create(&models.Recipe{
			TenantID: testTenant, MenuItemID: "item-papad",
			IngredientID: "ing-flour", QuantityRequired: 0.333,
		}).Error)

		assert.Equal(t, 0.01, engine.CalculateCOGS(ctx, testTenant, order("item-papad", 3)))
	})

	t.Run("empty tenant sees nothing", func(t *testing.T) {
		assert.Equal(t, 0.0, engine.CalculateCOGS(ctx, "tenant-other", order("item-biryani", 3)))
	})
}

func TestCOGSBreakdown(t *testing.T) {
	db := newTestDB(t)
	seedBiryani(t, db)
	engine := NewEngine(db)

	items := models.OrderItems{
		{ItemID: "item-biryani", ItemName: "Biryani", Quantity: 2},
		{ItemID: "item-nothing", ItemName: "Nothing", Quantity: 1},
	}
	breakdown, err := engine.COGSBreakdown(context.Background(), testTenant, items)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	assert.Equal(t, 40.0, breakdown[0].COGS)
	assert.Equal(t, "item-biryani", breakdown[0].ItemID)
	assert.Zero(t, breakdown[1].COGS)
}

func TestProfitMargin(t *testing.T) {
	db := newTestDB(t)
	seedBiryani(t, db)
	engine := NewEngine(db)
	ctx := context.Background()

	t.Run("margin over menu price", func(t *testing.T) {
		margin := engine.ProfitMargin(ctx, testTenant, order("item-biryani", 2))
		assert.Equal(t, 500.0, margin.Revenue)
		assert.Equal(t, 40.0, margin.COGS)
		assert.Equal(t, 92.0, margin.MarginPercent)
	})

	t.Run("zero revenue yields zero margin", func(t *testing.T) {
		margin := engine.ProfitMargin(ctx, testTenant, order("item-unpriced", 3))
		assert.Zero(t, margin.Revenue)
		assert.Zero(t, margin.MarginPercent)
	})
}
