package models

import "time"

// MenuItem is a sellable dish; prep time feeds the ETA engine and price
// feeds margin calculations
type MenuItem struct {
	ID          string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	TenantID    string    `json:"tenantId" gorm:"type:varchar(64);index"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Price       float64   `json:"price"`
	PrepTime    int       `json:"prepTime" gorm:"column:prep_time"`
	IsAvailable bool      `json:"isAvailable" gorm:"default:true"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Recipe maps a menu item to one ingredient requirement. A menu item with no
// recipe rows consumes nothing; the inventory ledger logs a warning when it
// sees one.
type Recipe struct {
	ID               uint    `json:"id" gorm:"primaryKey"`
	TenantID         string  `json:"tenantId" gorm:"type:varchar(64);index:idx_recipes_menu_item"`
	MenuItemID       string  `json:"menuItemId" gorm:"type:varchar(64);index:idx_recipes_menu_item"`
	IngredientID     string  `json:"ingredientId" gorm:"type:varchar(64);index"`
	QuantityRequired float64 `json:"quantityRequired"`
}
