package models

import "time"

// Ingredient is a stocked raw material for one tenant
type Ingredient struct {
	ID           string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	TenantID     string    `json:"tenantId" gorm:"type:varchar(64);index"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null"`
	CurrentStock float64   `json:"currentStock"`
	ReorderPoint float64   `json:"reorderPoint"`
	Unit         string    `json:"unit" gorm:"type:varchar(16)"`
	Supplier     string    `json:"supplier" gorm:"type:varchar(255)"`
	UnitCost     float64   `json:"unitCost"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TransactionType classifies inventory movements
type TransactionType string

const (
	TransactionDeduction   TransactionType = "deduction"
	TransactionRestoration TransactionType = "restoration"
)

// InventoryTransaction is one append-only audit row; quantity is signed,
// negative for deductions
type InventoryTransaction struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	TenantID       string          `json:"tenantId" gorm:"type:varchar(64);index"`
	IngredientID   string          `json:"ingredientId" gorm:"type:varchar(64);index"`
	Type           TransactionType `json:"type" gorm:"column:transaction_type;type:varchar(16)"`
	Quantity       float64         `json:"quantity"`
	RelatedOrderID string          `json:"relatedOrderId" gorm:"type:varchar(64);index"`
	Notes          string          `json:"notes" gorm:"type:text"`
	CreatedBy      string          `json:"createdBy" gorm:"type:varchar(64)"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// PurchaseOrderStatus represents the procurement lifecycle of a PO
type PurchaseOrderStatus string

const (
	PurchaseOrderPending   PurchaseOrderStatus = "pending"
	PurchaseOrderOrdered   PurchaseOrderStatus = "ordered"
	PurchaseOrderReceived  PurchaseOrderStatus = "received"
	PurchaseOrderCancelled PurchaseOrderStatus = "cancelled"
)

// PurchaseOrder is a replenishment request created when stock falls below
// the reorder point
type PurchaseOrder struct {
	ID           string              `json:"id" gorm:"type:varchar(64);primaryKey"`
	TenantID     string              `json:"tenantId" gorm:"type:varchar(64);index"`
	IngredientID string              `json:"ingredientId" gorm:"type:varchar(64);index"`
	Quantity     float64             `json:"quantity"`
	Supplier     string              `json:"supplier" gorm:"type:varchar(255)"`
	Status       PurchaseOrderStatus `json:"status" gorm:"type:varchar(16);index"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}
