package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus represents the possible states of a chef order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusServed    OrderStatus = "SERVED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus validates and normalizes a status string
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch status := OrderStatus(s); status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusServed, OrderStatusCancelled:
		return status, true
	}
	return "", false
}

// Terminal reports whether no further work happens on an order in this status
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusServed || s == OrderStatusCancelled
}

// OrderPriority affects queue ordering on the display, not processing
type OrderPriority string

const (
	PriorityNormal OrderPriority = "normal"
	PriorityHigh   OrderPriority = "high"
	PriorityUrgent OrderPriority = "urgent"
)

// OrderItem is one line of a waiter order
type OrderItem struct {
	ItemID              string   `json:"itemId"`
	ItemName            string   `json:"itemName"`
	Quantity            int      `json:"quantity"`
	Modifications       []string `json:"modifications,omitempty"`
	SpecialInstructions string   `json:"specialInstructions,omitempty"`
}

// OrderItems is stored as a single JSON column on chef_orders
type OrderItems []OrderItem

// Value implements driver.Valuer
func (items OrderItems) Value() (driver.Value, error) {
	return json.Marshal(items)
}

// Scan implements sql.Scanner
func (items *OrderItems) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, items)
	case string:
		return json.Unmarshal([]byte(v), items)
	case nil:
		*items = nil
		return nil
	}
	return fmt.Errorf("cannot scan %T into OrderItems", value)
}

// ChefOrder is the kitchen-side record of a waiter order
type ChefOrder struct {
	ID            string        `json:"id" gorm:"type:varchar(64);primaryKey"`
	WaiterOrderID string        `json:"waiterOrderId" gorm:"type:varchar(64);uniqueIndex:idx_chef_orders_waiter"`
	TenantID      string        `json:"tenantId" gorm:"type:varchar(64);index;uniqueIndex:idx_chef_orders_waiter"`
	Items         OrderItems    `json:"items" gorm:"type:json"`
	Status        OrderStatus   `json:"status" gorm:"type:varchar(16);index"`
	Priority      OrderPriority `json:"priority" gorm:"type:varchar(8);default:normal"`
	ETAMinutes    int           `json:"etaMinutes"`
	TotalCOGS     float64       `json:"totalCogs"`
	StartedAt     *time.Time    `json:"startedAt"`
	CompletedAt   *time.Time    `json:"completedAt"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// TableName keeps the table name aligned with the waiter-side schema
func (ChefOrder) TableName() string {
	return "chef_orders"
}
