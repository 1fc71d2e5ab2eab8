package models

import (
	"time"

	"github.com/yeremiapane/restaurant-pos/money"
)

// Logical order statuses. The stored value may differ when the schema does
// not support one of them, see repository.StatusMapper.
const (
	OrderStatusPending    = "PENDING"
	OrderStatusInProgress = "IN_PROGRESS"
	OrderStatusReady      = "READY"
	OrderStatusServed     = "SERVED"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCancelled  = "CANCELLED"
)

type Order struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	TableID       uint        `gorm:"index;not null" json:"table_id"`
	Table         Table       `gorm:"foreignKey:TableID" json:"-"`
	WaiterID      *uint       `gorm:"index" json:"waiter_id,omitempty"`
	Waiter        *User       `gorm:"foreignKey:WaiterID" json:"-"`
	Status        string      `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Subtotal      money.Money `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	TaxTotal      money.Money `gorm:"type:decimal(12,2);not null;default:0" json:"tax_total"`
	DiscountTotal money.Money `gorm:"type:decimal(12,2);not null;default:0" json:"discount_total"`
	Total         money.Money `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	ClosedAt      *time.Time  `json:"closed_at,omitempty"`
	CreatedAt     time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"not null" json:"updated_at"`
	OrderItems    []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
}
