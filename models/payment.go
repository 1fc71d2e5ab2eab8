package models

import (
	"time"

	"github.com/yeremiapane/restaurant-pos/money"
)

const (
	PaymentMethodCash = "CASH"
	PaymentMethodCard = "CARD"
)

// Payment records the money taken for a closed order.
type Payment struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	OrderID     uint        `gorm:"uniqueIndex;not null" json:"order_id"`
	Order       Order       `gorm:"foreignKey:OrderID" json:"-"`
	CashierID   *uint       `gorm:"index" json:"cashier_id,omitempty"`
	Amount      money.Money `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method      string      `gorm:"type:varchar(20);not null;default:'CASH'" json:"method"`
	ReferenceID string      `gorm:"type:varchar(64);not null" json:"reference_id"`
	PaidAt      time.Time   `gorm:"index;not null" json:"paid_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
