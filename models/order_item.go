package models

import (
	"time"

	"github.com/yeremiapane/restaurant-pos/money"
)

// OrderItem is one product row of a persisted order. UnitPrice is the gross
// price snapshot; the totals are computed when the row is written.
type OrderItem struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"index;not null" json:"order_id"`
	Order     Order       `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ProductID uint        `gorm:"index;not null" json:"product_id"`
	Product   Product     `gorm:"foreignKey:ProductID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Quantity  int         `gorm:"not null" json:"quantity"`
	UnitPrice money.Money `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	NetTotal  money.Money `gorm:"type:decimal(12,2);not null" json:"net_total"`
	TaxTotal  money.Money `gorm:"type:decimal(12,2);not null" json:"tax_total"`
	LineTotal money.Money `gorm:"type:decimal(12,2);not null" json:"line_total"`
	CreatedAt time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time   `gorm:"not null" json:"updated_at"`
}
