package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-pos/money"
)

type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);unique" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// Product is a sellable item. Price is net of VAT; a nil Stock means the
// product is not stock tracked.
type Product struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CategoryID *uint           `json:"category_id"`
	Category   *Category       `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name"`
	Price      money.Money     `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock      *int            `json:"stock"`
	VatRate    decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0" json:"vat_rate"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}
