package models

import (
	"time"

	"github.com/yeremiapane/restaurant-pos/money"
)

// Expense is an outgoing payment. Description is an optional column that older
// schemas do not have.
type Expense struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Date        time.Time   `gorm:"index;not null" json:"date"`
	Category    string      `gorm:"type:varchar(100);not null;default:''" json:"category"`
	Amount      money.Money `gorm:"type:decimal(12,2);not null" json:"amount"`
	Description string      `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
