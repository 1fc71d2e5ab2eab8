package models

import "time"

const (
	RoleWaiter  = "waiter"
	RoleCashier = "cashier"
)

// User is referenced by orders (waiter) and payments (cashier).
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Role      string    `gorm:"type:varchar(50);not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
