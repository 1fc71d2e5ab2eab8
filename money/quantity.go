package money

import "github.com/yeremiapane/restaurant-pos/apperrors"

// Quantity is a count of units, always at least one.
type Quantity int

func NewQuantity(n int) (Quantity, error) {
	if n <= 0 {
		return 0, apperrors.Validation("money.NewQuantity", "quantity must be positive, got %d", n)
	}
	return Quantity(n), nil
}

func (q Quantity) Int() int { return int(q) }
