package repository

import (
	"context"
	"time"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/money"
)

// ExpenseRecord is the reporting view of one expense.
type ExpenseRecord struct {
	ID          uint        `json:"id"`
	Date        time.Time   `json:"date"`
	Category    string      `json:"category"`
	Amount      money.Money `json:"amount"`
	Description string      `json:"description,omitempty"`
}

func toExpenseRecord(e models.Expense) ExpenseRecord {
	return ExpenseRecord{
		ID:          e.ID,
		Date:        e.Date,
		Category:    e.Category,
		Amount:      e.Amount,
		Description: e.Description,
	}
}

var expenseBaseColumns = []string{"id", "date", "category", "amount", "created_at", "updated_at"}

type ExpenseRepository struct {
	base
	caps *Capabilities
}

// Create stores the expense. The description is dropped when the schema has
// no column for it.
func (r *ExpenseRepository) Create(ctx context.Context, e *models.Expense) error {
	if e.Amount.IsNegative() {
		return apperrors.Validation("create expense", "amount must not be negative")
	}
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	e.Date = e.Date.UTC()

	db, cancel := r.conn(ctx)
	defer cancel()

	if r.caps.Supported(FeatureExpenseDescription) {
		err := db.Create(e).Error
		if err == nil {
			return nil
		}
		if !IsSchemaMissing(err) {
			return wrap("create expense", err)
		}
		r.caps.Downgrade(FeatureExpenseDescription, err)
	}
	return wrap("create expense", db.Omit("Description").Create(e).Error)
}

// ListBetween returns expenses with from <= date < to, oldest first.
func (r *ExpenseRepository) ListBetween(ctx context.Context, from, to time.Time) ([]ExpenseRecord, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	query := func(columns []string) ([]models.Expense, error) {
		var rows []models.Expense
		err := db.Select(columns).
			Where("date >= ? AND date < ?", from.UTC(), to.UTC()).
			Order("date ASC, id ASC").
			Find(&rows).Error
		return rows, err
	}

	var rows []models.Expense
	var err error
	if r.caps.Supported(FeatureExpenseDescription) {
		rows, err = query(append(expenseBaseColumns[:len(expenseBaseColumns):len(expenseBaseColumns)], "description"))
		if err != nil && IsSchemaMissing(err) {
			r.caps.Downgrade(FeatureExpenseDescription, err)
			rows, err = query(expenseBaseColumns)
		}
	} else {
		rows, err = query(expenseBaseColumns)
	}
	if err != nil {
		return nil, wrap("list expenses", err)
	}

	records := make([]ExpenseRecord, 0, len(rows))
	for _, e := range rows {
		records = append(records, toExpenseRecord(e))
	}
	return records, nil
}
