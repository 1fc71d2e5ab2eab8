package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/money"
)

// SaleRecord is the reporting view of one completed payment.
type SaleRecord struct {
	PaymentID   uint        `json:"payment_id"`
	OrderID     uint        `json:"order_id"`
	ReferenceID string      `json:"reference_id"`
	TableNumber int         `json:"table_number"`
	Amount      money.Money `json:"amount"`
	Method      string      `json:"method"`
	Cashier     string      `json:"cashier"`
	PaidAt      time.Time   `json:"paid_at"`
}

type saleRow struct {
	ID          uint
	OrderID     uint
	ReferenceID string
	TableNumber int
	Amount      money.Money
	Method      string
	CashierName *string
	PaidAt      time.Time
}

func toSaleRecord(row saleRow) SaleRecord {
	rec := SaleRecord{
		PaymentID:   row.ID,
		OrderID:     row.OrderID,
		ReferenceID: row.ReferenceID,
		TableNumber: row.TableNumber,
		Amount:      row.Amount,
		Method:      row.Method,
		PaidAt:      row.PaidAt,
	}
	if row.CashierName != nil {
		rec.Cashier = *row.CashierName
	}
	return rec
}

type PaymentRepository struct {
	base
}

// Create inserts the payment. The unique order_id index rejects a second
// payment for the same order.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	if p.Amount.IsNegative() {
		return apperrors.Validation("create payment", "amount must not be negative")
	}
	if p.ReferenceID == "" {
		p.ReferenceID = uuid.NewString()
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now()
	}
	p.PaidAt = p.PaidAt.UTC()
	return wrap("create payment", db.Omit("Order").Create(p).Error)
}

func (r *PaymentRepository) CountByOrder(ctx context.Context, orderID uint) (int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var count int64
	if err := db.Model(&models.Payment{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return 0, wrap("count payments", err)
	}
	return count, nil
}

// ListBetween returns payments with from <= paid_at < to, oldest first.
func (r *PaymentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]SaleRecord, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var rows []saleRow
	err := db.Table("payments").
		Select("payments.id, payments.order_id, payments.reference_id, tables.table_number, payments.amount, payments.method, users.name AS cashier_name, payments.paid_at").
		Joins("JOIN orders ON orders.id = payments.order_id").
		Joins("JOIN tables ON tables.id = orders.table_id").
		Joins("LEFT JOIN users ON users.id = payments.cashier_id").
		Where("payments.paid_at >= ? AND payments.paid_at < ?", from.UTC(), to.UTC()).
		Order("payments.paid_at ASC, payments.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("list payments", err)
	}
	records := make([]SaleRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toSaleRecord(row))
	}
	return records, nil
}
