package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/money"
)

// Totals are the summed money columns of an order.
type Totals struct {
	Subtotal money.Money
	Tax      money.Money
	Discount money.Money
	Total    money.Money
}

// SumItems adds up the persisted line totals. Discounts are not applied by
// the point of sale and stay zero.
func SumItems(items []models.OrderItem) Totals {
	var t Totals
	for _, it := range items {
		t.Subtotal = t.Subtotal.Add(it.NetTotal)
		t.Tax = t.Tax.Add(it.TaxTotal)
		t.Total = t.Total.Add(it.LineTotal)
	}
	t.Total = t.Total.Sub(t.Discount)
	return t
}

type OrderRepository struct {
	base
	statuses *StatusMapper
}

func (r *OrderRepository) stored(ctx context.Context, logical string) string {
	if r.statuses == nil {
		return logical
	}
	return r.statuses.Resolve(ctx, logical)
}

func (r *OrderRepository) logical(order *models.Order) {
	if r.statuses != nil && order != nil {
		order.Status = r.statuses.ToLogical(order.Status)
	}
}

// Create inserts a new open order. order.Status holds the logical status and
// is mapped to a storable value.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	logical := order.Status
	order.Status = r.stored(ctx, logical)
	err := db.Omit("Table", "Waiter", "OrderItems").Create(order).Error
	order.Status = logical
	return wrap("create order", err)
}

func (r *OrderRepository) Find(ctx context.Context, id uint) (*models.Order, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var order models.Order
	if err := db.Preload("Table").First(&order, id).Error; err != nil {
		if notFound(err) {
			return nil, apperrors.NotFound("find order", "order %d not found", id)
		}
		return nil, wrap("find order", err)
	}
	r.logical(&order)
	return &order, nil
}

// FindOpenByTable returns the open order of a table, or nil when the table
// has none.
func (r *OrderRepository) FindOpenByTable(ctx context.Context, tableID uint) (*models.Order, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var orders []models.Order
	err := db.Where("table_id = ? AND closed_at IS NULL", tableID).
		Order("id ASC").Limit(1).Find(&orders).Error
	if err != nil {
		return nil, wrap("find open order", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}
	r.logical(&orders[0])
	return &orders[0], nil
}

// ListOpen loads every open order with its table and items.
func (r *OrderRepository) ListOpen(ctx context.Context) ([]models.Order, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var orders []models.Order
	err := db.Preload("Table").Preload("OrderItems", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).Preload("OrderItems.Product").
		Where("closed_at IS NULL").Order("id ASC").Find(&orders).Error
	if err != nil {
		return nil, wrap("list open orders", err)
	}
	for i := range orders {
		r.logical(&orders[i])
	}
	return orders, nil
}

func (r *OrderRepository) UpdateTotals(ctx context.Context, id uint, t Totals) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Model(&models.Order{}).Where("id = ? AND closed_at IS NULL", id).Updates(map[string]interface{}{
		"subtotal":       t.Subtotal,
		"tax_total":      t.Tax,
		"discount_total": t.Discount,
		"total":          t.Total,
		"updated_at":     time.Now(),
	})
	if res.Error != nil {
		return wrap("update order totals", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missingOpen(ctx, "update order totals", id)
	}
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint, logical string) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Model(&models.Order{}).Where("id = ? AND closed_at IS NULL", id).Updates(map[string]interface{}{
		"status":     r.stored(ctx, logical),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return wrap("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missingOpen(ctx, "update order status", id)
	}
	return nil
}

// Close writes the final totals, the terminal status and the close time in
// one statement. It fails with Conflict when the order is already closed.
func (r *OrderRepository) Close(ctx context.Context, id uint, t Totals, at time.Time) error {
	return r.finish(ctx, "close order", id, models.OrderStatusCompleted, &t, at)
}

// Cancel closes an order without a payment.
func (r *OrderRepository) Cancel(ctx context.Context, id uint, at time.Time) error {
	return r.finish(ctx, "cancel order", id, models.OrderStatusCancelled, nil, at)
}

func (r *OrderRepository) finish(ctx context.Context, op string, id uint, logical string, t *Totals, at time.Time) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	values := map[string]interface{}{
		"status":     r.stored(ctx, logical),
		"closed_at":  at,
		"updated_at": at,
	}
	if t != nil {
		values["subtotal"] = t.Subtotal
		values["tax_total"] = t.Tax
		values["discount_total"] = t.Discount
		values["total"] = t.Total
	}
	res := db.Model(&models.Order{}).Where("id = ? AND closed_at IS NULL", id).Updates(values)
	if res.Error != nil {
		return wrap(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missingOpen(ctx, op, id)
	}
	return nil
}

func (r *OrderRepository) missingOpen(ctx context.Context, op string, id uint) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	var count int64
	if err := db.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return wrap(op, err)
	}
	if count == 0 {
		return apperrors.NotFound(op, "order %d not found", id)
	}
	return apperrors.Conflict(op, "order %d is already closed", id)
}
