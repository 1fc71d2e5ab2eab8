package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/money"
)

// ApplyLineTotals computes the net, tax and line totals of an item from its
// gross unit price and quantity. The tax is the remainder so that
// net + tax always equals the charged line total.
func ApplyLineTotals(item *models.OrderItem, vat decimal.Decimal) {
	line := item.UnitPrice.MulQty(money.Quantity(item.Quantity))
	net := money.FromDecimal(line.Decimal().Div(decimal.NewFromInt(1).Add(vat)))
	item.LineTotal = line
	item.NetTotal = net
	item.TaxTotal = line.Sub(net)
}

type OrderItemRepository struct {
	base
}

func (r *OrderItemRepository) Find(ctx context.Context, id uint) (*models.OrderItem, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var item models.OrderItem
	if err := db.Preload("Product").First(&item, id).Error; err != nil {
		if notFound(err) {
			return nil, apperrors.NotFound("find order item", "order item %d not found", id)
		}
		return nil, wrap("find order item", err)
	}
	return &item, nil
}

// FindByOrderAndProduct returns nil when the order has no line for the product.
func (r *OrderItemRepository) FindByOrderAndProduct(ctx context.Context, orderID, productID uint) (*models.OrderItem, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var items []models.OrderItem
	err := db.Preload("Product").
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Limit(1).Find(&items).Error
	if err != nil {
		return nil, wrap("find order item", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *OrderItemRepository) ListByOrder(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var items []models.OrderItem
	if err := db.Preload("Product").Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, wrap("list order items", err)
	}
	return items, nil
}

func (r *OrderItemRepository) Create(ctx context.Context, item *models.OrderItem, vat decimal.Decimal) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	if item.Quantity <= 0 {
		return apperrors.Validation("create order item", "quantity must be positive, got %d", item.Quantity)
	}
	ApplyLineTotals(item, vat)
	return wrap("create order item", db.Omit("Order", "Product").Create(item).Error)
}

// UpdateQuantity stores a new quantity and the recomputed totals.
func (r *OrderItemRepository) UpdateQuantity(ctx context.Context, item *models.OrderItem, quantity int, vat decimal.Decimal) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	if quantity <= 0 {
		return apperrors.Validation("update order item", "quantity must be positive, got %d", quantity)
	}
	item.Quantity = quantity
	ApplyLineTotals(item, vat)
	res := db.Model(&models.OrderItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"quantity":   item.Quantity,
		"net_total":  item.NetTotal,
		"tax_total":  item.TaxTotal,
		"line_total": item.LineTotal,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return wrap("update order item", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("update order item", "order item %d not found", item.ID)
	}
	return nil
}

func (r *OrderItemRepository) Delete(ctx context.Context, id uint) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Delete(&models.OrderItem{}, id)
	if res.Error != nil {
		return wrap("delete order item", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("delete order item", "order item %d not found", id)
	}
	return nil
}

func (r *OrderItemRepository) DeleteByOrder(ctx context.Context, orderID uint) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	return wrap("delete order items", db.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error)
}
