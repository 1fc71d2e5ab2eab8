package repository

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/metrics"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/money"
)

// ProductInfo is what the order workflow needs to know about a product.
type ProductInfo struct {
	ID         uint
	Name       string
	NetPrice   money.Money
	GrossPrice money.Money
	VatRate    decimal.Decimal
	Stock      *int
}

// Tracked reports whether the product has a stock level.
func (p ProductInfo) Tracked() bool { return p.Stock != nil }

func toProductInfo(p models.Product) ProductInfo {
	info := ProductInfo{
		ID:         p.ID,
		Name:       p.Name,
		NetPrice:   p.Price,
		GrossPrice: GrossPrice(p.Price, p.VatRate),
		VatRate:    p.VatRate,
	}
	if p.Stock != nil {
		stock := *p.Stock
		info.Stock = &stock
	}
	return info
}

// GrossPrice is the VAT inclusive unit price charged to the customer.
func GrossPrice(net money.Money, vat decimal.Decimal) money.Money {
	return net.MulRate(decimal.NewFromInt(1).Add(vat))
}

type ProductRepository struct {
	base
}

func (r *ProductRepository) Find(ctx context.Context, id uint) (ProductInfo, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var p models.Product
	if err := db.First(&p, id).Error; err != nil {
		if notFound(err) {
			return ProductInfo{}, apperrors.NotFound("find product", "product %d not found", id)
		}
		return ProductInfo{}, wrap("find product", err)
	}
	return toProductInfo(p), nil
}

// FindByName matches the product name case-insensitively.
func (r *ProductRepository) FindByName(ctx context.Context, name string) (ProductInfo, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var p models.Product
	err := db.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).First(&p).Error
	if err != nil {
		if notFound(err) {
			return ProductInfo{}, apperrors.NotFound("find product", "product %q not found", name)
		}
		return ProductInfo{}, wrap("find product", err)
	}
	return toProductInfo(p), nil
}

// TakeStock decrements stock by qty in a single conditional statement, so two
// concurrent orders can never take the same units. Untracked products are
// accepted without change.
func (r *ProductRepository) TakeStock(ctx context.Context, id uint, qty money.Quantity) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Model(&models.Product{}).
		Where("id = ? AND stock IS NOT NULL AND stock >= ?", id, qty.Int()).
		Update("stock", gorm.Expr("stock - ?", qty.Int()))
	if res.Error != nil {
		return wrap("take stock", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var p models.Product
	if err := db.Select("id", "name", "stock").First(&p, id).Error; err != nil {
		if notFound(err) {
			return apperrors.NotFound("take stock", "product %d not found", id)
		}
		return wrap("take stock", err)
	}
	if p.Stock == nil {
		return nil
	}
	metrics.StockRejections.Inc()
	return apperrors.InsufficientStock("take stock", "insufficient stock for %s: %d available, %d requested", p.Name, *p.Stock, qty.Int())
}

// RestoreStock puts qty units back. Untracked products are left alone.
func (r *ProductRepository) RestoreStock(ctx context.Context, id uint, qty money.Quantity) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	err := db.Model(&models.Product{}).
		Where("id = ? AND stock IS NOT NULL", id).
		Update("stock", gorm.Expr("stock + ?", qty.Int())).Error
	return wrap("restore stock", err)
}

// Stock returns the current level, nil for untracked products.
func (r *ProductRepository) Stock(ctx context.Context, id uint) (*int, error) {
	info, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return info.Stock, nil
}
