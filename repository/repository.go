package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store bundles the entity repositories over one database handle. Inside
// Transaction every repository of the bound Store writes through the same tx.
type Store struct {
	db      *gorm.DB
	timeout time.Duration

	Caps     *Capabilities
	Statuses *StatusMapper

	Tables   *TableRepository
	Products *ProductRepository
	Orders   *OrderRepository
	Items    *OrderItemRepository
	Payments *PaymentRepository
	Expenses *ExpenseRepository
	Audit    *AuditRepository
	Users    *UserRepository
}

func NewStore(db *gorm.DB, timeout time.Duration, caps *Capabilities, statuses *StatusMapper) *Store {
	if caps == nil {
		caps = NewCapabilities()
	}
	return bind(db, timeout, caps, statuses)
}

func bind(db *gorm.DB, timeout time.Duration, caps *Capabilities, statuses *StatusMapper) *Store {
	b := base{db: db, timeout: timeout}
	return &Store{
		db:       db,
		timeout:  timeout,
		Caps:     caps,
		Statuses: statuses,
		Tables:   &TableRepository{base: b},
		Products: &ProductRepository{base: b},
		Orders:   &OrderRepository{base: b, statuses: statuses},
		Items:    &OrderItemRepository{base: b},
		Payments: &PaymentRepository{base: b},
		Expenses: &ExpenseRepository{base: b, caps: caps},
		Audit:    &AuditRepository{base: b, caps: caps},
		Users:    &UserRepository{base: b},
	}
}

func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn in one database transaction bounded by the store
// timeout. Any error from fn, or a panic, rolls back every write.
func (s *Store) Transaction(ctx context.Context, op string, fn func(tx *Store) error) (err error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return wrap(op, fmt.Errorf("failed to begin transaction: %w", tx.Error))
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(bind(tx, s.timeout, s.Caps, s.Statuses)); err != nil {
		tx.Rollback()
		if ctx.Err() != nil {
			return wrap(op, ctx.Err())
		}
		return wrap(op, err)
	}
	if err := tx.Commit().Error; err != nil {
		return wrap(op, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

type base struct {
	db      *gorm.DB
	timeout time.Duration
}

// conn returns a handle bound to a bounded context. Inside a transaction the
// deadline of the transaction context still applies.
func (b base) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	return b.db.WithContext(ctx), cancel
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
