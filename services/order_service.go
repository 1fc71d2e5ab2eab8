package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/metrics"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/money"
	"github.com/yeremiapane/restaurant-pos/repository"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// inlineReleaseAttempts is how often a table release is tried before it is
// handed to the TableReleaseMonitor.
const inlineReleaseAttempts = 3

type OrderServiceConfig struct {
	CheckoutRetries      int
	TableReleaseRetries  int
	TableReleaseInterval time.Duration
	CurrencySymbol       string
}

// OrderService runs the durable order workflow: stock and order items change
// together, and checkout writes totals, payment and close in one transaction.
type OrderService struct {
	store     *repository.Store
	publisher Publisher
	monitor   *TableReleaseMonitor
	retries   int
	currency  string
	now       func() time.Time
}

// Publisher receives change notifications; *kds.Hub implements it.
type Publisher interface {
	Publish(msg kds.Message)
}

func NewOrderService(store *repository.Store, publisher Publisher, cfg OrderServiceConfig) *OrderService {
	s := &OrderService{
		store:     store,
		publisher: publisher,
		retries:   cfg.CheckoutRetries,
		currency:  cfg.CurrencySymbol,
		now:       time.Now,
	}
	if s.retries <= 0 {
		s.retries = 1
	}
	s.monitor = NewTableReleaseMonitor(s, publisher, cfg.TableReleaseInterval, cfg.TableReleaseRetries)
	return s
}

// Monitor returns the retry queue for table releases that failed inline.
func (s *OrderService) Monitor() *TableReleaseMonitor { return s.monitor }

func (s *OrderService) publish(event string, data interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(kds.Message{Event: event, Data: data})
	}
}

// OpenOrder returns the open order of the table, creating one when there is
// none. The table is marked occupied in the same transaction.
func (s *OrderService) OpenOrder(ctx context.Context, tableID uint, waiterID *uint) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transaction(ctx, "open order", func(tx *repository.Store) error {
		var err error
		order, err = openOrderTx(ctx, tx, tableID, waiterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func openOrderTx(ctx context.Context, tx *repository.Store, tableID uint, waiterID *uint) (*models.Order, error) {
	if _, err := tx.Tables.Find(ctx, tableID); err != nil {
		return nil, err
	}
	order, err := tx.Orders.FindOpenByTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if order != nil {
		return order, nil
	}
	order = &models.Order{TableID: tableID, WaiterID: waiterID, Status: models.OrderStatusPending}
	if err := tx.Orders.Create(ctx, order); err != nil {
		return nil, err
	}
	if err := tx.Tables.SetStatus(ctx, tableID, models.TableStatusOccupied); err != nil {
		return nil, err
	}
	return order, nil
}

// AddItemToOrder takes qty units from stock and adds them to the order. Both
// writes commit together or not at all.
func (s *OrderService) AddItemToOrder(ctx context.Context, orderID, productID uint, qty int) (*models.OrderItem, error) {
	q, err := money.NewQuantity(qty)
	if err != nil {
		return nil, err
	}
	var item *models.OrderItem
	err = s.store.Transaction(ctx, "add item to order", func(tx *repository.Store) error {
		order, err := tx.Orders.Find(ctx, orderID)
		if err != nil {
			return err
		}
		if order.ClosedAt != nil {
			return apperrors.Conflict("add item to order", "order %d is closed", orderID)
		}
		item, err = addItemTx(ctx, tx, order.ID, productID, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(kds.EventOrderUpdate, item)
	return item, nil
}

// AddItemToTable is AddItemToOrder against the table's open order, opening
// one first when needed.
func (s *OrderService) AddItemToTable(ctx context.Context, tableID, productID uint, qty int, waiterID *uint) (*models.OrderItem, error) {
	q, err := money.NewQuantity(qty)
	if err != nil {
		return nil, err
	}
	var item *models.OrderItem
	err = s.store.Transaction(ctx, "add item to table", func(tx *repository.Store) error {
		order, err := openOrderTx(ctx, tx, tableID, waiterID)
		if err != nil {
			return err
		}
		item, err = addItemTx(ctx, tx, order.ID, productID, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(kds.EventOrderUpdate, item)
	return item, nil
}

func addItemTx(ctx context.Context, tx *repository.Store, orderID, productID uint, qty money.Quantity) (*models.OrderItem, error) {
	product, err := tx.Products.Find(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := tx.Products.TakeStock(ctx, productID, qty); err != nil {
		return nil, err
	}

	item, err := tx.Items.FindByOrderAndProduct(ctx, orderID, productID)
	if err != nil {
		return nil, err
	}
	if item != nil {
		if err := tx.Items.UpdateQuantity(ctx, item, item.Quantity+qty.Int(), product.VatRate); err != nil {
			return nil, err
		}
	} else {
		item = &models.OrderItem{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  qty.Int(),
			UnitPrice: product.GrossPrice,
		}
		if err := tx.Items.Create(ctx, item, product.VatRate); err != nil {
			return nil, err
		}
	}
	if err := recomputeTotals(ctx, tx, orderID); err != nil {
		return nil, err
	}
	return item, nil
}

func recomputeTotals(ctx context.Context, tx *repository.Store, orderID uint) error {
	items, err := tx.Items.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	return tx.Orders.UpdateTotals(ctx, orderID, repository.SumItems(items))
}

type DecrementResult struct {
	Removed     int  `json:"removed"`
	Remaining   int  `json:"remaining"`
	OrderClosed bool `json:"order_closed"`
}

// DecrementItem returns up to qty units of the product to stock. Removing the
// last item of the order cancels it and frees the table.
func (s *OrderService) DecrementItem(ctx context.Context, orderID, productID uint, qty int, actor string) (DecrementResult, error) {
	const op = "decrement item"
	if _, err := money.NewQuantity(qty); err != nil {
		return DecrementResult{}, err
	}
	var (
		res     DecrementResult
		tableID uint
	)
	err := s.store.Transaction(ctx, op, func(tx *repository.Store) error {
		order, err := tx.Orders.Find(ctx, orderID)
		if err != nil {
			return err
		}
		if order.ClosedAt != nil {
			return apperrors.Conflict(op, "order %d is closed", orderID)
		}
		tableID = order.TableID

		item, err := tx.Items.FindByOrderAndProduct(ctx, orderID, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return apperrors.NotFound(op, "product %d is not on order %d", productID, orderID)
		}

		res.Removed = qty
		if res.Removed >= item.Quantity {
			res.Removed = item.Quantity
			if err := tx.Items.Delete(ctx, item.ID); err != nil {
				return err
			}
		} else {
			product, err := tx.Products.Find(ctx, productID)
			if err != nil {
				return err
			}
			if err := tx.Items.UpdateQuantity(ctx, item, item.Quantity-res.Removed, product.VatRate); err != nil {
				return err
			}
		}
		if err := tx.Products.RestoreStock(ctx, productID, money.Quantity(res.Removed)); err != nil {
			return err
		}

		items, err := tx.Items.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			res.Remaining += it.Quantity
		}
		if len(items) == 0 {
			res.OrderClosed = true
			return tx.Orders.Cancel(ctx, orderID, s.now())
		}
		return tx.Orders.UpdateTotals(ctx, orderID, repository.SumItems(items))
	})
	if err != nil {
		return DecrementResult{}, err
	}
	if res.OrderClosed {
		s.afterCancel(ctx, orderID, tableID, actor, "last item removed")
	}
	s.publish(kds.EventOrderUpdate, map[string]interface{}{"order_id": orderID, "product_id": productID, "result": res})
	return res, nil
}

// ClearItems returns every item of the order to stock and deletes the items.
// The order itself stays open.
func (s *OrderService) ClearItems(ctx context.Context, orderID uint) error {
	err := s.store.Transaction(ctx, "clear items", func(tx *repository.Store) error {
		order, err := tx.Orders.Find(ctx, orderID)
		if err != nil {
			return err
		}
		if order.ClosedAt != nil {
			return apperrors.Conflict("clear items", "order %d is closed", orderID)
		}
		return clearItemsTx(ctx, tx, orderID)
	})
	if err != nil {
		return err
	}
	s.publish(kds.EventOrderUpdate, map[string]interface{}{"order_id": orderID, "cleared": true})
	return nil
}

func clearItemsTx(ctx context.Context, tx *repository.Store, orderID uint) error {
	items, err := tx.Items.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := tx.Products.RestoreStock(ctx, it.ProductID, money.Quantity(it.Quantity)); err != nil {
			return err
		}
	}
	if err := tx.Items.DeleteByOrder(ctx, orderID); err != nil {
		return err
	}
	return tx.Orders.UpdateTotals(ctx, orderID, repository.Totals{})
}

// CancelOrder clears the items, closes the order without payment and frees
// the table.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uint, actor string) error {
	var tableID uint
	err := s.store.Transaction(ctx, "cancel order", func(tx *repository.Store) error {
		order, err := tx.Orders.Find(ctx, orderID)
		if err != nil {
			return err
		}
		if order.ClosedAt != nil {
			return apperrors.Conflict("cancel order", "order %d is closed", orderID)
		}
		tableID = order.TableID
		if err := clearItemsTx(ctx, tx, orderID); err != nil {
			return err
		}
		return tx.Orders.Cancel(ctx, orderID, s.now())
	})
	if err != nil {
		return err
	}
	s.afterCancel(ctx, orderID, tableID, actor, "order cleared")
	return nil
}

func (s *OrderService) afterCancel(ctx context.Context, orderID, tableID uint, actor, reason string) {
	s.releaseTable(ctx, tableID)
	s.audit(ctx, repository.AuditEntry{
		Actor:       actor,
		EntityType:  "order",
		EntityID:    orderID,
		Action:      models.AuditActionClear,
		Description: reason,
	})
	s.publish(kds.EventOrderUpdate, map[string]interface{}{"order_id": orderID, "status": models.OrderStatusCancelled})
}

// MarkServed records that the order has been served.
func (s *OrderService) MarkServed(ctx context.Context, orderID uint) error {
	if err := s.store.Orders.UpdateStatus(ctx, orderID, models.OrderStatusServed); err != nil {
		return err
	}
	s.publish(kds.EventOrderUpdate, map[string]interface{}{"order_id": orderID, "status": models.OrderStatusServed})
	return nil
}

type CheckoutRequest struct {
	OrderID   uint
	CashierID *uint
	Method    string
	Actor     string
	// Expected, when set, must equal the summed item totals or the checkout
	// is refused.
	Expected *money.Money
}

// CheckoutAndClose charges the order: it sums the items, writes the totals,
// creates the payment and closes the order in one transaction, retried as a
// whole on transient failures. The table is released afterwards.
func (s *OrderService) CheckoutAndClose(ctx context.Context, req CheckoutRequest) (*models.Payment, error) {
	const op = "checkout"
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		return nil, apperrors.Validation(op, "payment method is required")
	}

	start := s.now()
	var (
		payment *models.Payment
		order   *models.Order
		err     error
	)
	for attempt := 1; attempt <= s.retries; attempt++ {
		payment, order, err = s.checkoutOnce(ctx, req, method)
		if err == nil || !apperrors.IsRetryable(err) || attempt == s.retries {
			break
		}
		metrics.CheckoutCounter.WithLabelValues("retried").Inc()
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id": req.OrderID,
			"attempt":  attempt,
		}).Warnf("Checkout failed, retrying: %v", err)
	}
	metrics.CheckoutDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CheckoutCounter.WithLabelValues("failed").Inc()
		utils.ErrorLogger.Printf("Checkout of order %d failed: %v", req.OrderID, err)
		return nil, err
	}
	metrics.CheckoutCounter.WithLabelValues("success").Inc()
	utils.InfoLogger.Printf("Order %d closed with payment %s (%s %s)", order.ID, payment.ReferenceID, money.Format(payment.Amount, s.currency), payment.Method)

	s.releaseTable(ctx, order.TableID)
	s.audit(ctx, repository.AuditEntry{
		Actor:       req.Actor,
		EntityType:  "order",
		EntityID:    order.ID,
		Action:      models.AuditActionCheckout,
		Description: "order paid",
		After:       payment,
	})
	s.publish(kds.EventOrderUpdate, map[string]interface{}{"order_id": order.ID, "status": models.OrderStatusCompleted, "payment": payment})
	return payment, nil
}

func (s *OrderService) checkoutOnce(ctx context.Context, req CheckoutRequest, method string) (*models.Payment, *models.Order, error) {
	const op = "checkout"
	var (
		payment *models.Payment
		order   *models.Order
	)
	err := s.store.Transaction(ctx, op, func(tx *repository.Store) error {
		var err error
		order, err = tx.Orders.Find(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.ClosedAt != nil {
			return apperrors.Conflict(op, "order %d is already closed", order.ID)
		}

		items, err := tx.Items.ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperrors.Conflict(op, "order %d has no items", order.ID)
		}
		totals := repository.SumItems(items)
		if req.Expected != nil && !req.Expected.Equal(totals.Total) {
			return apperrors.Conflict(op, "order %d totals %s, expected %s", order.ID, totals.Total, *req.Expected)
		}
		if err := tx.Orders.UpdateTotals(ctx, order.ID, totals); err != nil {
			return err
		}

		now := s.now()
		payment = &models.Payment{
			OrderID:   order.ID,
			CashierID: req.CashierID,
			Amount:    totals.Total,
			Method:    method,
			PaidAt:    now,
		}
		if err := tx.Payments.Create(ctx, payment); err != nil {
			return err
		}
		return tx.Orders.Close(ctx, order.ID, totals, now)
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, order, nil
}

// ReleaseTable marks the table available unless another order is open on it.
func (s *OrderService) ReleaseTable(ctx context.Context, tableID uint) error {
	return s.store.Transaction(ctx, "release table", func(tx *repository.Store) error {
		open, err := tx.Orders.FindOpenByTable(ctx, tableID)
		if err != nil {
			return err
		}
		if open != nil {
			return nil
		}
		return tx.Tables.SetStatus(ctx, tableID, models.TableStatusAvailable)
	})
}

// releaseTable tries a few times inline and then queues the table for the
// monitor. It never fails the caller: the order is already closed.
func (s *OrderService) releaseTable(ctx context.Context, tableID uint) {
	var err error
	for attempt := 1; attempt <= inlineReleaseAttempts; attempt++ {
		if err = s.ReleaseTable(ctx, tableID); err == nil {
			s.publish(kds.EventTableReleased, map[string]interface{}{"table_id": tableID})
			return
		}
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			break
		}
	}
	utils.ErrorLogger.Printf("Failed to release table %d, queued for retry: %v", tableID, err)
	s.monitor.AddToRetryQueue(tableID)
}

func (s *OrderService) audit(ctx context.Context, entry repository.AuditEntry) {
	if err := s.store.Audit.Write(ctx, entry); err != nil {
		utils.ErrorLogger.Printf("Failed to write audit log for %s %d: %v", entry.EntityType, entry.EntityID, err)
	}
}
