package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/repository"
	"github.com/yeremiapane/restaurant-pos/tablestate"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type POSConfig struct {
	DefaultActor    string
	HistoryCapacity int
}

// POSService keeps the live table registry and the durable orders in step.
// It is the registry's Journal: every live mutation first runs the matching
// durable transaction.
type POSService struct {
	store        *repository.Store
	orders       *OrderService
	registry     *tablestate.Registry
	tableIDs     map[int]uint
	defaultActor string
}

var _ tablestate.Journal = (*POSService)(nil)

// NewPOSService loads the dining tables and builds the live registry.
func NewPOSService(ctx context.Context, store *repository.Store, orders *OrderService, publisher tablestate.Publisher, cfg POSConfig) (*POSService, error) {
	tables, err := store.Tables.List(ctx)
	if err != nil {
		return nil, err
	}
	s := &POSService{
		store:        store,
		orders:       orders,
		tableIDs:     make(map[int]uint, len(tables)),
		defaultActor: cfg.DefaultActor,
	}
	if s.defaultActor == "" {
		s.defaultActor = "system"
	}

	infos := make([]tablestate.TableInfo, 0, len(tables))
	for _, t := range tables {
		s.tableIDs[t.TableNumber] = t.ID
		infos = append(infos, tablestate.TableInfo{Number: t.TableNumber, Building: t.Building, Section: t.Section})
	}
	s.registry, err = tablestate.New(infos, tablestate.Options{
		HistoryCapacity: cfg.HistoryCapacity,
		Journal:         s,
		Publisher:       publisher,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *POSService) Registry() *tablestate.Registry { return s.registry }

func (s *POSService) actor(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return s.defaultActor
}

func (s *POSService) tableID(op string, number int) (uint, error) {
	id, ok := s.tableIDs[number]
	if !ok {
		return 0, apperrors.NotFound(op, "table %d not found", number)
	}
	return id, nil
}

func (s *POSService) userID(ctx context.Context, name string) *uint {
	user, err := s.store.Users.FindByName(ctx, name)
	if err != nil || user == nil {
		return nil
	}
	return &user.ID
}

// AddItem looks the product up and adds qty units at its current gross price.
func (s *POSService) AddItem(ctx context.Context, table int, productID uint, qty int, actor string) (tablestate.Snapshot, error) {
	product, err := s.store.Products.Find(ctx, productID)
	if err != nil {
		return tablestate.Snapshot{}, err
	}
	return s.registry.AddItem(ctx, table, tablestate.Product{
		ID:        product.ID,
		Name:      product.Name,
		UnitPrice: product.GrossPrice,
	}, qty, s.actor(actor))
}

func (s *POSService) DecreaseItem(ctx context.Context, table int, product string, qty int, actor string) (tablestate.Outcome, tablestate.Snapshot, error) {
	return s.registry.DecreaseItem(ctx, table, product, qty, s.actor(actor))
}

func (s *POSService) RemoveItem(ctx context.Context, table int, product string, actor string) (tablestate.Outcome, tablestate.Snapshot, error) {
	return s.registry.RemoveItem(ctx, table, product, s.actor(actor))
}

func (s *POSService) MarkServed(ctx context.Context, table int, actor string) (tablestate.Outcome, tablestate.Snapshot, error) {
	return s.registry.MarkServed(ctx, table, s.actor(actor))
}

func (s *POSService) ClearTable(ctx context.Context, table int, actor string) (tablestate.Snapshot, error) {
	return s.registry.ClearTable(ctx, table, s.actor(actor))
}

func (s *POSService) RecordSale(ctx context.Context, table int, method, actor string) (tablestate.Sale, error) {
	return s.registry.RecordSale(ctx, table, strings.ToUpper(strings.TrimSpace(method)), s.actor(actor))
}

func (s *POSService) Snapshot(table int) (tablestate.Snapshot, error) {
	return s.registry.Snapshot(table)
}

func (s *POSService) Snapshots() []tablestate.Snapshot {
	return s.registry.Snapshots()
}

// Restore rebuilds the live registry from the open durable orders. Open
// orders without items are cancelled.
func (s *POSService) Restore(ctx context.Context) error {
	orders, err := s.store.Orders.ListOpen(ctx)
	if err != nil {
		return err
	}
	restored := make(map[int]bool)
	for _, order := range orders {
		number := order.Table.TableNumber
		log := utils.InfoLogger.WithFields(logrus.Fields{"order_id": order.ID, "table": number})

		if len(order.OrderItems) == 0 {
			log.Info("Cancelling empty open order")
			if err := s.orders.CancelOrder(ctx, order.ID, s.defaultActor); err != nil {
				return err
			}
			continue
		}
		if restored[number] {
			log.Warn("Second open order on table, manual reconciliation required")
			continue
		}

		lines := make([]tablestate.Line, 0, len(order.OrderItems))
		for _, it := range order.OrderItems {
			lines = append(lines, tablestate.Line{
				ProductID: it.ProductID,
				Product:   it.Product.Name,
				UnitPrice: it.UnitPrice,
				Quantity:  it.Quantity,
			})
		}
		status := tablestate.StatusOrdered
		if order.Status == models.OrderStatusServed {
			status = tablestate.StatusServed
		}
		if err := s.registry.Restore(number, lines, status, s.defaultActor); err != nil {
			return err
		}
		restored[number] = true
		log.Infof("Restored open order with %d line(s)", len(lines))
	}
	return nil
}

func (s *POSService) openOrder(ctx context.Context, op string, table int) (*models.Order, error) {
	id, err := s.tableID(op, table)
	if err != nil {
		return nil, err
	}
	order, err := s.store.Orders.FindOpenByTable(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFound(op, "table %d has no open order", table)
	}
	return order, nil
}

func (s *POSService) productID(ctx context.Context, c tablestate.Change) (uint, error) {
	if c.ProductID != 0 {
		return c.ProductID, nil
	}
	p, err := s.store.Products.FindByName(ctx, c.Product)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (s *POSService) ItemAdded(ctx context.Context, c tablestate.Change) error {
	tableID, err := s.tableID("add item", c.Table)
	if err != nil {
		return err
	}
	productID, err := s.productID(ctx, c)
	if err != nil {
		return err
	}
	_, err = s.orders.AddItemToTable(ctx, tableID, productID, c.Quantity, s.userID(ctx, c.Actor))
	return err
}

func (s *POSService) ItemDecreased(ctx context.Context, c tablestate.Change) error {
	order, err := s.openOrder(ctx, "decrease item", c.Table)
	if err != nil {
		return err
	}
	productID, err := s.productID(ctx, c)
	if err != nil {
		return err
	}
	_, err = s.orders.DecrementItem(ctx, order.ID, productID, c.Quantity, c.Actor)
	return err
}

func (s *POSService) ItemRemoved(ctx context.Context, c tablestate.Change) error {
	return s.ItemDecreased(ctx, c)
}

func (s *POSService) Served(ctx context.Context, c tablestate.Change) error {
	order, err := s.openOrder(ctx, "mark served", c.Table)
	if err != nil {
		return err
	}
	return s.orders.MarkServed(ctx, order.ID)
}

func (s *POSService) Cleared(ctx context.Context, c tablestate.Change) error {
	tableID, err := s.tableID("clear table", c.Table)
	if err != nil {
		return err
	}
	order, err := s.store.Orders.FindOpenByTable(ctx, tableID)
	if err != nil {
		return err
	}
	if order == nil {
		return s.orders.ReleaseTable(ctx, tableID)
	}
	return s.orders.CancelOrder(ctx, order.ID, c.Actor)
}

// PersistSale checks out the table's open order and returns the payment
// reference. The durable total must match the live total that was shown to the
// customer.
func (s *POSService) PersistSale(ctx context.Context, sale tablestate.Sale) (string, error) {
	order, err := s.openOrder(ctx, "record sale", sale.Table)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return "", apperrors.Conflict("record sale", "table %d has no open order to charge", sale.Table)
		}
		return "", err
	}
	expected := sale.Total
	payment, err := s.orders.CheckoutAndClose(ctx, CheckoutRequest{
		OrderID:   order.ID,
		CashierID: s.userID(ctx, sale.Actor),
		Method:    sale.Method,
		Actor:     sale.Actor,
		Expected:  &expected,
	})
	if err != nil {
		return "", err
	}
	return payment.ReferenceID, nil
}
