package tablestate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/money"
)

const DefaultHistoryCapacity = 50

// Outcome tells the caller whether a mutation changed anything.
type Outcome int

const (
	Applied Outcome = iota
	NotFound
	NoOp
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NotFound:
		return "not_found"
	case NoOp:
		return "no_op"
	}
	return "unknown"
}

type TableInfo struct {
	Number   int    `json:"number"`
	Building string `json:"building"`
	Section  string `json:"section"`
}

// Snapshot is a deep copy of one table's live order.
type Snapshot struct {
	Table   TableInfo      `json:"table"`
	Status  Status         `json:"status"`
	Lines   []Line         `json:"lines"`
	History []HistoryEntry `json:"history"`
	Total   money.Money    `json:"total"`
	// Version grows with every change of the table; a higher one is newer.
	Version uint64 `json:"version"`
}

func (s Snapshot) Occupied() bool { return s.Status != StatusEmpty }

// Sale is the record produced when a table pays.
type Sale struct {
	ID     string      `json:"id"`
	Table  int         `json:"table"`
	Method string      `json:"method"`
	Actor  string      `json:"actor"`
	Lines  []Line      `json:"lines"`
	Total  money.Money `json:"total"`
	At     time.Time   `json:"at"`
}

// Change describes a line mutation handed to the Journal.
type Change struct {
	Table     int
	ProductID uint
	Product   string
	UnitPrice money.Money
	Quantity  int
	Actor     string
}

// SaleSink persists a sale and returns the durable reference of the payment,
// which becomes the sale id. An empty reference keeps the generated id.
// Returning an error leaves the table unchanged.
type SaleSink interface {
	PersistSale(ctx context.Context, sale Sale) (string, error)
}

// Journal mirrors live mutations into durable storage. Each method runs with
// the table lock held, before the in-memory change; an error aborts the
// mutation.
type Journal interface {
	SaleSink
	ItemAdded(ctx context.Context, c Change) error
	ItemDecreased(ctx context.Context, c Change) error
	ItemRemoved(ctx context.Context, c Change) error
	Served(ctx context.Context, c Change) error
	Cleared(ctx context.Context, c Change) error
}

// Publisher receives change notifications; *kds.Hub implements it.
type Publisher interface {
	Publish(msg kds.Message)
}

type Options struct {
	HistoryCapacity int
	Journal         Journal
	Publisher       Publisher
	Now             func() time.Time
}

type tableState struct {
	mu      sync.Mutex
	info    TableInfo
	order   liveOrder
	version uint64
}

// Registry holds the live order of every table. The set of tables is fixed
// at construction; each table has its own lock.
type Registry struct {
	tables    map[int]*tableState
	numbers   []int
	journal   Journal
	publisher Publisher
	now       func() time.Time
}

func New(tables []TableInfo, opts Options) (*Registry, error) {
	r := &Registry{
		tables:    make(map[int]*tableState, len(tables)),
		journal:   opts.Journal,
		publisher: opts.Publisher,
		now:       opts.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}
	for _, info := range tables {
		if _, dup := r.tables[info.Number]; dup {
			return nil, apperrors.Validation("tablestate.New", "duplicate table number %d", info.Number)
		}
		r.tables[info.Number] = &tableState{
			info:  info,
			order: liveOrder{status: StatusEmpty, history: newHistory(opts.HistoryCapacity)},
		}
		r.numbers = append(r.numbers, info.Number)
	}
	sort.Ints(r.numbers)
	return r, nil
}

func (r *Registry) Tables() []TableInfo {
	out := make([]TableInfo, 0, len(r.numbers))
	for _, n := range r.numbers {
		out = append(out, r.tables[n].info)
	}
	return out
}

func (r *Registry) table(op string, number int) (*tableState, error) {
	t, ok := r.tables[number]
	if !ok {
		return nil, apperrors.NotFound(op, "table %d not found", number)
	}
	return t, nil
}

// record notes a change in the history and bumps the table version. Callers
// hold the table lock.
func (r *Registry) record(t *tableState, actor, action, description string) {
	t.version++
	t.order.history.add(HistoryEntry{At: r.now(), Actor: actor, Action: action, Description: description})
}

func (r *Registry) snapshotLocked(t *tableState) Snapshot {
	return Snapshot{
		Table:   t.info,
		Status:  t.order.status,
		Lines:   t.order.copyLines(),
		History: t.order.history.newestFirst(),
		Total:   t.order.total(),
		Version: t.version,
	}
}

func (r *Registry) publish(event string, snap Snapshot, data interface{}) {
	if r.publisher == nil {
		return
	}
	if data == nil {
		data = snap
	}
	r.publisher.Publish(kds.Message{Event: event, Table: snap.Table.Number, Seq: snap.Version, Data: data})
}

// AddItem adds qty units of product to the table, creating the line when the
// product is new to the order.
func (r *Registry) AddItem(ctx context.Context, number int, product Product, qty int, actor string) (Snapshot, error) {
	const op = "add item"
	name := strings.TrimSpace(product.Name)
	if name == "" {
		return Snapshot{}, apperrors.Validation(op, "product name is required")
	}
	if _, err := money.NewQuantity(qty); err != nil {
		return Snapshot{}, apperrors.Validation(op, "quantity must be positive, got %d", qty)
	}
	if product.UnitPrice.IsNegative() {
		return Snapshot{}, apperrors.Validation(op, "unit price must not be negative")
	}
	t, err := r.table(op, number)
	if err != nil {
		return Snapshot{}, err
	}

	t.mu.Lock()
	idx := t.order.find(name)
	change := Change{Table: number, ProductID: product.ID, Product: name, UnitPrice: product.UnitPrice, Quantity: qty, Actor: actor}
	if idx >= 0 {
		existing := t.order.lines[idx]
		if product.ID != 0 && existing.ProductID != 0 && product.ID != existing.ProductID {
			t.mu.Unlock()
			return Snapshot{}, apperrors.Conflict(op, "table %d already has a different product named %q", number, existing.Product)
		}
		change.Product = t.order.lines[idx].Product
		change.UnitPrice = t.order.lines[idx].UnitPrice
		if change.ProductID == 0 {
			change.ProductID = t.order.lines[idx].ProductID
		}
	}
	if r.journal != nil {
		if err := r.journal.ItemAdded(ctx, change); err != nil {
			t.mu.Unlock()
			return Snapshot{}, err
		}
	}
	if idx >= 0 {
		t.order.lines[idx].Quantity += qty
	} else {
		t.order.lines = append(t.order.lines, Line{ProductID: product.ID, Product: name, UnitPrice: product.UnitPrice, Quantity: qty})
	}
	t.order.status = StatusOrdered
	r.record(t, actor, ActionAdded, fmt.Sprintf("%d x %s", qty, change.Product))
	snap := r.snapshotLocked(t)
	t.mu.Unlock()

	r.publish(kds.EventTableUpdate, snap, nil)
	return snap, nil
}

// DecreaseItem takes qty units off a line and removes the line when nothing
// is left. A missing line yields NotFound.
func (r *Registry) DecreaseItem(ctx context.Context, number int, product string, qty int, actor string) (Outcome, Snapshot, error) {
	const op = "decrease item"
	if _, err := money.NewQuantity(qty); err != nil {
		return NoOp, Snapshot{}, apperrors.Validation(op, "quantity must be positive, got %d", qty)
	}
	t, err := r.table(op, number)
	if err != nil {
		return NoOp, Snapshot{}, err
	}

	t.mu.Lock()
	idx := t.order.find(product)
	if idx < 0 {
		snap := r.snapshotLocked(t)
		t.mu.Unlock()
		return NotFound, snap, nil
	}
	line := t.order.lines[idx]
	if qty > line.Quantity {
		qty = line.Quantity
	}
	if r.journal != nil {
		change := Change{Table: number, ProductID: line.ProductID, Product: line.Product, UnitPrice: line.UnitPrice, Quantity: qty, Actor: actor}
		if err := r.journal.ItemDecreased(ctx, change); err != nil {
			t.mu.Unlock()
			return NoOp, Snapshot{}, err
		}
	}
	if qty == line.Quantity {
		t.order.lines = append(t.order.lines[:idx], t.order.lines[idx+1:]...)
	} else {
		t.order.lines[idx].Quantity -= qty
	}
	r.record(t, actor, ActionDecreased, fmt.Sprintf("%d x %s", qty, line.Product))
	r.settleEmpty(t, actor)
	snap := r.snapshotLocked(t)
	t.mu.Unlock()

	r.publish(kds.EventTableUpdate, snap, nil)
	return Applied, snap, nil
}

// RemoveItem deletes a line whatever its quantity.
func (r *Registry) RemoveItem(ctx context.Context, number int, product string, actor string) (Outcome, Snapshot, error) {
	const op = "remove item"
	t, err := r.table(op, number)
	if err != nil {
		return NoOp, Snapshot{}, err
	}

	t.mu.Lock()
	idx := t.order.find(product)
	if idx < 0 {
		snap := r.snapshotLocked(t)
		t.mu.Unlock()
		return NotFound, snap, nil
	}
	line := t.order.lines[idx]
	if r.journal != nil {
		change := Change{Table: number, ProductID: line.ProductID, Product: line.Product, UnitPrice: line.UnitPrice, Quantity: line.Quantity, Actor: actor}
		if err := r.journal.ItemRemoved(ctx, change); err != nil {
			t.mu.Unlock()
			return NoOp, Snapshot{}, err
		}
	}
	t.order.lines = append(t.order.lines[:idx], t.order.lines[idx+1:]...)
	r.record(t, actor, ActionRemoved, line.Product)
	r.settleEmpty(t, actor)
	snap := r.snapshotLocked(t)
	t.mu.Unlock()

	r.publish(kds.EventTableUpdate, snap, nil)
	return Applied, snap, nil
}

// settleEmpty keeps status EMPTY exactly when there are no lines.
func (r *Registry) settleEmpty(t *tableState, actor string) {
	if len(t.order.lines) == 0 && t.order.status != StatusEmpty {
		t.order.reset()
		r.record(t, actor, ActionCleared, "order emptied")
	}
}

// MarkServed moves an ordered table to SERVED. Empty or already served tables
// yield NoOp.
func (r *Registry) MarkServed(ctx context.Context, number int, actor string) (Outcome, Snapshot, error) {
	const op = "mark served"
	t, err := r.table(op, number)
	if err != nil {
		return NoOp, Snapshot{}, err
	}

	t.mu.Lock()
	if len(t.order.lines) == 0 || t.order.status == StatusServed {
		snap := r.snapshotLocked(t)
		t.mu.Unlock()
		return NoOp, snap, nil
	}
	if r.journal != nil {
		if err := r.journal.Served(ctx, Change{Table: number, Actor: actor}); err != nil {
			t.mu.Unlock()
			return NoOp, Snapshot{}, err
		}
	}
	t.order.status = StatusServed
	r.record(t, actor, ActionServed, "order served")
	snap := r.snapshotLocked(t)
	t.mu.Unlock()

	r.publish(kds.EventTableUpdate, snap, nil)
	return Applied, snap, nil
}

// ClearTable drops every line and resets the table to EMPTY.
func (r *Registry) ClearTable(ctx context.Context, number int, actor string) (Snapshot, error) {
	const op = "clear table"
	t, err := r.table(op, number)
	if err != nil {
		return Snapshot{}, err
	}

	t.mu.Lock()
	if r.journal != nil {
		if err := r.journal.Cleared(ctx, Change{Table: number, Actor: actor}); err != nil {
			t.mu.Unlock()
			return Snapshot{}, err
		}
	}
	t.order.reset()
	r.record(t, actor, ActionCleared, "table cleared")
	snap := r.snapshotLocked(t)
	t.mu.Unlock()

	r.publish(kds.EventTableUpdate, snap, nil)
	return snap, nil
}

// RecordSale charges the current order and clears the table in one step. The
// sale is persisted through the journal while the table is locked, so no
// reader sees a half cleared table. When persisting fails the order stays.
func (r *Registry) RecordSale(ctx context.Context, number int, method, actor string) (Sale, error) {
	const op = "record sale"
	if strings.TrimSpace(method) == "" {
		return Sale{}, apperrors.Validation(op, "payment method is required")
	}
	t, err := r.table(op, number)
	if err != nil {
		return Sale{}, err
	}

	t.mu.Lock()
	if len(t.order.lines) == 0 {
		t.mu.Unlock()
		return Sale{}, apperrors.Conflict(op, "table %d has no order", number)
	}
	sale := Sale{
		ID:     uuid.NewString(),
		Table:  number,
		Method: method,
		Actor:  actor,
		Lines:  t.order.copyLines(),
		Total:  t.order.total(),
		At:     r.now(),
	}
	if r.journal != nil {
		ref, err := r.journal.PersistSale(ctx, sale)
		if err != nil {
			t.mu.Unlock()
			return Sale{}, err
		}
		if ref != "" {
			sale.ID = ref
		}
	}
	t.order.reset()
	r.record(t, actor, ActionSold, fmt.Sprintf("%s %s", sale.Total, method))
	snap := r.snapshotLocked(t)
	t.mu.Unlock()

	r.publish(kds.EventSaleRecorded, snap, sale)
	r.publish(kds.EventTableUpdate, snap, nil)
	return sale, nil
}

// Snapshot returns a deep copy of the table's live order.
func (r *Registry) Snapshot(number int) (Snapshot, error) {
	t, err := r.table("snapshot", number)
	if err != nil {
		return Snapshot{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return r.snapshotLocked(t), nil
}

// Snapshots returns every table ordered by number.
func (r *Registry) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(r.numbers))
	for _, n := range r.numbers {
		t := r.tables[n]
		t.mu.Lock()
		out = append(out, r.snapshotLocked(t))
		t.mu.Unlock()
	}
	return out
}

// Restore replaces a table's order with lines loaded from durable storage.
// The journal is not called.
func (r *Registry) Restore(number int, lines []Line, status Status, actor string) error {
	const op = "restore"
	t, err := r.table(op, number)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if l.Quantity <= 0 || l.UnitPrice.IsNegative() || strings.TrimSpace(l.Product) == "" {
			return apperrors.Validation(op, "invalid line %q for table %d", l.Product, number)
		}
	}

	t.mu.Lock()
	t.order.lines = make([]Line, 0, len(lines))
	for _, l := range lines {
		l.Total = money.Zero
		t.order.lines = append(t.order.lines, l)
	}
	switch {
	case len(lines) == 0:
		t.order.status = StatusEmpty
	case status == StatusServed:
		t.order.status = StatusServed
	default:
		t.order.status = StatusOrdered
	}
	r.record(t, actor, ActionRestored, fmt.Sprintf("%d line(s) restored", len(lines)))
	snap := r.snapshotLocked(t)
	t.mu.Unlock()

	r.publish(kds.EventTableUpdate, snap, nil)
	return nil
}
