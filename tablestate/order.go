package tablestate

import (
	"strings"

	"github.com/yeremiapane/restaurant-pos/money"
)

type Status string

const (
	StatusEmpty   Status = "EMPTY"
	StatusOrdered Status = "ORDERED"
	StatusServed  Status = "SERVED"
)

// Product is what a caller adds to a table: its durable id (0 when the
// product only exists in memory), display name and the unit price to charge.
type Product struct {
	ID        uint
	Name      string
	UnitPrice money.Money
}

// Line is one product row of a live order. UnitPrice is fixed when the line
// is created.
type Line struct {
	ProductID uint        `json:"product_id,omitempty"`
	Product   string      `json:"product"`
	UnitPrice money.Money `json:"unit_price"`
	Quantity  int         `json:"quantity"`
	Total     money.Money `json:"total"`
}

// liveOrder is the mutable order of one table. It is only touched with the
// table lock held.
type liveOrder struct {
	lines   []Line
	status  Status
	history *history
}

func (o *liveOrder) find(product string) int {
	for i, l := range o.lines {
		if strings.EqualFold(l.Product, strings.TrimSpace(product)) {
			return i
		}
	}
	return -1
}

func (o *liveOrder) total() money.Money {
	total := money.Zero
	for _, l := range o.lines {
		total = total.Add(l.UnitPrice.MulQty(money.Quantity(l.Quantity)))
	}
	return money.FromDecimal(total.Decimal())
}

func (o *liveOrder) reset() {
	o.lines = nil
	o.status = StatusEmpty
}

func (o *liveOrder) copyLines() []Line {
	out := make([]Line, len(o.lines))
	for i, l := range o.lines {
		l.Total = l.UnitPrice.MulQty(money.Quantity(l.Quantity))
		out[i] = l
	}
	return out
}
