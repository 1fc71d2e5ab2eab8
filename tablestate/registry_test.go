package tablestate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/money"
)

func newRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	r, err := New([]TableInfo{
		{Number: 101, Building: "Main", Section: "Garden"},
		{Number: 102, Building: "Main", Section: "Garden"},
		{Number: 201, Building: "Annex", Section: "Terrace"},
	}, opts)
	require.NoError(t, err)
	return r
}

func kebap() Product { return Product{Name: "Kebap", UnitPrice: money.MustNew("50.00")} }

// expectedTotal recomputes the total independently of liveOrder.total.
func expectedTotal(lines []Line) money.Money {
	var sum money.Money
	for _, l := range lines {
		sum = sum.Add(money.FromDecimal(l.UnitPrice.Decimal().Mul(decimal.NewFromInt(int64(l.Quantity)))))
	}
	return sum
}

func TestKebapScenario(t *testing.T) {
	r := newRegistry(t, Options{})
	ctx := context.Background()

	snap, err := r.Snapshot(101)
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, snap.Status)

	snap, err = r.AddItem(ctx, 101, kebap(), 2, "Ali")
	require.NoError(t, err)
	assert.Equal(t, StatusOrdered, snap.Status)
	assert.Equal(t, "100.00", snap.Total.String())

	snap, err = r.AddItem(ctx, 101, Product{Name: "kebap", UnitPrice: money.MustNew("99")}, 1, "Ali")
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 3, snap.Lines[0].Quantity)
	assert.Equal(t, "50.00", snap.Lines[0].UnitPrice.String())
	assert.Equal(t, "150.00", snap.Total.String())

	outcome, snap, err := r.MarkServed(ctx, 101, "Ali")
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
	assert.Equal(t, StatusServed, snap.Status)

	sale, err := r.RecordSale(ctx, 101, "CASH", "Ayşe")
	require.NoError(t, err)
	assert.Equal(t, "150.00", sale.Total.String())
	assert.Equal(t, "CASH", sale.Method)
	assert.NotEmpty(t, sale.ID)

	snap, err = r.Snapshot(101)
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.Empty(t, snap.Lines)
	assert.Equal(t, "0.00", snap.Total.String())
	assert.Equal(t, ActionSold, snap.History[0].Action)
	assert.Equal(t, "Ayşe", snap.History[0].Actor)
}

func TestAddThenDecreaseRestoresState(t *testing.T) {
	tests := []struct {
		name      string
		existing  []Product
		product   Product
		qty       int
		wantEmpty bool
	}{
		{"only line", nil, kebap(), 2, true},
		{"only line single unit", nil, Product{Name: "Ayran", UnitPrice: money.MustNew("15")}, 1, true},
		{"with other line", []Product{{Name: "Ayran", UnitPrice: money.MustNew("15")}}, kebap(), 3, false},
		{"free item", []Product{{Name: "Bread", UnitPrice: money.Zero}}, Product{Name: "Water", UnitPrice: money.Zero}, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRegistry(t, Options{})
			ctx := context.Background()
			for _, p := range tt.existing {
				_, err := r.AddItem(ctx, 102, p, 1, "Ali")
				require.NoError(t, err)
			}
			_, err := r.AddItem(ctx, 102, tt.product, tt.qty, "Ali")
			require.NoError(t, err)

			outcome, snap, err := r.DecreaseItem(ctx, 102, tt.product.Name, tt.qty, "Ali")
			require.NoError(t, err)
			assert.Equal(t, Applied, outcome)
			for _, l := range snap.Lines {
				assert.NotEqual(t, tt.product.Name, l.Product)
			}
			assert.Equal(t, tt.wantEmpty, snap.Status == StatusEmpty)
			assert.Equal(t, tt.wantEmpty, len(snap.Lines) == 0)
			if tt.wantEmpty {
				assert.Equal(t, ActionCleared, snap.History[0].Action)
			}
		})
	}
}

func TestTotalMatchesLines(t *testing.T) {
	r := newRegistry(t, Options{})
	ctx := context.Background()
	steps := []struct {
		product string
		price   string
		qty     int
	}{
		{"Çay", "0.10", 3},
		{"Baklava", "12.345", 1},
		{"Pide", "33.33", 3},
		{"Çay", "0.10", 7},
		{"Künefe", "0.005", 1},
	}
	for _, s := range steps {
		snap, err := r.AddItem(ctx, 201, Product{Name: s.product, UnitPrice: money.MustNew(s.price)}, s.qty, "Ali")
		require.NoError(t, err)
		assert.Equal(t, expectedTotal(snap.Lines).String(), snap.Total.String())
		var lineSum money.Money
		for _, l := range snap.Lines {
			lineSum = lineSum.Add(l.Total)
		}
		assert.Equal(t, lineSum.String(), snap.Total.String())
	}
	snap, _ := r.Snapshot(201)
	assert.Equal(t, "113.35", snap.Total.String())

	_, snap, err := r.DecreaseItem(ctx, 201, "çay", 4, "Ali")
	require.NoError(t, err)
	assert.Equal(t, "112.95", snap.Total.String())
}

func TestValidationAndOutcomes(t *testing.T) {
	r := newRegistry(t, Options{})
	ctx := context.Background()

	_, err := r.AddItem(ctx, 101, kebap(), 0, "Ali")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	_, err = r.AddItem(ctx, 101, Product{Name: "Refund", UnitPrice: money.MustNew("-1")}, 1, "Ali")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	_, err = r.AddItem(ctx, 999, kebap(), 1, "Ali")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	_, _, err = r.DecreaseItem(ctx, 101, "Kebap", -2, "Ali")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	outcome, _, err := r.MarkServed(ctx, 101, "Ali")
	require.NoError(t, err)
	assert.Equal(t, NoOp, outcome)

	outcome, _, err = r.RemoveItem(ctx, 101, "Kebap", "Ali")
	require.NoError(t, err)
	assert.Equal(t, NotFound, outcome)

	_, err = r.RecordSale(ctx, 101, "CASH", "Ali")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	_, err = r.AddItem(ctx, 101, kebap(), 4, "Ali")
	require.NoError(t, err)
	outcome, snap, err := r.DecreaseItem(ctx, 101, "Kebap", 10, "Ali")
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
	assert.Equal(t, StatusEmpty, snap.Status)

	_, err = r.AddItem(ctx, 101, kebap(), 1, "Ali")
	require.NoError(t, err)
	snap, err = r.ClearTable(ctx, 101, "Ali")
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.Equal(t, "0.00", snap.Total.String())

	_, err = New([]TableInfo{{Number: 1}, {Number: 1}}, Options{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestHistoryIsBoundedNewestFirst(t *testing.T) {
	r := newRegistry(t, Options{HistoryCapacity: DefaultHistoryCapacity})
	ctx := context.Background()
	for i := 1; i <= 60; i++ {
		_, err := r.AddItem(ctx, 101, Product{Name: fmt.Sprintf("Meze %d", i), UnitPrice: money.MustNew("1")}, 1, "Ali")
		require.NoError(t, err)
	}
	snap, err := r.Snapshot(101)
	require.NoError(t, err)
	require.Len(t, snap.History, DefaultHistoryCapacity)
	assert.Equal(t, "1 x Meze 60", snap.History[0].Description)
	assert.Equal(t, "1 x Meze 11", snap.History[DefaultHistoryCapacity-1].Description)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	r := newRegistry(t, Options{})
	ctx := context.Background()
	snap, err := r.AddItem(ctx, 101, kebap(), 1, "Ali")
	require.NoError(t, err)

	snap.Lines[0].Quantity = 99
	snap.History[0].Actor = "Mallory"

	fresh, _ := r.Snapshot(101)
	assert.Equal(t, 1, fresh.Lines[0].Quantity)
	assert.Equal(t, "Ali", fresh.History[0].Actor)
}

// blockingJournal parks PersistSale until released.
type blockingJournal struct {
	recordingJournal
	entered chan struct{}
	release chan struct{}
}

func (j *blockingJournal) PersistSale(ctx context.Context, sale Sale) (string, error) {
	close(j.entered)
	<-j.release
	return "", nil
}

func TestRecordSaleIsAtomicForReaders(t *testing.T) {
	j := &blockingJournal{entered: make(chan struct{}), release: make(chan struct{})}
	r := newRegistry(t, Options{Journal: j})
	ctx := context.Background()
	_, err := r.AddItem(ctx, 101, kebap(), 3, "Ali")
	require.NoError(t, err)

	saleDone := make(chan error, 1)
	go func() {
		_, err := r.RecordSale(ctx, 101, "CARD", "Ayşe")
		saleDone <- err
	}()
	<-j.entered

	snapDone := make(chan Snapshot, 1)
	go func() {
		s, _ := r.Snapshot(101)
		snapDone <- s
	}()

	select {
	case <-snapDone:
		t.Fatal("snapshot returned while the sale was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(j.release)
	require.NoError(t, <-saleDone)
	snap := <-snapDone
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.Empty(t, snap.Lines)
	assert.True(t, snap.Total.IsZero())

	other, err := r.Snapshot(102)
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, other.Status)
}

func TestConcurrentSalesAndSnapshots(t *testing.T) {
	r := newRegistry(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, err := r.Snapshot(101)
				if !assert.NoError(t, err) {
					return
				}
				if snap.Status == StatusEmpty {
					assert.Empty(t, snap.Lines)
					assert.True(t, snap.Total.IsZero())
				} else {
					assert.NotEmpty(t, snap.Lines)
					assert.Equal(t, expectedTotal(snap.Lines).String(), snap.Total.String())
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		_, err := r.AddItem(ctx, 101, kebap(), 2, "Ali")
		require.NoError(t, err)
		_, err = r.AddItem(ctx, 101, Product{Name: "Ayran", UnitPrice: money.MustNew("15.50")}, 1, "Ali")
		require.NoError(t, err)
		sale, err := r.RecordSale(ctx, 101, "CASH", "Ayşe")
		require.NoError(t, err)
		require.Equal(t, "115.50", sale.Total.String())
	}
	close(stop)
	wg.Wait()
}

// recordingJournal remembers calls and can be told to fail.
type recordingJournal struct {
	mu    sync.Mutex
	calls     []string
	fail      error
	reference string
}

func (j *recordingJournal) note(name string, c Change) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.calls = append(j.calls, fmt.Sprintf("%s %s %d", name, c.Product, c.Quantity))
	return nil
}

func (j *recordingJournal) PersistSale(ctx context.Context, sale Sale) (string, error) {
	if err := j.note("sale", Change{Product: sale.Method, Quantity: len(sale.Lines)}); err != nil {
		return "", err
	}
	return j.reference, nil
}
func (j *recordingJournal) ItemAdded(ctx context.Context, c Change) error     { return j.note("add", c) }
func (j *recordingJournal) ItemDecreased(ctx context.Context, c Change) error { return j.note("decrease", c) }
func (j *recordingJournal) ItemRemoved(ctx context.Context, c Change) error   { return j.note("remove", c) }
func (j *recordingJournal) Served(ctx context.Context, c Change) error        { return j.note("served", c) }
func (j *recordingJournal) Cleared(ctx context.Context, c Change) error       { return j.note("cleared", c) }

func TestJournalFailureLeavesStateUnchanged(t *testing.T) {
	j := &recordingJournal{}
	r := newRegistry(t, Options{Journal: j})
	ctx := context.Background()

	_, err := r.AddItem(ctx, 101, kebap(), 2, "Ali")
	require.NoError(t, err)
	_, _, err = r.DecreaseItem(ctx, 101, "KEBAP", 5, "Ali")
	require.NoError(t, err)
	_, err = r.AddItem(ctx, 101, kebap(), 2, "Ali")
	require.NoError(t, err)
	assert.Equal(t, []string{"add Kebap 2", "decrease Kebap 2", "add Kebap 2"}, j.calls)

	j.fail = apperrors.InsufficientStock("take stock", "no kebap left")
	before, _ := r.Snapshot(101)

	_, err = r.AddItem(ctx, 101, kebap(), 1, "Ali")
	assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientStock))
	_, err = r.RecordSale(ctx, 101, "CASH", "Ayşe")
	assert.Error(t, err)
	_, err = r.ClearTable(ctx, 101, "Ali")
	assert.Error(t, err)
	_, _, err = r.MarkServed(ctx, 101, "Ali")
	assert.Error(t, err)

	after, _ := r.Snapshot(101)
	assert.Equal(t, before, after)
}

// reentrantPublisher reads the registry from inside Publish; it deadlocks if
// the table lock were still held.
type reentrantPublisher struct {
	r    *Registry
	seen []kds.Message
}

func (p *reentrantPublisher) Publish(msg kds.Message) {
	if _, err := p.r.Snapshot(msg.Table); err != nil {
		panic(err)
	}
	p.seen = append(p.seen, msg)
}

func TestNotificationsFireAfterUnlock(t *testing.T) {
	pub := &reentrantPublisher{}
	r := newRegistry(t, Options{Publisher: pub})
	pub.r = r
	ctx := context.Background()

	_, err := r.AddItem(ctx, 101, kebap(), 1, "Ali")
	require.NoError(t, err)
	_, err = r.RecordSale(ctx, 101, "CASH", "Ali")
	require.NoError(t, err)

	require.Len(t, pub.seen, 3)
	assert.Equal(t, kds.EventTableUpdate, pub.seen[0].Event)
	assert.Equal(t, kds.EventSaleRecorded, pub.seen[1].Event)
	assert.IsType(t, Sale{}, pub.seen[1].Data)
	assert.Equal(t, 101, pub.seen[2].Table)
}

func TestRestore(t *testing.T) {
	r := newRegistry(t, Options{})
	lines := []Line{{ProductID: 4, Product: "Kebap", UnitPrice: money.MustNew("59.00"), Quantity: 2}}
	require.NoError(t, r.Restore(102, lines, StatusServed, "system"))

	snap, _ := r.Snapshot(102)
	assert.Equal(t, StatusServed, snap.Status)
	assert.Equal(t, "118.00", snap.Total.String())
	assert.Equal(t, ActionRestored, snap.History[0].Action)

	err := r.Restore(102, []Line{{Product: "Kebap", Quantity: 0}}, StatusOrdered, "system")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.True(t, apperrors.IsKind(r.Restore(999, nil, StatusEmpty, "system"), apperrors.KindNotFound))
}

func TestSameNameDifferentProductIsRefused(t *testing.T) {
	j := &recordingJournal{}
	r := newRegistry(t, Options{Journal: j})
	ctx := context.Background()

	_, err := r.AddItem(ctx, 101, Product{ID: 1, Name: "Kola", UnitPrice: money.MustNew("10.00")}, 1, "Ali")
	require.NoError(t, err)
	before, _ := r.Snapshot(101)

	_, err = r.AddItem(ctx, 101, Product{ID: 2, Name: "kola", UnitPrice: money.MustNew("15.00")}, 1, "Ali")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
	assert.Equal(t, []string{"add Kola 1"}, j.calls)

	after, _ := r.Snapshot(101)
	assert.Equal(t, before, after)

	snap, err := r.AddItem(ctx, 101, Product{ID: 1, Name: "KOLA", UnitPrice: money.MustNew("10.00")}, 1, "Ali")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.Equal(t, "20.00", snap.Total.String())
}

func TestPublishedSeqFollowsTableVersion(t *testing.T) {
	pub := &reentrantPublisher{}
	r := newRegistry(t, Options{Publisher: pub})
	pub.r = r
	ctx := context.Background()

	_, err := r.AddItem(ctx, 101, kebap(), 1, "Ali")
	require.NoError(t, err)
	_, _, err = r.MarkServed(ctx, 101, "Ali")
	require.NoError(t, err)
	_, _, err = r.MarkServed(ctx, 101, "Ali")
	require.NoError(t, err)
	snap, err := r.ClearTable(ctx, 101, "Ali")
	require.NoError(t, err)

	require.Len(t, pub.seen, 3)
	for i := 1; i < len(pub.seen); i++ {
		assert.Greater(t, pub.seen[i].Seq, pub.seen[i-1].Seq)
	}
	assert.Equal(t, snap.Version, pub.seen[2].Seq)

	fresh, _ := r.Snapshot(101)
	assert.Equal(t, snap.Version, fresh.Version)
	other, _ := r.Snapshot(102)
	assert.Zero(t, other.Version)
}

func TestSaleIDIsPersistedReference(t *testing.T) {
	j := &recordingJournal{reference: "pay-123"}
	r := newRegistry(t, Options{Journal: j})
	ctx := context.Background()

	_, err := r.AddItem(ctx, 101, kebap(), 1, "Ali")
	require.NoError(t, err)
	sale, err := r.RecordSale(ctx, 101, "CARD", "Ayşe")
	require.NoError(t, err)
	assert.Equal(t, "pay-123", sale.ID)
}
