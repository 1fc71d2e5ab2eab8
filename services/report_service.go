package services

import (
	"context"
	"time"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/money"
	"github.com/yeremiapane/restaurant-pos/repository"
)

type SalesReport struct {
	From     time.Time               `json:"from"`
	To       time.Time               `json:"to"`
	Sales    []repository.SaleRecord `json:"sales"`
	Count    int                     `json:"count"`
	Total    money.Money             `json:"total"`
	ByMethod map[string]money.Money  `json:"by_method"`
}

type ExpenseReport struct {
	From       time.Time                  `json:"from"`
	To         time.Time                  `json:"to"`
	Expenses   []repository.ExpenseRecord `json:"expenses"`
	Total      money.Money                `json:"total"`
	ByCategory map[string]money.Money     `json:"by_category"`
}

type ProfitReport struct {
	Year      int         `json:"year"`
	Month     time.Month  `json:"month"`
	Sales     money.Money `json:"sales"`
	Expenses  money.Money `json:"expenses"`
	NetProfit money.Money `json:"net_profit"`
}

// ReportService answers read-only questions over payments and expenses.
type ReportService struct {
	store *repository.Store
	loc   *time.Location
}

func NewReportService(store *repository.Store, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &ReportService{store: store, loc: loc}
}

// Location is the zone report days and months are cut in.
func (s *ReportService) Location() *time.Location { return s.loc }

func (s *ReportService) dayRange(day time.Time) (time.Time, time.Time) {
	d := day.In(s.loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 0, 1)
}

func (s *ReportService) monthRange(op string, year int, month time.Month) (time.Time, time.Time, error) {
	if month < time.January || month > time.December {
		return time.Time{}, time.Time{}, apperrors.Validation(op, "month must be 1-12, got %d", month)
	}
	if year < 1 {
		return time.Time{}, time.Time{}, apperrors.Validation(op, "invalid year %d", year)
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 1, 0), nil
}

// SalesBetween reports payments with from <= paid_at < to.
func (s *ReportService) SalesBetween(ctx context.Context, from, to time.Time) (SalesReport, error) {
	if !from.Before(to) {
		return SalesReport{}, apperrors.Validation("sales report", "from must be before to")
	}
	sales, err := s.store.Payments.ListBetween(ctx, from, to)
	if err != nil {
		return SalesReport{}, err
	}
	report := SalesReport{
		From:     from,
		To:       to,
		Sales:    sales,
		Count:    len(sales),
		Total:    money.Zero,
		ByMethod: make(map[string]money.Money),
	}
	for _, sale := range sales {
		report.Total = report.Total.Add(sale.Amount)
		report.ByMethod[sale.Method] = report.ByMethod[sale.Method].Add(sale.Amount)
	}
	return report, nil
}

func (s *ReportService) DailySales(ctx context.Context, day time.Time) (SalesReport, error) {
	from, to := s.dayRange(day)
	return s.SalesBetween(ctx, from, to)
}

func (s *ReportService) MonthlySales(ctx context.Context, year int, month time.Month) (SalesReport, error) {
	from, to, err := s.monthRange("monthly sales", year, month)
	if err != nil {
		return SalesReport{}, err
	}
	return s.SalesBetween(ctx, from, to)
}

// ExpensesBetween reports expenses with from <= date < to.
func (s *ReportService) ExpensesBetween(ctx context.Context, from, to time.Time) (ExpenseReport, error) {
	if !from.Before(to) {
		return ExpenseReport{}, apperrors.Validation("expense report", "from must be before to")
	}
	expenses, err := s.store.Expenses.ListBetween(ctx, from, to)
	if err != nil {
		return ExpenseReport{}, err
	}
	report := ExpenseReport{
		From:       from,
		To:         to,
		Expenses:   expenses,
		Total:      money.Zero,
		ByCategory: make(map[string]money.Money),
	}
	for _, e := range expenses {
		report.Total = report.Total.Add(e.Amount)
		report.ByCategory[e.Category] = report.ByCategory[e.Category].Add(e.Amount)
	}
	return report, nil
}

func (s *ReportService) MonthlyExpenses(ctx context.Context, year int, month time.Month) (ExpenseReport, error) {
	from, to, err := s.monthRange("monthly expenses", year, month)
	if err != nil {
		return ExpenseReport{}, err
	}
	return s.ExpensesBetween(ctx, from, to)
}

// NetProfit is the month's sales minus its expenses.
func (s *ReportService) NetProfit(ctx context.Context, year int, month time.Month) (ProfitReport, error) {
	sales, err := s.MonthlySales(ctx, year, month)
	if err != nil {
		return ProfitReport{}, err
	}
	expenses, err := s.MonthlyExpenses(ctx, year, month)
	if err != nil {
		return ProfitReport{}, err
	}
	return ProfitReport{
		Year:      year,
		Month:     month,
		Sales:     sales.Total,
		Expenses:  expenses.Total,
		NetProfit: sales.Total.Sub(expenses.Total),
	}, nil
}

// MonthlySummary returns the profit report of every month of the year.
func (s *ReportService) MonthlySummary(ctx context.Context, year int) ([]ProfitReport, error) {
	out := make([]ProfitReport, 0, 12)
	for m := time.January; m <= time.December; m++ {
		r, err := s.NetProfit(ctx, year, m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// RecordExpense stores an outgoing payment.
func (s *ReportService) RecordExpense(ctx context.Context, date time.Time, category string, amount money.Money, description string) (repository.ExpenseRecord, error) {
	e := &models.Expense{Date: date, Category: category, Amount: amount, Description: description}
	if err := s.store.Expenses.Create(ctx, e); err != nil {
		return repository.ExpenseRecord{}, err
	}
	rec := repository.ExpenseRecord{ID: e.ID, Date: e.Date, Category: e.Category, Amount: e.Amount}
	if s.store.Caps.Supported(repository.FeatureExpenseDescription) {
		rec.Description = e.Description
	}
	return rec, nil
}
