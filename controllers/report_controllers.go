package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/money"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

const dateLayout = "2006-01-02"

type ReportController struct {
	Reports *services.ReportService
	now     func() time.Time
}

func NewReportController(reports *services.ReportService) *ReportController {
	return &ReportController{Reports: reports, now: time.Now}
}

func (rc *ReportController) today() time.Time {
	return rc.now().In(rc.Reports.Location())
}

// yearMonth reads ?year= and ?month=, defaulting to the current month.
func (rc *ReportController) yearMonth(c *gin.Context) (int, time.Month, error) {
	today := rc.today()
	year, month := today.Year(), today.Month()
	if raw := c.Query("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperrors.Validation("report", "invalid year %q", raw)
		}
		year = n
	}
	if raw := c.Query("month"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperrors.Validation("report", "invalid month %q", raw)
		}
		month = time.Month(n)
	}
	return year, month, nil
}

// Daily -> GET /reports/daily?date=2024-05-01
func (rc *ReportController) Daily(c *gin.Context) {
	day := rc.today()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, rc.Reports.Location())
		if err != nil {
			utils.RespondAppError(c, apperrors.Validation("daily report", "date must be YYYY-MM-DD, got %q", raw))
			return
		}
		day = parsed
	}
	report, err := rc.Reports.DailySales(c.Request.Context(), day)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Daily sales", report)
}

func (rc *ReportController) Monthly(c *gin.Context) {
	year, month, err := rc.yearMonth(c)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	sales, err := rc.Reports.MonthlySales(c.Request.Context(), year, month)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	expenses, err := rc.Reports.MonthlyExpenses(c.Request.Context(), year, month)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Monthly report", gin.H{
		"sales":    sales,
		"expenses": expenses,
	})
}

func (rc *ReportController) NetProfit(c *gin.Context) {
	year, month, err := rc.yearMonth(c)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	report, err := rc.Reports.NetProfit(c.Request.Context(), year, month)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Net profit", report)
}

// Summary -> one net profit row per month of ?year=
func (rc *ReportController) Summary(c *gin.Context) {
	year, _, err := rc.yearMonth(c)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	rows, err := rc.Reports.MonthlySummary(c.Request.Context(), year)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Monthly summary", rows)
}

func (rc *ReportController) CreateExpense(c *gin.Context) {
	var req struct {
		Date        string      `json:"date"`
		Category    string      `json:"category" binding:"required"`
		Amount      money.Money `json:"amount"`
		Description string      `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Amount.IsZero() {
		utils.RespondAppError(c, apperrors.Validation("create expense", "amount is required"))
		return
	}

	date := rc.now()
	if req.Date != "" {
		parsed, err := time.ParseInLocation(dateLayout, req.Date, rc.Reports.Location())
		if err != nil {
			utils.RespondAppError(c, apperrors.Validation("create expense", "date must be YYYY-MM-DD, got %q", req.Date))
			return
		}
		date = parsed
	}

	rec, err := rc.Reports.RecordExpense(c.Request.Context(), date, strings.TrimSpace(req.Category), req.Amount, req.Description)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.InfoLogger.Printf("Expense recorded: %s %s", rec.Category, rec.Amount)
	utils.RespondJSON(c, http.StatusCreated, "Expense recorded", rec)
}
