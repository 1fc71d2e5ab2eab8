package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-pos/apperrors"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/tablestate"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type TableController struct {
	POS *services.POSService
}

func NewTableController(pos *services.POSService) *TableController {
	return &TableController{POS: pos}
}

// outcomeResponse is returned by mutations that may legitimately do nothing.
type outcomeResponse struct {
	Outcome string              `json:"outcome"`
	Table   tablestate.Snapshot `json:"table"`
}

func tableNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n <= 0 {
		utils.RespondAppError(c, apperrors.Validation("table", "invalid table number %q", c.Param("number")))
		return 0, false
	}
	return n, true
}

func respondOutcome(c *gin.Context, message string, outcome tablestate.Outcome, snap tablestate.Snapshot) {
	if outcome != tablestate.Applied {
		message = "Nothing to change"
	}
	utils.RespondJSON(c, http.StatusOK, message, outcomeResponse{Outcome: outcome.String(), Table: snap})
}

// ListTables -> every table with its live order
func (tc *TableController) ListTables(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "List of tables", tc.POS.Snapshots())
}

func (tc *TableController) GetTable(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	snap, err := tc.POS.Snapshot(number)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", snap)
}

// AddItem -> add a product to the table's order, quantity defaults to 1
func (tc *TableController) AddItem(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	var req struct {
		ProductID uint `json:"product_id" binding:"required"`
		Quantity  *int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	snap, err := tc.POS.AddItem(c.Request.Context(), number, req.ProductID, qty, middlewares.ActorFrom(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.InfoLogger.Printf("Table %d: added %d x product %d", number, qty, req.ProductID)
	utils.RespondJSON(c, http.StatusOK, "Item added", snap)
}

func (tc *TableController) DecreaseItem(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	var req struct {
		Product  string `json:"product" binding:"required"`
		Quantity *int   `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	outcome, snap, err := tc.POS.DecreaseItem(c.Request.Context(), number, req.Product, qty, middlewares.ActorFrom(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	respondOutcome(c, "Item decreased", outcome, snap)
}

func (tc *TableController) RemoveItem(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	outcome, snap, err := tc.POS.RemoveItem(c.Request.Context(), number, c.Param("product"), middlewares.ActorFrom(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	respondOutcome(c, "Item removed", outcome, snap)
}

func (tc *TableController) Serve(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	outcome, snap, err := tc.POS.MarkServed(c.Request.Context(), number, middlewares.ActorFrom(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	respondOutcome(c, "Order served", outcome, snap)
}

func (tc *TableController) Clear(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	snap, err := tc.POS.ClearTable(c.Request.Context(), number, middlewares.ActorFrom(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.InfoLogger.Printf("Table %d cleared by %s", number, middlewares.ActorFrom(c))
	utils.RespondJSON(c, http.StatusOK, "Table cleared", snap)
}

// Sale -> take payment for the whole table and free it
func (tc *TableController) Sale(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	var req struct {
		Method string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	sale, err := tc.POS.RecordSale(c.Request.Context(), number, req.Method, middlewares.ActorFrom(c))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	utils.InfoLogger.Printf("Table %d paid %s by %s", number, sale.Total, sale.Method)
	utils.RespondJSON(c, http.StatusCreated, "Sale recorded", sale)
}
