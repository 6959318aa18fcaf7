package handler

import (
	"net/http"
	"strconv"

	"github.com/Skarath13/cards/internal/apierror"
	"github.com/Skarath13/cards/internal/dto"
	"github.com/Skarath13/cards/internal/grid"
	"github.com/Skarath13/cards/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler serves the signed-in user's card and cash grids for the
// current business date.
type LedgerHandler struct{ svc service.LedgerService }

func NewLedgerHandler(svc service.LedgerService) *LedgerHandler { return &LedgerHandler{svc: svc} }

// scope resolves the user and payment type of a ledger request.
func scope(c *gin.Context) (uuid.UUID, grid.PaymentType, bool) {
	user, ok := currentUser(c)
	if !ok {
		return uuid.Nil, "", false
	}
	pt, ok := paymentType(c)
	if !ok {
		return uuid.Nil, "", false
	}
	return user, pt, true
}

func entryParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("entry"))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, apierror.New("entry must be a positive integer"))
		return 0, false
	}
	return n, true
}

// View godoc
// @Summary Today's ledger
// @Tags ledger
// @Security BearerAuth
// @Produce json
// @Param payment_type path string true "card | cash"
// @Success 200 {object} dto.LedgerResponse
// @Failure 503 {object} apierror.APIError
// @Router /v1/ledger/{payment_type} [get]
func (h *LedgerHandler) View(c *gin.Context) {
	user, pt, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.View(c.Request.Context(), user, pt)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// EditCell godoc
// @Summary Edit one cell; the row is saved after a short quiet period
// @Tags ledger
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payment_type path string true "card | cash"
// @Param entry path int true "Entry number"
// @Param body body dto.EditCellRequest true "Cell"
// @Success 200 {object} dto.RowResponse
// @Failure 400 {object} apierror.APIError "Unknown field, time not HH:MM, or amount outside 12 digits with 2 decimals"
// @Failure 404 {object} apierror.APIError
// @Router /v1/ledger/{payment_type}/rows/{entry} [patch]
func (h *LedgerHandler) EditCell(c *gin.Context) {
	user, pt, ok := scope(c)
	if !ok {
		return
	}
	entry, ok := entryParam(c)
	if !ok {
		return
	}
	var req dto.EditCellRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.EditCell(c.Request.Context(), user, pt, entry, req)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddRow godoc
// @Summary Append a row
// @Tags ledger
// @Security BearerAuth
// @Produce json
// @Param payment_type path string true "card | cash"
// @Success 201 {object} dto.RowResponse
// @Failure 503 {object} apierror.APIError
// @Router /v1/ledger/{payment_type}/rows [post]
func (h *LedgerHandler) AddRow(c *gin.Context) {
	user, pt, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.AddRow(c.Request.Context(), user, pt)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RemoveRow godoc
// @Summary Hide the trailing empty row
// @Tags ledger
// @Security BearerAuth
// @Produce json
// @Param payment_type path string true "card | cash"
// @Success 200 {object} dto.LedgerResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/ledger/{payment_type}/rows [delete]
func (h *LedgerHandler) RemoveRow(c *gin.Context) {
	user, pt, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.RemoveRow(c.Request.Context(), user, pt)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RequestDelete godoc
// @Summary Ask to delete a row; returns the confirmation token
// @Tags ledger
// @Security BearerAuth
// @Produce json
// @Param payment_type path string true "card | cash"
// @Param entry path int true "Entry number"
// @Success 200 {object} dto.DeleteRequestResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/ledger/{payment_type}/rows/{entry}/delete [post]
func (h *LedgerHandler) RequestDelete(c *gin.Context) {
	user, pt, ok := scope(c)
	if !ok {
		return
	}
	entry, ok := entryParam(c)
	if !ok {
		return
	}
	resp, err := h.svc.RequestDelete(c.Request.Context(), user, pt, entry)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmDelete godoc
// @Summary Delete the requested row and renumber the rows after it
// @Tags ledger
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payment_type path string true "card | cash"
// @Param body body dto.ConfirmDeleteRequest true "Token"
// @Success 200 {object} dto.LedgerResponse
// @Failure 404 {object} apierror.APIError
// @Failure 410 {object} apierror.APIError
// @Router /v1/ledger/{payment_type}/delete/confirm [post]
func (h *LedgerHandler) ConfirmDelete(c *gin.Context) {
	user, pt, ok := scope(c)
	if !ok {
		return
	}
	var req dto.ConfirmDeleteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ConfirmDelete(c.Request.Context(), user, pt, req.Token)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CancelDelete godoc
// @Summary Drop the open delete request
// @Tags ledger
// @Security BearerAuth
// @Param payment_type path string true "card | cash"
// @Success 204
// @Router /v1/ledger/{payment_type}/delete [delete]
func (h *LedgerHandler) CancelDelete(c *gin.Context) {
	user, pt, ok := scope(c)
	if !ok {
		return
	}
	if err := h.svc.CancelDelete(c.Request.Context(), user, pt); err != nil {
		ledgerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Totals godoc
// @Summary Column totals of today's ledger
// @Tags ledger
// @Security BearerAuth
// @Produce json
// @Param payment_type path string true "card | cash"
// @Success 200 {object} dto.TotalsResponse
// @Router /v1/ledger/{payment_type}/totals [get]
func (h *LedgerHandler) Totals(c *gin.Context) {
	user, pt, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.Totals(c.Request.Context(), user, pt)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Flush godoc
// @Summary Save every queued row now
// @Tags ledger
// @Security BearerAuth
// @Produce json
// @Param payment_type path string true "card | cash"
// @Success 200 {object} dto.LedgerResponse
// @Router /v1/ledger/{payment_type}/flush [post]
func (h *LedgerHandler) Flush(c *gin.Context) {
	user, pt, ok := scope(c)
	if !ok {
		return
	}
	resp, err := h.svc.Flush(c.Request.Context(), user, pt)
	if err != nil {
		ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
