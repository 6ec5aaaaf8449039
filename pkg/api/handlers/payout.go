package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/qutab/affiliate-ledger/pkg/api/errors"
	"github.com/qutab/affiliate-ledger/pkg/export"
	"github.com/qutab/affiliate-ledger/pkg/metrics"
	"github.com/qutab/affiliate-ledger/pkg/middleware"
	"github.com/qutab/affiliate-ledger/pkg/models"
	"github.com/qutab/affiliate-ledger/pkg/payout"
	"github.com/qutab/affiliate-ledger/pkg/query"
	"github.com/qutab/affiliate-ledger/pkg/registry"
)

// PayoutHandler handles admin payout resolution
type PayoutHandler struct {
	payoutService   *payout.Service
	registryService *registry.Service
	exportService   *export.Service
	queryService    *query.Service
	metrics         *metrics.Metrics
	validator       *validator.Validate
}

// NewPayoutHandler creates a new payout handler
func NewPayoutHandler(payoutService *payout.Service, registryService *registry.Service, exportService *export.Service, queryService *query.Service, m *metrics.Metrics) *PayoutHandler {
	return &PayoutHandler{
		payoutService:   payoutService,
		registryService: registryService,
		exportService:   exportService,
		queryService:    queryService,
		metrics:         m,
		validator:       validator.New(),
	}
}

// ListPending godoc
// @Summary List pending payout requests
// @Description Oldest requests first
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query integer false "Page number" default(1)
// @Param limit query integer false "Results per page" default(20)
// @Success 200 {object} models.PayoutListResponse "Pending payouts"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /admin/payouts [get]
func (h *PayoutHandler) ListPending(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	list, err := h.payoutService.ListPending(c.Request().Context(), page, limit)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, list)
}

// Get godoc
// @Summary Get a payout request with its name check
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Payout request ID"
// @Success 200 {object} map[string]interface{} "Payout request and name check"
// @Failure 404 {object} models.ErrorResponse "Payout not found"
// @Router /admin/payouts/{id} [get]
func (h *PayoutHandler) Get(c echo.Context) error {
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	request, err := h.payoutService.Get(c.Request().Context(), uint(requestID))
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	affiliate, err := h.registryService.Get(c.Request().Context(), request.AffiliateID)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"payout":     request,
		"name_check": h.registryService.CheckNames(affiliate),
	})
}

// Settle godoc
// @Summary Settle a pending payout
// @Description Debits the ledger and marks the request paid. A KTP name
// @Description mismatch blocks settlement unless override is set with a note.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Payout request ID"
// @Param request body models.SettlePayoutRequest true "Settlement transaction reference"
// @Success 200 {object} models.PayoutRequest "Settled payout"
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 404 {object} models.ErrorResponse "Payout not found"
// @Failure 409 {object} models.ErrorResponse "Not pending, or name mismatch without override"
// @Failure 422 {object} models.ErrorResponse "Insufficient balance"
// @Router /admin/payouts/{id}/settle [post]
func (h *PayoutHandler) Settle(c echo.Context) error {
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	var req models.SettlePayoutRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx := c.Request().Context()

	request, err := h.payoutService.Get(ctx, uint(requestID))
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	affiliate, err := h.registryService.Get(ctx, request.AffiliateID)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	// The name check is advisory but a mismatch needs an explicit,
	// noted override before money moves
	check := h.registryService.CheckNames(affiliate)
	if h.metrics != nil {
		h.metrics.RecordNameCheck(string(check.Result))
	}
	if check.Result == models.NameCheckMismatch {
		if !req.Override {
			return c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "name_mismatch",
				Message: "KTP name does not match the bank account holder. Set override with a note to settle anyway.",
			})
		}
		if req.OverrideNote == "" {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "validation_error",
				Message: "An override note is required when settling despite a name mismatch.",
			})
		}
	}

	actor := middleware.ActorName(c)
	settled, err := h.payoutService.Settle(ctx, uint(requestID), req.TransactionRef, req.OverrideNote, actor)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordPayoutResolved("paid", settled.Amount)
	}
	if h.queryService != nil {
		_ = h.queryService.InvalidateStats(ctx)
	}

	return c.JSON(http.StatusOK, settled)
}

// Reject godoc
// @Summary Reject a pending payout
// @Description No ledger effect; the held amount becomes withdrawable again
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Payout request ID"
// @Param request body models.RejectPayoutRequest true "Rejection reason"
// @Success 200 {object} models.PayoutRequest "Rejected payout"
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 404 {object} models.ErrorResponse "Payout not found"
// @Failure 409 {object} models.ErrorResponse "Not pending"
// @Router /admin/payouts/{id}/reject [post]
func (h *PayoutHandler) Reject(c echo.Context) error {
	requestID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	var req models.RejectPayoutRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	actor := middleware.ActorName(c)
	rejected, err := h.payoutService.Reject(c.Request().Context(), uint(requestID), req.Reason, actor)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordPayoutResolved("rejected", rejected.Amount)
	}
	if h.queryService != nil {
		_ = h.queryService.InvalidateStats(c.Request().Context())
	}

	return c.JSON(http.StatusOK, rejected)
}

// ExportRecap godoc
// @Summary Export a payout recap workbook
// @Description XLSX of all payout requests in the given date range
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD, exclusive)"
// @Success 200 {file} binary "XLSX workbook"
// @Failure 400 {object} models.ErrorResponse "Invalid date range"
// @Router /admin/payouts/export [get]
func (h *PayoutHandler) ExportRecap(c echo.Context) error {
	from, err := time.Parse("2006-01-02", c.QueryParam("from"))
	if err != nil {
		return errors.ValidationError(c, err)
	}
	to, err := time.Parse("2006-01-02", c.QueryParam("to"))
	if err != nil {
		return errors.ValidationError(c, err)
	}

	data, filename, err := h.exportService.PayoutRecap(c.Request().Context(), from, to)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ExportLedger godoc
// @Summary Export an affiliate's ledger workbook
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path integer true "Affiliate ID"
// @Success 200 {file} binary "XLSX workbook"
// @Failure 404 {object} models.ErrorResponse "Affiliate not found"
// @Router /admin/affiliates/{id}/ledger/export [get]
func (h *PayoutHandler) ExportLedger(c echo.Context) error {
	affiliateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	data, filename, err := h.exportService.LedgerHistory(c.Request().Context(), uint(affiliateID))
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
