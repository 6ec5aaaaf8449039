package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/qutab/affiliate-ledger/pkg/api/errors"
	"github.com/qutab/affiliate-ledger/pkg/ledger"
	"github.com/qutab/affiliate-ledger/pkg/metrics"
	"github.com/qutab/affiliate-ledger/pkg/middleware"
	"github.com/qutab/affiliate-ledger/pkg/models"
	"github.com/qutab/affiliate-ledger/pkg/query"
)

// LedgerHandler handles admin ledger operations
type LedgerHandler struct {
	ledgerService *ledger.Service
	queryService  *query.Service
	metrics       *metrics.Metrics
	validator     *validator.Validate
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(ledgerService *ledger.Service, queryService *query.Service, m *metrics.Metrics) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		queryService:  queryService,
		metrics:       m,
		validator:     validator.New(),
	}
}

// Credit godoc
// @Summary Apply a manual commission credit
// @Description Appends a credit entry to the affiliate's ledger
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Affiliate ID"
// @Param request body models.CreditRequest true "Credit amount and note"
// @Success 201 {object} models.LedgerEntry "Created entry"
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 404 {object} models.ErrorResponse "Affiliate not found"
// @Router /admin/affiliates/{id}/credit [post]
func (h *LedgerHandler) Credit(c echo.Context) error {
	affiliateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	var req models.CreditRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	actor := middleware.ActorName(c)
	entry, err := h.ledgerService.Credit(c.Request().Context(), uint(affiliateID), req.Amount, req.Note, actor)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordCredit(req.Amount)
	}
	if h.queryService != nil {
		_ = h.queryService.InvalidateStats(c.Request().Context())
	}

	return c.JSON(http.StatusCreated, entry)
}

// History godoc
// @Summary Get an affiliate's ledger history
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Affiliate ID"
// @Param cursor query integer false "Resume cursor from a previous page"
// @Param limit query integer false "Page size" default(20)
// @Success 200 {object} models.LedgerHistoryResponse "Ledger entries"
// @Failure 404 {object} models.ErrorResponse "Affiliate not found"
// @Router /admin/affiliates/{id}/ledger [get]
func (h *LedgerHandler) History(c echo.Context) error {
	affiliateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	cursor, _ := strconv.ParseUint(c.QueryParam("cursor"), 10, 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	history, err := h.ledgerService.History(c.Request().Context(), uint(affiliateID), uint(cursor), limit)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, history)
}

// Recompute godoc
// @Summary Recompute an affiliate's balance from entries
// @Description Cross-checks the cached balance against the entry sum
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Affiliate ID"
// @Success 200 {object} models.BalanceResponse "Recomputed balance"
// @Failure 404 {object} models.ErrorResponse "Affiliate not found"
// @Router /admin/affiliates/{id}/recompute [post]
func (h *LedgerHandler) Recompute(c echo.Context) error {
	affiliateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	balance, err := h.ledgerService.Recompute(c.Request().Context(), uint(affiliateID))
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.BalanceResponse{
		AffiliateID: uint(affiliateID),
		Balance:     balance,
	})
}
