package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/qutab/affiliate-ledger/pkg/api/errors"
	"github.com/qutab/affiliate-ledger/pkg/commission"
	"github.com/qutab/affiliate-ledger/pkg/ledger"
	"github.com/qutab/affiliate-ledger/pkg/metrics"
	"github.com/qutab/affiliate-ledger/pkg/middleware"
	"github.com/qutab/affiliate-ledger/pkg/models"
	"github.com/qutab/affiliate-ledger/pkg/payout"
	"github.com/qutab/affiliate-ledger/pkg/registry"
)

// AffiliateHandler handles affiliate-facing endpoints
type AffiliateHandler struct {
	registryService   *registry.Service
	ledgerService     *ledger.Service
	payoutService     *payout.Service
	commissionService *commission.Service
	metrics           *metrics.Metrics
	validator         *validator.Validate
}

// NewAffiliateHandler creates a new affiliate handler
func NewAffiliateHandler(registryService *registry.Service, ledgerService *ledger.Service, payoutService *payout.Service, commissionService *commission.Service, m *metrics.Metrics) *AffiliateHandler {
	return &AffiliateHandler{
		registryService:   registryService,
		ledgerService:     ledgerService,
		payoutService:     payoutService,
		commissionService: commissionService,
		metrics:           m,
		validator:         validator.New(),
	}
}

// Register godoc
// @Summary Register a new affiliate
// @Description Creates an affiliate account with a unique referral code
// @Tags Affiliates
// @Accept json
// @Produce json
// @Param request body models.RegisterAffiliateRequest true "Registration data"
// @Success 201 {object} models.Affiliate "Created affiliate"
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 409 {object} models.ErrorResponse "Email already registered"
// @Router /affiliates [post]
func (h *AffiliateHandler) Register(c echo.Context) error {
	var req models.RegisterAffiliateRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	affiliate, err := h.registryService.Register(c.Request().Context(), req.Name, req.Email, req.Phone)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordAffiliateRegistered()
	}

	return c.JSON(http.StatusCreated, affiliate)
}

// Me godoc
// @Summary Get own affiliate profile
// @Tags Affiliates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Affiliate "Affiliate profile"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /affiliates/me [get]
func (h *AffiliateHandler) Me(c echo.Context) error {
	affiliateID, ok := middleware.AffiliateID(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing affiliate identity")
	}

	affiliate, err := h.registryService.Get(c.Request().Context(), affiliateID)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, affiliate)
}

// SubmitBankDetails godoc
// @Summary Submit bank account and KTP identity claim
// @Description Stores the claim and queues it for manual verification review
// @Tags Affiliates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BankDetailsRequest true "Bank and KTP details"
// @Success 200 {object} models.Affiliate "Updated affiliate"
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 409 {object} models.ErrorResponse "Claim not editable in current state"
// @Router /affiliates/me/bank-details [put]
func (h *AffiliateHandler) SubmitBankDetails(c echo.Context) error {
	affiliateID, ok := middleware.AffiliateID(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing affiliate identity")
	}

	var req models.BankDetailsRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	affiliate, err := h.registryService.SubmitBankDetails(c.Request().Context(), affiliateID, registry.BankDetailsInput{
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountHolder: req.AccountHolder,
		KTPName:       req.KTPName,
		KTPNumber:     req.KTPNumber,
		KTPPhotoRef:   req.KTPPhotoRef,
	})
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, affiliate)
}

// Balance godoc
// @Summary Get current withdrawable balance
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.BalanceResponse "Current balance"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /affiliates/me/balance [get]
func (h *AffiliateHandler) Balance(c echo.Context) error {
	affiliateID, ok := middleware.AffiliateID(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing affiliate identity")
	}

	balance, err := h.ledgerService.Balance(c.Request().Context(), affiliateID)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.BalanceResponse{
		AffiliateID: affiliateID,
		Balance:     balance,
	})
}

// LedgerHistory godoc
// @Summary Get own ledger history
// @Description Cursor-paginated ledger entries, newest first
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param cursor query integer false "Resume cursor from a previous page"
// @Param limit query integer false "Page size" default(20)
// @Success 200 {object} models.LedgerHistoryResponse "Ledger entries"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /affiliates/me/ledger [get]
func (h *AffiliateHandler) LedgerHistory(c echo.Context) error {
	affiliateID, ok := middleware.AffiliateID(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing affiliate identity")
	}

	cursor, _ := strconv.ParseUint(c.QueryParam("cursor"), 10, 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	history, err := h.ledgerService.History(c.Request().Context(), affiliateID, uint(cursor), limit)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, history)
}

// RequestPayout godoc
// @Summary Request a payout
// @Description Creates a pending withdrawal against the withdrawable balance
// @Tags Payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.RequestPayoutRequest true "Payout amount"
// @Success 201 {object} models.PayoutRequest "Created payout request"
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 409 {object} models.ErrorResponse "Affiliate not verified"
// @Failure 422 {object} models.ErrorResponse "Insufficient balance"
// @Router /affiliates/me/payouts [post]
func (h *AffiliateHandler) RequestPayout(c echo.Context) error {
	affiliateID, ok := middleware.AffiliateID(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing affiliate identity")
	}

	var req models.RequestPayoutRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	request, err := h.payoutService.Request(c.Request().Context(), affiliateID, req.Amount)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordPayoutRequested()
	}

	return c.JSON(http.StatusCreated, request)
}

// ListPayouts godoc
// @Summary List own payout requests
// @Tags Payouts
// @Produce json
// @Security BearerAuth
// @Param page query integer false "Page number" default(1)
// @Param limit query integer false "Results per page" default(20)
// @Success 200 {object} models.PayoutListResponse "Payout requests"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /affiliates/me/payouts [get]
func (h *AffiliateHandler) ListPayouts(c echo.Context) error {
	affiliateID, ok := middleware.AffiliateID(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing affiliate identity")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	list, err := h.payoutService.ListByAffiliate(c.Request().Context(), affiliateID, page, limit)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, list)
}

// ListCommissions godoc
// @Summary List own referral commissions
// @Tags Commissions
// @Produce json
// @Security BearerAuth
// @Param page query integer false "Page number" default(1)
// @Param limit query integer false "Results per page" default(20)
// @Success 200 {object} map[string]interface{} "Commissions"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /affiliates/me/commissions [get]
func (h *AffiliateHandler) ListCommissions(c echo.Context) error {
	affiliateID, ok := middleware.AffiliateID(c)
	if !ok {
		return errors.UnauthorizedError(c, "missing affiliate identity")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	commissions, total, err := h.commissionService.ListByAffiliate(c.Request().Context(), affiliateID, page, limit)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	page, limit = models.NormalizePage(page, limit)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":       commissions,
		"pagination": models.NewPaginationInfo(page, limit, total),
	})
}
