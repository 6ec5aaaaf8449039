package handlers

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/qutab/affiliate-ledger/pkg/api/errors"
	"github.com/qutab/affiliate-ledger/pkg/commission"
	"github.com/qutab/affiliate-ledger/pkg/registry"
)

// AccrueCommissionRequest records a referral commission for an order
type AccrueCommissionRequest struct {
	AffiliateCode string `json:"affiliate_code" validate:"required,max=10"`
	OrderRef      string `json:"order_ref" validate:"required,max=100"`
	OrderAmount   int64  `json:"order_amount" validate:"required,gt=0"`
	RatePercent   int64  `json:"rate_percent" validate:"required,gt=0,lte=100"`
}

// VoidCommissionRequest cancels a pending commission
type VoidCommissionRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CommissionHandler handles commission accrual from the order pipeline
type CommissionHandler struct {
	commissionService *commission.Service
	registryService   *registry.Service
	validator         *validator.Validate
}

// NewCommissionHandler creates a new commission handler
func NewCommissionHandler(commissionService *commission.Service, registryService *registry.Service) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionService,
		registryService:   registryService,
		validator:         validator.New(),
	}
}

// Accrue godoc
// @Summary Record a referral commission for an order
// @Description Idempotent per order reference. The commission becomes a
// @Description ledger credit after the holding period.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AccrueCommissionRequest true "Order and rate"
// @Success 201 {object} models.Commission "Accrued commission"
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 404 {object} models.ErrorResponse "Affiliate code not found"
// @Router /admin/commissions [post]
func (h *CommissionHandler) Accrue(c echo.Context) error {
	var req AccrueCommissionRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	affiliate, err := h.registryService.GetByCode(c.Request().Context(), req.AffiliateCode)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	accrued, err := h.commissionService.Accrue(c.Request().Context(), affiliate.ID, req.OrderRef, req.OrderAmount, req.RatePercent)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusCreated, accrued)
}

// Void godoc
// @Summary Void a pending commission
// @Description Used when the underlying order is cancelled or refunded
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderRef path string true "Order reference"
// @Param request body VoidCommissionRequest true "Void reason"
// @Success 200 {object} models.Commission "Voided commission"
// @Failure 404 {object} models.ErrorResponse "Commission not found"
// @Failure 409 {object} models.ErrorResponse "Commission already credited"
// @Router /admin/commissions/{orderRef}/void [post]
func (h *CommissionHandler) Void(c echo.Context) error {
	orderRef := c.Param("orderRef")

	var req VoidCommissionRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	voided, err := h.commissionService.Void(c.Request().Context(), orderRef, req.Reason)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, voided)
}

// Mature godoc
// @Summary Run commission maturation now
// @Description Manual trigger for the scheduled maturation job
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Number of commissions credited"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /admin/commissions/mature [post]
func (h *CommissionHandler) Mature(c echo.Context) error {
	credited, err := h.commissionService.Mature(c.Request().Context(), time.Now())
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"credited": credited,
	})
}
