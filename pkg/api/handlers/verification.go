package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/qutab/affiliate-ledger/pkg/api/errors"
	"github.com/qutab/affiliate-ledger/pkg/metrics"
	"github.com/qutab/affiliate-ledger/pkg/middleware"
	"github.com/qutab/affiliate-ledger/pkg/models"
	"github.com/qutab/affiliate-ledger/pkg/registry"
)

// VerificationHandler handles the admin verification review queue
type VerificationHandler struct {
	registryService *registry.Service
	metrics         *metrics.Metrics
	validator       *validator.Validate
}

// NewVerificationHandler creates a new verification handler
func NewVerificationHandler(registryService *registry.Service, m *metrics.Metrics) *VerificationHandler {
	return &VerificationHandler{
		registryService: registryService,
		metrics:         m,
		validator:       validator.New(),
	}
}

// ListPending godoc
// @Summary List affiliates awaiting verification review
// @Description Oldest submissions first
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query integer false "Page number" default(1)
// @Param limit query integer false "Results per page" default(20)
// @Success 200 {object} models.AffiliateListResponse "Pending affiliates"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /admin/verifications [get]
func (h *VerificationHandler) ListPending(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	list, err := h.registryService.ListPendingVerifications(c.Request().Context(), page, limit)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, list)
}

// Review godoc
// @Summary Approve or reject a pending verification
// @Description Rejection requires a reviewer note explaining what to fix
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Affiliate ID"
// @Param request body models.ReviewVerificationRequest true "Review decision"
// @Success 200 {object} models.Affiliate "Updated affiliate"
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 404 {object} models.ErrorResponse "Affiliate not found"
// @Failure 409 {object} models.ErrorResponse "Not pending review"
// @Router /admin/verifications/{id} [post]
func (h *VerificationHandler) Review(c echo.Context) error {
	affiliateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	var req models.ReviewVerificationRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	actor := middleware.ActorName(c)
	affiliate, err := h.registryService.ReviewVerification(c.Request().Context(), uint(affiliateID), req.Decision, req.ReviewerNote, actor)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordVerificationReview(req.Decision)
	}

	return c.JSON(http.StatusOK, affiliate)
}

// Check godoc
// @Summary Compare KTP name against bank account holder
// @Description Advisory signal only; never blocks automatically
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Affiliate ID"
// @Success 200 {object} models.VerificationCheckResponse "Name check result"
// @Failure 404 {object} models.ErrorResponse "Affiliate not found"
// @Router /admin/verifications/{id}/check [get]
func (h *VerificationHandler) Check(c echo.Context) error {
	affiliateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	check, err := h.registryService.VerificationCheck(c.Request().Context(), uint(affiliateID))
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, check)
}

// Deactivate godoc
// @Summary Deactivate an affiliate
// @Description Soft-deletes the account; ledger history is preserved
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Affiliate ID"
// @Success 200 {object} models.SuccessResponse "Deactivated"
// @Failure 404 {object} models.ErrorResponse "Affiliate not found"
// @Router /admin/affiliates/{id} [delete]
func (h *VerificationHandler) Deactivate(c echo.Context) error {
	affiliateID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	actor := middleware.ActorName(c)
	if err := h.registryService.Deactivate(c.Request().Context(), uint(affiliateID), actor); err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Affiliate deactivated",
	})
}
