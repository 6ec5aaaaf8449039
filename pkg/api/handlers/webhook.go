package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/qutab/affiliate-ledger/pkg/api/errors"
	"github.com/qutab/affiliate-ledger/pkg/events"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

// SubscribeWebhookRequest registers a new event subscriber
type SubscribeWebhookRequest struct {
	URL         string   `json:"url" validate:"required,url"`
	Events      []string `json:"events" validate:"required,min=1"`
	Description string   `json:"description" validate:"max=255"`
}

// WebhookHandler handles webhook subscription management
type WebhookHandler struct {
	eventsService *events.Service
	validator     *validator.Validate
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(eventsService *events.Service) *WebhookHandler {
	return &WebhookHandler{
		eventsService: eventsService,
		validator:     validator.New(),
	}
}

// Subscribe godoc
// @Summary Register a webhook subscription
// @Description The signing secret is returned once; store it to verify deliveries
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SubscribeWebhookRequest true "Subscription data"
// @Success 201 {object} models.WebhookSubscription "Created subscription"
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Router /admin/webhooks [post]
func (h *WebhookHandler) Subscribe(c echo.Context) error {
	var req SubscribeWebhookRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	sub, err := h.eventsService.Subscribe(c.Request().Context(), req.URL, req.Events, req.Description)
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	// Include the secret in the creation response only
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"subscription": sub,
		"secret":       sub.Secret,
	})
}

// List godoc
// @Summary List webhook subscriptions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.WebhookSubscription "Subscriptions"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /admin/webhooks [get]
func (h *WebhookHandler) List(c echo.Context) error {
	subs, err := h.eventsService.List(c.Request().Context())
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, subs)
}

// Unsubscribe godoc
// @Summary Deactivate a webhook subscription
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Subscription ID"
// @Success 200 {object} models.SuccessResponse "Deactivated"
// @Failure 404 {object} models.ErrorResponse "Subscription not found"
// @Router /admin/webhooks/{id} [delete]
func (h *WebhookHandler) Unsubscribe(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return errors.ValidationError(c, err)
	}

	if err := h.eventsService.Unsubscribe(c.Request().Context(), uint(id)); err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Webhook subscription deactivated",
	})
}
