package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/qutab/affiliate-ledger/pkg/api/errors"
	"github.com/qutab/affiliate-ledger/pkg/audit"
	"github.com/qutab/affiliate-ledger/pkg/query"
)

// StatsHandler handles the admin dashboard read side
type StatsHandler struct {
	queryService *query.Service
	auditService *audit.Service
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(queryService *query.Service, auditService *audit.Service) *StatsHandler {
	return &StatsHandler{
		queryService: queryService,
		auditService: auditService,
	}
}

// Dashboard godoc
// @Summary Get dashboard aggregates
// @Description Payout and verification counters plus outstanding balance
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.DashboardStats "Dashboard stats"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /admin/stats [get]
func (h *StatsHandler) Dashboard(c echo.Context) error {
	stats, err := h.queryService.DashboardStats(c.Request().Context())
	if err != nil {
		return errors.HandleDomainError(c, err)
	}

	return c.JSON(http.StatusOK, stats)
}

// RecentAuditLogs godoc
// @Summary List recent audit log entries
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query integer false "Max entries" default(100)
// @Success 200 {object} map[string]interface{} "Audit logs"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /admin/audit-logs [get]
func (h *StatsHandler) RecentAuditLogs(c echo.Context) error {
	limit := 100
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}

	logs, err := h.auditService.GetRecentLogs(c.Request().Context(), limit)
	if err != nil {
		return errors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// AffiliateAuditLogs godoc
// @Summary List audit log entries for one affiliate
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path integer true "Affiliate ID"
// @Param limit query integer false "Max entries" default(50)
// @Success 200 {object} map[string]interface{} "Audit logs"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Router /admin/affiliates/{id}/audit-logs [get]
func (h *StatsHandler) AffiliateAuditLogs(c echo.Context) error {
	affiliateID := c.Param("id")
	if _, err := strconv.ParseUint(affiliateID, 10, 64); err != nil {
		return errors.ValidationError(c, err)
	}

	limit := 50
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	logs, err := h.auditService.GetLogsForResource(c.Request().Context(), "affiliate", affiliateID, limit)
	if err != nil {
		return errors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}
