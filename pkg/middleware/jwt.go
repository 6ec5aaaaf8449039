package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/qutab/affiliate-ledger/pkg/auth"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

// JWT middleware validates the bearer token and puts the claims on the
// request context under "affiliate_id", "actor_name" and "role".
func JWT(secret string, blacklist *auth.TokenBlacklist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "unauthorized",
					Message: "Authentication required",
				})
			}

			token := strings.TrimPrefix(header, "Bearer ")
			claims, err := auth.ValidateJWTWithBlacklist(c.Request().Context(), token, secret, blacklist)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired token",
				})
			}

			c.Set("affiliate_id", claims.AffiliateID)
			c.Set("actor_name", claims.Name)
			c.Set("role", claims.Role)

			return next(c)
		}
	}
}

// RequireAdmin ensures the token carries a back-office role
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error:   "unauthorized",
					Message: "Authentication required",
				})
			}

			if role != auth.RoleAdmin && role != auth.RoleFinance {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{
					Error:   "forbidden",
					Message: "Admin access required",
				})
			}

			return next(c)
		}
	}
}

// AffiliateID extracts the authenticated affiliate's ID from the context
func AffiliateID(c echo.Context) (uint, bool) {
	id, ok := c.Get("affiliate_id").(uint)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// ActorName extracts the authenticated actor's display name from the context
func ActorName(c echo.Context) string {
	if name, ok := c.Get("actor_name").(string); ok {
		return name
	}
	return ""
}
