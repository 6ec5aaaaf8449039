package errors

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qutab/affiliate-ledger/pkg/domain"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

// HandleDomainError maps a domain error to the appropriate HTTP response.
// Internal errors are logged and masked; domain messages are safe to expose.
func HandleDomainError(c echo.Context, err error) error {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return InternalError(c, err)
	}

	switch domainErr.Code {
	case domain.ErrCodeNotFound:
		return c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: domainErr.Message,
		})
	case domain.ErrCodeValidation:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: domainErr.Message,
		})
	case domain.ErrCodeInsufficientBalance:
		return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "insufficient_balance",
			Message: domainErr.Message,
		})
	case domain.ErrCodeInvalidState:
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "invalid_state",
			Message: domainErr.Message,
		})
	case domain.ErrCodeConflict:
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "conflict",
			Message: domainErr.Message,
		})
	case domain.ErrCodeUnauthorized:
		return UnauthorizedError(c, domainErr.Message)
	case domain.ErrCodeForbidden:
		return ForbiddenError(c, domainErr.Message)
	default:
		return InternalError(c, err)
	}
}

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// UnauthorizedError returns a generic unauthorized error
func UnauthorizedError(c echo.Context, reason string) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "You are not authorized to access this resource.",
	})
}

// ForbiddenError returns a generic forbidden error
func ForbiddenError(c echo.Context, reason string) error {
	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "forbidden",
		Message: "You do not have permission to access this resource.",
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: "The requested resource was not found.",
	})
}
