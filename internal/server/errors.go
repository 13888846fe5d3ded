package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/boothworks/prizebooth/internal/prize/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware maps domain errors attached via c.Error onto
// JSON responses. Handlers never write error bodies themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: validationMessage(err),
		}
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, domain.ErrPrizeExists),
		errors.Is(err, domain.ErrQuantityBelowAwarded),
		errors.Is(err, domain.ErrVoucherAlreadyUsed),
		errors.Is(err, domain.ErrInventoryExhausted):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidTextureKey),
		errors.Is(err, domain.ErrInvalidDisplayName),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidCodes),
		errors.Is(err, domain.ErrInvalidDatetime),
		errors.Is(err, domain.ErrInvalidPrintStatus):
		return true
	default:
		return false
	}
}

func validationMessage(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "invalid_request") {
		return "invalid request"
	}
	return msg
}
