package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mt5-gateway/src/helpers"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// -----------------------------------------------------------------------------

// bindingError turns a gin binding failure into a precise validation error.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fieldMessage(fe))
		}
		return helpers.NewValidationError("invalid request: %s", strings.Join(parts, "; "))
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return helpers.NewValidationError("invalid request: %q is not a number", numErr.Num)
	}
	return helpers.NewValidationError("invalid request body")
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s check", field, fe.Tag())
	}
}

// -----------------------------------------------------------------------------

func ticketParam(c *gin.Context) (int64, error) {
	ticket, err := strconv.ParseInt(c.Param("ticket"), 10, 64)
	if err != nil || ticket <= 0 {
		return 0, helpers.NewValidationError("ticket must be a positive integer")
	}
	return ticket, nil
}

func intQuery(c *gin.Context, name string, def, min, max int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, helpers.NewValidationError("%s must be an integer between %d and %d", name, min, max)
	}
	return v, nil
}

func success(c *gin.Context, body gin.H) {
	body["success"] = true
	c.JSON(http.StatusOK, body)
}
