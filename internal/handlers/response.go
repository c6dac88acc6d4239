package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/diegobr89/immich/internal/apierr"
	"github.com/diegobr89/immich/internal/types"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps the domain error taxonomy onto HTTP statuses. An
// error already carrying its own status keeps it.
func RespondDomainError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		RespondError(c, apiErr.Status, apiErr.Code, err)
		return
	}
	switch {
	case errors.Is(err, types.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, types.ErrValidation):
		RespondError(c, http.StatusBadRequest, "validation_failed", err)
	case errors.Is(err, types.ErrFeatureDisabled):
		RespondError(c, http.StatusForbidden, "feature_disabled", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
