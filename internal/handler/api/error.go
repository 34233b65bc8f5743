package api

import (
	"net/http"

	"circulation-service/internal/handler/httperr"
	"circulation-service/internal/pkg/errs"
	"circulation-service/internal/usecase"

	"github.com/gin-gonic/gin"
)

// respondCirculationError maps the usecase sentinels onto HTTP statuses.
// Every command handler funnels through here so the mapping stays in one
// place.
func respondCirculationError(c *gin.Context, err error) {
	switch {
	case errs.Is(err, usecase.ErrNotFound):
		httperr.AbortWithError(c, http.StatusNotFound, err, "Not found", nil)
	case errs.Is(err, usecase.ErrForbidden):
		httperr.AbortWithError(c, http.StatusForbidden, err, "Operation not permitted", nil)
	case errs.Is(err, usecase.ErrInvalidState):
		httperr.AbortWithError(c, http.StatusConflict, err, "Operation not legal from current status", nil)
	case errs.Is(err, usecase.ErrCapacityExceeded):
		httperr.AbortWithError(c, http.StatusConflict, err, "No copy available", nil)
	case errs.Is(err, usecase.ErrDuplicateRequest):
		httperr.AbortWithError(c, http.StatusConflict, err, "Pending hold already exists for this item", nil)
	case errs.Is(err, usecase.ErrAlreadyExists):
		httperr.AbortWithError(c, http.StatusConflict, err, "Item already exists", nil)
	case errs.Is(err, usecase.ErrLimitExceeded):
		httperr.AbortWithError(c, http.StatusUnprocessableEntity, err, "Pending hold limit reached", nil)
	case errs.Is(err, usecase.ErrDomainValidation):
		httperr.AbortWithError(c, http.StatusUnprocessableEntity, err, "Validation failed", nil)
	default:
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
	}
}
