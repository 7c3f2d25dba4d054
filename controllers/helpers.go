// controllers/helpers.go
package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/config"
	"orderdesk-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// parseID reads the :id path parameter. A malformed id is answered as a
// missing record.
func parseID(c *gin.Context, resource string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.RespondWithError(c, http.StatusNotFound, resource+" not found")
		return 0, false
	}
	return uint(id), true
}

// respondError maps service errors onto HTTP responses. Anything that is
// not a validation or not-found error is logged and answered with a
// generic 500 message.
func respondError(c *gin.Context, logger zerolog.Logger, err error, message string) {
	if verr, ok := apperrors.AsValidation(err); ok {
		utils.RespondWithFieldErrors(c, http.StatusBadRequest, verr.Fields)
		return
	}

	var nf *apperrors.NotFoundError
	if errors.As(err, &nf) {
		utils.RespondWithError(c, http.StatusNotFound, nf.Resource+" not found")
		return
	}

	l := config.RequestLogger(c, logger)
	l.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg(message)
	utils.RespondWithError(c, http.StatusInternalServerError, message)
}
