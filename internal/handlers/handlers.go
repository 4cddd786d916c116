package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "classfit/internal/errors"
	"classfit/internal/service"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// respondError maps the engine's typed errors onto HTTP statuses so
// clients can tell "session full, offer the waitlist" apart from "no
// payment source, offer the shop".
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrSessionNotBookable),
		errors.Is(err, apperrors.ErrWaitlistFull),
		errors.Is(err, apperrors.ErrNoSeatToRelease),
		errors.Is(err, apperrors.ErrNoWaitlistEntry),
		errors.Is(err, apperrors.ErrSessionHalted):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrNoPaymentSource),
		errors.Is(err, apperrors.ErrBalanceNotUsable):
		status = http.StatusPaymentRequired
	case errors.Is(err, apperrors.ErrBookingTimeout):
		status = http.StatusServiceUnavailable
	case apperrors.IsInvalidTransition(err):
		status = http.StatusUnprocessableEntity
	}

	c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
