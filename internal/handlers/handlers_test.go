package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "classfit/internal/errors"
)

// Validation failures must be rejected at the edge, before any service
// or storage is touched, so a handler wired to nothing is enough here.
func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(nil)

	r := gin.New()
	api := r.Group("/api")
	{
		bookings := api.Group("/bookings")
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("", h.ListBookings)
			bookings.PATCH("/cancel", h.CancelBooking)
			bookings.PATCH("/checkin", h.CheckInBooking)
			bookings.PATCH("/noshow", h.NoShowBooking)
		}

		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.CreateSession)
		}
	}
	return r
}

func TestCreateBookingRejectsInvalidBody(t *testing.T) {
	r := setupRouter()

	cases := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing session_id", `{"member_id": "b3f1a8c2-9f64-4c1a-8a51-0f4b5977f111"}`},
		{"missing member_id", `{"session_id": "b3f1a8c2-9f64-4c1a-8a51-0f4b5977f111"}`},
		{"empty object", `{}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest("POST", "/api/bookings", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestBookingActionsRequireBookingID(t *testing.T) {
	r := setupRouter()

	for _, path := range []string{"/api/bookings/cancel", "/api/bookings/checkin", "/api/bookings/noshow"} {
		t.Run(path, func(t *testing.T) {
			req, _ := http.NewRequest("PATCH", path, bytes.NewBufferString(`{}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateSessionRequiresClassAndTimes(t *testing.T) {
	r := setupRouter()

	req, _ := http.NewRequest("POST", "/api/sessions", bytes.NewBufferString(`{"max_capacity": 10}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBookingsRequiresMemberID(t *testing.T) {
	r := setupRouter()

	req, _ := http.NewRequest("GET", "/api/bookings?memberId=nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "memberId")
}

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{apperrors.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("booking: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{apperrors.ErrSessionNotBookable, http.StatusConflict},
		{apperrors.ErrWaitlistFull, http.StatusConflict},
		{apperrors.ErrSessionHalted, http.StatusConflict},
		{apperrors.ErrNoPaymentSource, http.StatusPaymentRequired},
		{apperrors.ErrBalanceNotUsable, http.StatusPaymentRequired},
		{apperrors.ErrBookingTimeout, http.StatusServiceUnavailable},
		{&apperrors.InvalidTransitionError{From: "CHECKED_IN", To: "CONFIRMED"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("something else broke"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}
