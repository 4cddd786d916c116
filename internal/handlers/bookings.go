package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"classfit/internal/middleware"
	"classfit/internal/models"
)

// CreateBooking - POST /api/bookings
// Books a member into a session, confirmed or waitlisted.
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	booking, created, err := h.services.Bookings.Request(c.Request.Context(), orgID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	// An idempotent replay returns the existing booking with 200.
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, booking)
}

// CancelBooking - PATCH /api/bookings/cancel
func (h *Handlers) CancelBooking(c *gin.Context) {
	var req models.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	booking, err := h.services.Bookings.Cancel(c.Request.Context(), orgID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CheckInBooking - PATCH /api/bookings/checkin
func (h *Handlers) CheckInBooking(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	booking, err := h.services.Bookings.CheckIn(c.Request.Context(), orgID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// NoShowBooking - PATCH /api/bookings/noshow
func (h *Handlers) NoShowBooking(c *gin.Context) {
	var req models.NoShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	booking, err := h.services.Bookings.MarkNoShow(c.Request.Context(), orgID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListBookings - GET /api/bookings?memberId=...
func (h *Handlers) ListBookings(c *gin.Context) {
	memberID, err := uuid.Parse(c.Query("memberId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "memberId query parameter must be a UUID"})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	bookings, err := h.services.Bookings.ListByMember(c.Request.Context(), orgID, memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}

	c.JSON(http.StatusOK, bookings)
}
