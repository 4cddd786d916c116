package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"classfit/internal/middleware"
	"classfit/internal/models"
)

// CreateSession - POST /api/sessions
// Registers a scheduled session pushed in by the scheduling system.
func (h *Handlers) CreateSession(c *gin.Context) {
	var session models.ClassSession
	if err := c.ShouldBindJSON(&session); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if session.ClassID == uuid.Nil || session.StartsAt.IsZero() || session.EndsAt.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "class_id, starts_at and ends_at are required"})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	if err := h.services.Sessions.Create(c.Request.Context(), orgID, &session); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions - GET /api/sessions?query=&date=&page=&pageSize=
// Browse the schedule with availability counts.
func (h *Handlers) ListSessions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	q := models.ListSessionsQuery{
		Query:    c.Query("query"),
		Date:     c.Query("date"),
		Page:     page,
		PageSize: pageSize,
	}

	orgID := middleware.OrgIDFromGin(c)
	resp, err := h.services.Sessions.List(c.Request.Context(), orgID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		resp = models.ListSessionsResponse{}
	}

	c.JSON(http.StatusOK, resp)
}

// GetSession - GET /api/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id must be a UUID"})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	session, err := h.services.Sessions.Get(c.Request.Context(), orgID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GetSessionWaitlist - GET /api/sessions/:id/waitlist
func (h *Handlers) GetSessionWaitlist(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id must be a UUID"})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	waitlist, err := h.services.Bookings.Waitlist(c.Request.Context(), orgID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if waitlist == nil {
		waitlist = []models.Booking{}
	}

	c.JSON(http.StatusOK, waitlist)
}

// GetBookingOptions - GET /api/sessions/:id/options?memberId=...
// Previews how a member could pay for this session.
func (h *Handlers) GetBookingOptions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id must be a UUID"})
		return
	}
	memberID, err := uuid.Parse(c.Query("memberId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "memberId query parameter must be a UUID"})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	options, err := h.services.Bookings.Options(c.Request.Context(), orgID, id, memberID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, options)
}

// StartSession - PATCH /api/sessions/start
func (h *Handlers) StartSession(c *gin.Context) {
	var req models.SessionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	session, err := h.services.Sessions.Start(c.Request.Context(), orgID, req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// CompleteSession - PATCH /api/sessions/complete
func (h *Handlers) CompleteSession(c *gin.Context) {
	var req models.SessionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	session, err := h.services.Sessions.Complete(c.Request.Context(), orgID, req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// CancelSession - PATCH /api/sessions/cancel
func (h *Handlers) CancelSession(c *gin.Context) {
	var req models.SessionActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	session, err := h.services.Sessions.Cancel(c.Request.Context(), orgID, req.SessionID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}
