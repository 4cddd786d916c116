package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"classfit/internal/middleware"
	"classfit/internal/models"
)

// GrantBalance - POST /api/balances/grant
// Issues a credit balance from a pack after a purchase or staff grant.
func (h *Handlers) GrantBalance(c *gin.Context) {
	var req models.GrantBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	balance, err := h.services.Credits.Grant(c.Request.Context(), orgID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, balance)
}

// ListBalances - GET /api/balances?memberId=...
func (h *Handlers) ListBalances(c *gin.Context) {
	memberID, err := uuid.Parse(c.Query("memberId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "memberId query parameter must be a UUID"})
		return
	}

	orgID := middleware.OrgIDFromGin(c)
	balances, err := h.services.Credits.ListByMember(c.Request.Context(), orgID, memberID)
	if err != nil {
		respondError(c, err)
		return
	}
	if balances == nil {
		balances = []*models.CreditBalance{}
	}

	c.JSON(http.StatusOK, balances)
}
