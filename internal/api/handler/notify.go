package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/showtrack/internal/api/models"
	"github.com/jon4hz/showtrack/internal/notify/webpush"
)

// ServeWS upgrades GET /ws?account=<id> to a websocket session of the account.
func (h *Handler) ServeWS(c *gin.Context) {
	accountID, err := parseUintParam(c.Query("account"))
	if err != nil || accountID == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "account query parameter is required"})
		return
	}
	if err := h.engine.Hub().ServeWS(c.Writer, c.Request, accountID); err != nil {
		// the upgrader already answered the request
		log.Debug("Failed to upgrade websocket", "accountID", accountID, "error", err)
	}
}

// GetVAPIDKey returns the VAPID public key for client subscription.
func (h *Handler) GetVAPIDKey(c *gin.Context) {
	wp := h.engine.WebPush()
	if wp == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "webpush is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": wp.GetPublicKey()})
}

// Subscribe registers a push subscription for an account.
func (h *Handler) Subscribe(c *gin.Context) {
	wp := h.engine.WebPush()
	if wp == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "webpush is not configured"})
		return
	}
	ids, ok := uintParams(c, "account")
	if !ok {
		return
	}

	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid subscription data"})
		return
	}

	sub := &webpush.Subscription{Endpoint: req.Endpoint, UserAgent: c.GetHeader("User-Agent")}
	sub.Keys.P256dh = req.Keys.P256dh
	sub.Keys.Auth = req.Keys.Auth
	if err := wp.Subscribe(ids[0], sub); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscriptionId": sub.ID,
		"count":          wp.GetSubscriptionCount(ids[0]),
	})
}

// Unsubscribe removes one push subscription of an account.
func (h *Handler) Unsubscribe(c *gin.Context) {
	wp := h.engine.WebPush()
	if wp == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "webpush is not configured"})
		return
	}
	ids, ok := uintParams(c, "account")
	if !ok {
		return
	}
	wp.UnsubscribeByID(ids[0], c.Param("id"))
	c.Status(http.StatusNoContent)
}
