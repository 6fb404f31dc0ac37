package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint          string  `json:"endpoint" binding:"required,url"`
	P256DH            string  `json:"p256dh" binding:"required"`
	Auth              string  `json:"auth" binding:"required"`
	SubscribedStudios []int64 `json:"subscribed_studios"`
}

// PutSubscription creates or replaces a subscription and the studios it follows.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.PutSubscription(c.Request.Context(), &subscription, req.SubscribedStudios); err != nil {
		h.log.Error("failed to save subscription", "err", err)
		writeError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a subscription and its studio mappings.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		h.log.Error("failed to delete subscription", "err", err)
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription returns the studios an endpoint is subscribed to.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		badRequest(c, "endpoint is required")
		return
	}

	subscription, err := h.store.GetSubscription(c.Request.Context(), endpoint)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": kindNotFound, "message": "subscription not found"})
			return
		}
		writeError(c, err)
		return
	}

	studioIDs := make([]int64, len(subscription.Studios))
	for i, studio := range subscription.Studios {
		studioIDs[i] = studio.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_studios": studioIDs})
}
