package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"studio-booking-backend/config"
	"studio-booking-backend/internal/mw"
)

// RouterOptions overrides router defaults.
type RouterOptions struct {
	// RateLimit replaces the in-process per-IP limiter, e.g. with a Redis one.
	RateLimit gin.HandlerFunc
	// Cache backs the studio catalog response cache. It is flushed after every
	// successful booking write.
	Cache *cache.Cache
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, opts RouterOptions) *gin.Engine {
	if err := RegisterValidators(); err != nil {
		h.log.Warn("custom validators not registered", "err", err)
	}

	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.AccessLog(h.log))

	rateLimiter := opts.RateLimit
	if rateLimiter == nil {
		perSec, burst := cfg.RateLimitPerSec, cfg.RateLimitBurst
		if perSec <= 0 || burst <= 0 {
			perSec, burst = 10, 5
		}
		rateLimiter = mw.RateLimiter(rate.Limit(perSec), burst)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	cacheStore := opts.Cache
	if cacheStore == nil {
		cacheStore = cache.New(ttl, 2*ttl)
	}
	caching := mw.Cache(cacheStore, ttl)

	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/studios", caching, h.ListStudios)
		api.GET("/studios/:studio_id", caching, h.GetStudio)
		api.GET("/studios/:studio_id/units/:unit/availability", h.Availability)
		api.GET("/studios/:studio_id/units/:unit/slots", h.Slots)
		api.GET("/studios/:studio_id/units/:unit/check", h.Check)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		authed := api.Group("", RequireActor(), mw.FlushOnWrite(cacheStore))
		authed.POST("/bookings", h.CreateBooking)
		authed.PUT("/bookings/:id/cancel", h.CancelBooking)
		authed.GET("/me/bookings", h.MyBookings)
		authed.GET("/admin/bookings", h.AdminBookings)
	}

	return r
}
