package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"studio-booking-backend/internal/booking"
)

// Identity headers set by the authenticating proxy in front of this service.
const (
	headerActorID      = "X-Actor-Id"
	headerActorRole    = "X-Actor-Role"
	headerActorName    = "X-Actor-Name"
	headerActorEmail   = "X-Actor-Email"
	headerActorStudios = "X-Actor-Studios"
)

const actorKey = "actor"

var (
	errMissingIdentity = errors.New("missing " + headerActorID)
	errBadStudioScope  = errors.New("malformed " + headerActorStudios)
)

// RequireActor rejects requests without a known identity with 401 and stores
// the caller's booking.Actor on the context.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := actorFromHeaders(c.Request.Header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": kindUnauthorized, "message": err.Error()})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) booking.Actor {
	actor, _ := c.MustGet(actorKey).(booking.Actor)
	return actor
}

func actorFromHeaders(h http.Header) (booking.Actor, error) {
	id := strings.TrimSpace(h.Get(headerActorID))
	if id == "" {
		return booking.Actor{}, errMissingIdentity
	}
	role, err := booking.ParseRole(h.Get(headerActorRole))
	if err != nil {
		return booking.Actor{}, err
	}

	actor := booking.Actor{
		ID:    id,
		Role:  role,
		Name:  strings.TrimSpace(h.Get(headerActorName)),
		Email: strings.TrimSpace(h.Get(headerActorEmail)),
	}
	for _, raw := range strings.Split(h.Get(headerActorStudios), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		studioID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return booking.Actor{}, errBadStudioScope
		}
		actor.Studios = append(actor.Studios, studioID)
	}
	return actor, nil
}
