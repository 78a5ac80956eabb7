package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ActorIDKey is the gin context key holding the acting user's ID
const ActorIDKey = "actorID"

// ActorHeader carries the acting user's ID. Authentication is handled outside
// this service; the upstream layer is trusted to set the header.
const ActorHeader = "X-Actor-ID"

// ActorMiddleware extracts the acting user from the request and stores it in
// the context for handlers and audit attribution.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ActorHeader)
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing " + ActorHeader + " header"})
			c.Abort()
			return
		}

		actorID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid " + ActorHeader + " header"})
			c.Abort()
			return
		}

		c.Set(ActorIDKey, actorID)
		c.Next()
	}
}

// ActorFrom returns the acting user's ID stored by ActorMiddleware.
func ActorFrom(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ActorIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
