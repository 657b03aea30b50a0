package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/auth"
	"github.com/dkeye/CineMatch/internal/domain"
)

const identityKey = "identity"

// RequireIdentity rejects requests without a valid bearer credential and
// stores the resolved participant on the context.
func RequireIdentity(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := gate.Authenticate(c.Request)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unauthorized request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(identityKey, p)
		c.Next()
	}
}

func identity(c *gin.Context) domain.Participant {
	return c.MustGet(identityKey).(domain.Participant)
}
