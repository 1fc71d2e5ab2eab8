package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ActorHeader = "X-Actor-Name"
	actorKey    = "actor"
)

// ActorMiddleware stores the display name of the person at the terminal.
// It is used for history entries only; nothing is authorized with it.
func ActorMiddleware(defaultActor string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if actor == "" {
			actor = defaultActor
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func ActorFrom(c *gin.Context) string {
	return c.GetString(actorKey)
}
