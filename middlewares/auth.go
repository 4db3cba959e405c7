package middlewares

import (
	"net/http"
	"strings"

	"b2b-storefront/auth"
	"b2b-storefront/errs"
	"b2b-storefront/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ActorKey is the gin context key holding the authenticated auth.Actor.
const ActorKey = "actor"

// AuthMiddleware requires a valid bearer token and stores the caller on both
// the gin context and the request context.
func AuthMiddleware(secret string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrMsgMissingBearerToken})
			return
		}

		actor, err := utils.ParseToken(secret, strings.TrimSpace(token))
		if err != nil {
			logger.Debug("rejected token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrMsgInvalidToken})
			return
		}

		c.Set(ActorKey, actor)
		c.Request = c.Request.WithContext(auth.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

// CurrentActor returns the actor stored by AuthMiddleware.
func CurrentActor(c *gin.Context) (auth.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return auth.Actor{}, false
	}
	a, ok := v.(auth.Actor)
	return a, ok && a.Authenticated()
}
