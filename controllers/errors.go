package controllers

import (
	"net/http"

	"b2b-storefront/auth"
	"b2b-storefront/errs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps an error code onto the HTTP status returned to clients.
func statusFor(code errs.Code) int {
	switch code {
	case errs.InvalidArgument:
		return http.StatusBadRequest
	case errs.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case errs.PermissionDenied:
		return http.StatusForbidden
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": message}. Internal causes are logged
// and never sent.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	code := errs.CodeOf(err)
	if code == errs.Internal {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(code), gin.H{"error": errs.MessageOf(err), "code": code.String()})
}

// actorOrAbort reads the caller from the request context, where
// AuthMiddleware puts it, and answers 401 when there is none.
func actorOrAbort(c *gin.Context) (auth.Actor, bool) {
	actor, ok := auth.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errs.ErrMsgActorRequired, "code": errs.Unauthenticated.String()})
	}
	return actor, ok
}
