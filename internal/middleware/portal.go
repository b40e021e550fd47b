package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prhi-portal-api/internal/service"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/logger"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
)

// ContextPortalKey is the gin context key storing the caller's portal.
const ContextPortalKey = "portal"

// PortalLookup finds the portal serving a session.
type PortalLookup interface {
	Get(sessionID string) (*service.Portal, bool)
}

var errSessionExpired = appErrors.Clone(appErrors.ErrUnauthorized, "Session expired. Please sign in again.")

// Portal resolves the portal named by the token's session id. It must run after JWT.
func Portal(portals PortalLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		p, ok := portals.Get(claims.SessionID)
		if !ok {
			response.Error(c, errSessionExpired)
			c.Abort()
			return
		}
		user, ok := p.CurrentUser()
		if !ok || user.ID != claims.UserID {
			response.Error(c, errSessionExpired)
			c.Abort()
			return
		}

		AttachPortal(c, claims.SessionID, p)
		c.Next()
	}
}

// AttachPortal makes p the request's portal, so responses carry its notifications.
func AttachPortal(c *gin.Context, sessionID string, p *service.Portal) {
	c.Set(ContextPortalKey, p)
	c.Set(logger.ContextSessionKey, sessionID)
	c.Set(response.ContextNotificationsKey, p.Notifier.List)
}

// PortalFromContext returns the request's portal, or nil.
func PortalFromContext(c *gin.Context) *service.Portal {
	value, exists := c.Get(ContextPortalKey)
	if !exists {
		return nil
	}
	p, ok := value.(*service.Portal)
	if !ok {
		return nil
	}
	return p
}
