package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionCookie = "cart_session"
	sessionHeader = "X-Cart-Session"
	sessionMaxAge = 30 * 24 * 60 * 60
)

// session returns the caller's cart session, creating one on first access.
// The header wins over the cookie so non-browser clients can carry it.
func session(c *gin.Context) string {
	if id := c.GetHeader(sessionHeader); id != "" {
		return id
	}
	if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
		return id
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, id, sessionMaxAge, "/", "", false, true)
	c.Header(sessionHeader, id)
	return id
}
