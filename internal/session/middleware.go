package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CookieName carries the session token for browsers.
const CookieName = "scamshield_session"

// TokenHeader returns a freshly issued token to API clients.
const TokenHeader = "X-Session-Token"

type contextKey string

const sessionKey contextKey = "scamshieldSession"

// FromContext retrieves the session attached by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

// Middleware resolves the visitor's session from the cookie or a bearer
// token, starting a new one when neither names a live session.
func Middleware(manager *Manager, issuer *Issuer, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := tokenFromRequest(c); err == nil {
			if id, err := issuer.Parse(token); err == nil {
				if s, ok := manager.Lookup(id); ok {
					attach(c, s)
					c.Next()
					return
				}
			}
		}

		s := manager.Create()
		token, err := issuer.Issue(s.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, token, int(issuer.TTL().Seconds()), "/", "", secureCookie, true)
		c.Header(TokenHeader, token)

		attach(c, s)
		c.Next()
	}
}

func attach(c *gin.Context, s *Session) {
	ctx := context.WithValue(c.Request.Context(), sessionKey, s)
	c.Request = c.Request.WithContext(ctx)
	c.Set(string(sessionKey), s)
}

func tokenFromRequest(c *gin.Context) (string, error) {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie, nil
	}
	return extractBearerToken(c.Request.Header.Get("Authorization"))
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}
