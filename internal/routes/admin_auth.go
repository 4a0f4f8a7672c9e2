// Staff authentication middleware
// Accepts an admin token from the Authorization header, the auth cookie or
// a one time ?token= query parameter which is then moved into the cookie.
// If valid, sets the claim in the context
// If invalid, aborts with 401 Unauthorized
package routes

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"table-call/internal/jwt"
)

const AUTH_COOKIE_NAME = "admin_token"

const adminClaimKey = "adminClaim"

var ErrClaimNotFound = errors.New("admin claim not found in context")

// Set authentication cookie
// The cookie is set to expire when the token expires
func setAuthCookie(c *gin.Context, token string, expires time.Time) {
	secure := c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
	c.SetCookie(
		AUTH_COOKIE_NAME,
		token,
		int(time.Until(expires).Seconds()),
		"/admin",
		"",
		secure,
		true,
	)
}

func requestToken(c *gin.Context) (token string, fromQuery bool) {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), false
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	if token, err := c.Cookie(AUTH_COOKIE_NAME); err == nil {
		return token, false
	}
	return "", false
}

// GetAdmin returns the verified claim of the request.
func GetAdmin(c *gin.Context) (*jwt.AdminClaim, error) {
	v, exists := c.Get(adminClaimKey)
	if !exists {
		return nil, ErrClaimNotFound
	}
	claim, ok := v.(*jwt.AdminClaim)
	if !ok {
		return nil, ErrClaimNotFound
	}
	return claim, nil
}

// AdminAuth requires a valid admin token. Without a signer every request is
// let through.
func (s *Server) AdminAuth() gin.HandlerFunc {
	if s.Signer == nil {
		slog.Warn("No secret configured, admin routes are not authenticated")
		return func(c *gin.Context) {
			c.Set(adminClaimKey, &jwt.AdminClaim{})
			c.Next()
		}
	}

	return func(c *gin.Context) {
		token, fromQuery := requestToken(c)
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		claim, err := s.Signer.Verify(token)
		if err != nil {
			slog.Warn("AdminAuth: Invalid admin token", "error", err)
			AbortWithError(c, err)
			return
		}
		if fromQuery {
			setAuthCookie(c, token, claim.ExpiresAt.Time)
		}

		slog.Debug("AdminAuth: Authenticated", "subject", claim.Subject)
		c.Set(adminClaimKey, claim)
		c.Next()
	}
}

// requireLocation parses the :location parameter and checks that the
// claim covers it.
func requireLocation(c *gin.Context) (int, bool) {
	location, err := strconv.Atoi(c.Param("location"))
	if err != nil || location <= 0 {
		AbortWithError(c, ErrInvalidLocation)
		return 0, false
	}
	claim, err := GetAdmin(c)
	if err != nil {
		AbortWithError(c, ErrUnauthorized)
		return 0, false
	}
	if !claim.Allows(location) {
		slog.Warn("Admin not allowed on location", "subject", claim.Subject, "location", location)
		AbortWithError(c, ErrForbidden)
		return 0, false
	}
	return location, true
}
