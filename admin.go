// admin.go - session-protected metrics endpoints for the site owner
package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/metrics"
)

const (
	adminCookie     = "folio_admin"
	adminSessionTTL = 24 * 60 * 60 // seconds
)

type adminAuth struct {
	username     string
	passwordHash []byte
	cookies      *securecookie.SecureCookie
	secure       bool
}

func newAdminAuth(cfg config.Admin, secure bool) (*adminAuth, error) {
	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, fmt.Errorf("admin: ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
	}
	if len(cfg.HashKey) < 32 {
		return nil, errors.New("admin: SESSION_HASH_KEY must be at least 32 bytes")
	}
	var block []byte
	switch len(cfg.BlockKey) {
	case 0:
	case 16, 24, 32:
		block = []byte(cfg.BlockKey)
	default:
		return nil, errors.New("admin: SESSION_BLOCK_KEY must be 16, 24 or 32 bytes")
	}

	sc := securecookie.New([]byte(cfg.HashKey), block)
	sc.MaxAge(adminSessionTTL)
	return &adminAuth{
		username:     cfg.Username,
		passwordHash: []byte(cfg.PasswordHash),
		cookies:      sc,
		secure:       secure,
	}, nil
}

func (a *adminAuth) check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	return userOK && passOK
}

// Middleware to check admin authentication
func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(adminCookie)
		var user string
		if err == nil {
			err = a.cookies.Decode(adminCookie, raw, &user)
		}
		if err != nil || subtle.ConstantTimeCompare([]byte(user), []byte(a.username)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (s *server) setupAdminRoutes(r *gin.Engine) {
	r.POST("/admin/login", func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		var ipHash string
		if s.metrics != nil {
			ipHash = s.metrics.HashIP(c.ClientIP())
		}
		if !s.admin.check(req.Username, req.Password) {
			s.log.Warn("admin.login_failed", "ip_hash", ipHash)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		value, err := s.admin.cookies.Encode(adminCookie, s.admin.username)
		if err != nil {
			s.log.Error("admin.session_encode_failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
			return
		}
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookie, value, adminSessionTTL, "/admin", "", s.admin.secure, true)
		s.log.Info("admin.login", "ip_hash", ipHash)
		c.JSON(http.StatusOK, gin.H{"message": "Logged in"})
	})

	r.POST("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", s.admin.secure, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})

	adminGroup := r.Group("/admin")
	adminGroup.Use(s.admin.middleware())

	adminGroup.GET("/api/stats", func(c *gin.Context) {
		if s.metrics == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Metrics are disabled"})
			return
		}
		sum, err := s.metrics.Summary(c.Request.Context())
		if err != nil {
			s.log.Error("admin.summary_failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load statistics"})
			return
		}
		c.JSON(http.StatusOK, sum)
	})

	adminGroup.POST("/api/cleanup", func(c *gin.Context) {
		if s.metrics == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Metrics are disabled"})
			return
		}
		n, err := s.metrics.Cleanup(c.Request.Context(), metrics.Retention)
		if err != nil {
			s.log.Error("admin.cleanup_failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Cleanup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": n})
	})
}
