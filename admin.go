// admin.go - operator login guarding the submission inbox
package main

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/intake"
)

const (
	adminCookie     = "admin_token"
	adminSessionTTL = 24 * time.Hour
)

type adminAuth struct {
	username string
	password string
	secret   []byte
	salt     string // for hashing client IPs in logs, new every start
	log      zerolog.Logger
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func newAdminAuth(cfg config.Admin, mode string, logger zerolog.Logger) (*adminAuth, error) {
	a := &adminAuth{
		username: cfg.Username,
		password: cfg.Password,
		secret:   []byte(cfg.JWTSecret),
		log:      logger.With().Str("component", "admin").Logger(),
	}

	salt, err := generateAdminToken()
	if err != nil {
		return nil, err
	}
	a.salt = salt

	if len(a.secret) == 0 {
		// sessions won't survive a restart without ADMIN_JWT_SECRET
		secret, err := generateAdminToken()
		if err != nil {
			return nil, err
		}
		a.secret = []byte(secret)
	}

	// Default credentials for development, only with GIN_MODE=debug set explicitly
	if a.username == "" {
		a.username = "admin"
	}
	if a.password == "" && mode == gin.DebugMode {
		a.password = "admin123"
		a.log.Warn().Msg("using default admin password, set ADMIN_PASSWORD")
	}
	if a.password == "" {
		a.log.Warn().Msg("ADMIN_PASSWORD not set, submission inbox is locked")
	}
	return a, nil
}

func generateAdminToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("unable to generate admin token - %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Hash IP address so logs never hold the raw value (consistent per IP for one run)
func (a *adminAuth) hashIP(ip string) string {
	hash := sha256.New()
	hash.Write([]byte(ip + a.salt))
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

func (a *adminAuth) checkCredentials(username, password string) bool {
	if a.password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passOK
}

func (a *adminAuth) issueToken(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   a.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(adminSessionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *adminAuth) verifyToken(token string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if claims.Subject != a.username {
		return errors.New("token subject mismatch")
	}
	return nil
}

func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	token, _ := c.Cookie(adminCookie)
	return token
}

// Middleware to check admin authentication
func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" || a.verifyToken(token) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, intake.Result{Message: "Admin login required"})
			return
		}
		c.Next()
	}
}

// Setup all admin routes
func setupAdminRoutes(r *gin.Engine, s *server) {
	a := s.admin

	r.POST("/admin/login", func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBind(&req); err != nil || !a.checkCredentials(req.Username, req.Password) {
			a.log.Warn().Str("client", a.hashIP(c.ClientIP())).Msg("failed admin login attempt")
			c.JSON(http.StatusUnauthorized, intake.Result{Message: "Invalid credentials"})
			return
		}

		token, err := a.issueToken(time.Now())
		if err != nil {
			a.log.Error().Err(err).Msg("unable to sign admin session")
			c.JSON(http.StatusInternalServerError, intake.Result{Message: "Login failed"})
			return
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookie, token, int(adminSessionTTL.Seconds()), "/", "", gin.Mode() == gin.ReleaseMode, true)
		a.log.Info().Str("client", a.hashIP(c.ClientIP())).Msg("admin login successful")
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged in", "token": token})
	})

	r.POST("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/", "", gin.Mode() == gin.ReleaseMode, true)
		a.log.Info().Str("client", a.hashIP(c.ClientIP())).Msg("admin logout")
		c.JSON(http.StatusOK, intake.Result{Success: true, Message: "Logged out"})
	})

	// Protected inbox
	inbox := r.Group("/api/submissions")
	inbox.Use(a.middleware())

	inbox.GET("", s.handleListSubmissions)

	// Export for backups
	inbox.GET("/export", func(c *gin.Context) {
		subs, err := s.intake.List(c.Request.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("unable to export submissions")
			status, res := intake.Respond(err)
			c.JSON(status, res)
			return
		}

		c.Header("Content-Disposition", "attachment; filename=submissions.json")
		a.log.Info().Int("count", len(subs)).Str("client", a.hashIP(c.ClientIP())).Msg("submissions exported")
		c.JSON(http.StatusOK, subs)
	})
}
