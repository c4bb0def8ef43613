package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/rmitchellscott/binder/internal/config"
	"github.com/rmitchellscott/binder/internal/database"
	"github.com/rmitchellscott/binder/internal/i18n"
	"github.com/rmitchellscott/binder/internal/logging"
)

const cookieName = "auth_token"

var (
	jwtSecret     []byte
	jwtSecretOnce sync.Once
)

var (
	loginLimiters sync.Map
	loginRate     = rate.Every(time.Minute / 5) // 5 requests per minute
)

func getLoginLimiter(ip string) *rate.Limiter {
	val, ok := loginLimiters.Load(ip)
	if ok {
		return val.(*rate.Limiter)
	}
	limiter, _ := loginLimiters.LoadOrStore(ip, rate.NewLimiter(loginRate, 5))
	return limiter.(*rate.Limiter)
}

func allowInsecure() bool {
	return config.GetBool("ALLOW_INSECURE", false)
}

// signingKey resolves JWT_SECRET on first use, after .env has been loaded.
func signingKey() []byte {
	jwtSecretOnce.Do(func() {
		// Generate a random JWT secret if not provided
		if secret := config.Get("JWT_SECRET", ""); secret != "" {
			jwtSecret = []byte(secret)
		} else {
			logging.Logf("[WARNING] [AUTH] JWT_SECRET not set, sessions will not survive a restart")
			jwtSecret = make([]byte, 32)
			rand.Read(jwtSecret)
		}
	})
	return jwtSecret
}

func credentials() (string, string) {
	return config.Get("AUTH_USERNAME", ""), config.Get("AUTH_PASSWORD", "")
}

// WebAuthEnabled reports whether username/password login is configured.
func WebAuthEnabled() bool {
	u, p := credentials()
	return u != "" && p != ""
}

// Enabled reports whether any form of authentication is configured. With
// neither credentials nor API_KEY set the service is open, like the
// original single-endpoint merger.
func Enabled() bool {
	return WebAuthEnabled() || config.Get("API_KEY", "") != ""
}

func sessionTTL() time.Duration {
	return config.GetDuration("AUTH_SESSION_TTL", 24*time.Hour)
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=255"`
	Password string `json:"password" binding:"required,max=1024"`
}

func LoginHandler(c *gin.Context) {
	// rate limit by client IP
	ip := c.ClientIP()
	if !getLoginLimiter(ip).Allow() {
		i18n.Abort(c, http.StatusTooManyRequests, "backend.auth.too_many_attempts", nil)
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		i18n.Abort(c, http.StatusBadRequest, "backend.auth.invalid_request", nil)
		return
	}

	envUsername, envPassword := credentials()
	if envUsername == "" || envPassword == "" {
		i18n.Abort(c, http.StatusNotFound, "backend.auth.not_configured", nil)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(envUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(envPassword)) == 1
	recordAttempt(c, req.Username, userOK && passOK)
	if !userOK || !passOK {
		logging.Logf("[WARNING] [AUTH] Failed login for %q from %s", req.Username, ip)
		i18n.Abort(c, http.StatusUnauthorized, "backend.auth.invalid_credentials", nil)
		return
	}

	tokenString, err := issueToken(req.Username)
	if err != nil {
		i18n.Abort(c, http.StatusInternalServerError, "backend.auth.token_error", nil)
		return
	}
	setCookie(c, tokenString, int(sessionTTL().Seconds()))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func recordAttempt(c *gin.Context, username string, success bool) {
	if !database.Enabled() {
		return
	}
	if err := database.RecordLoginAttempt(c.ClientIP(), username, c.Request.UserAgent(), success); err != nil {
		logging.Logf("[WARNING] [AUTH] Failed to record login attempt: %v", err)
	}
}

func issueToken(username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL())),
	})
	return token.SignedString(signingKey())
}

func setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cookieName, value, maxAge, "/", "", !allowInsecure(), true)
}

func LogoutHandler(c *gin.Context) {
	setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// isValidApiKey checks if the request has a valid API key
func isValidApiKey(c *gin.Context) bool {
	envApiKey := config.Get("API_KEY", "")
	if envApiKey == "" {
		return false
	}

	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(envApiKey)) == 1 {
			return true
		}
	}

	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(envApiKey)) == 1 {
			return true
		}
	}
	return false
}

func validCookie(c *gin.Context) bool {
	tokenString, err := c.Cookie(cookieName)
	if err != nil || tokenString == "" {
		return false
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil && token.Valid
}

// ApiKeyOrJWTMiddleware checks for either valid API key or valid JWT. It is
// a no-op when authentication is not configured.
func ApiKeyOrJWTMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Enabled() || isValidApiKey(c) {
			c.Next()
			return
		}

		if _, err := c.Cookie(cookieName); err != nil {
			i18n.Abort(c, http.StatusUnauthorized, "backend.auth.no_token", nil)
			return
		}
		if !validCookie(c) {
			i18n.Abort(c, http.StatusUnauthorized, "backend.auth.invalid_token", nil)
			return
		}
		c.Next()
	}
}

func CheckAuthHandler(c *gin.Context) {
	authenticated := !Enabled() || isValidApiKey(c) || validCookie(c)
	c.JSON(http.StatusOK, gin.H{
		"authenticated": authenticated,
		"authRequired":  Enabled(),
		"webAuth":       WebAuthEnabled(),
	})
}
