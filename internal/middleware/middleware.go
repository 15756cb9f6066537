package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"agora_go/internal/core/config"
	"agora_go/internal/core/logger"
	"agora_go/internal/model"
	"agora_go/internal/repository"
)

const identityKey = "identity"

// LoggerMiddleware request logging middleware
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger.Info("request",
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.String("query", query),
			logger.Int("status", status),
			logger.Duration("latency", latency),
			logger.String("client_ip", c.ClientIP()),
		)
	}
}

// RecoveryMiddleware panic recovery middleware
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					logger.String("error", fmt.Sprintf("%v", err)))
				c.AbortWithStatusJSON(500, gin.H{
					"code": 500,
					"msg":  "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// TimeoutMiddleware request timeout middleware
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			c.AbortWithStatusJSON(504, gin.H{
				"code": 504,
				"msg":  "request timeout",
			})
		}
	}
}

// CORSMiddleware cross-origin middleware, driven by config
func CORSMiddleware() gin.HandlerFunc {
	cfg := config.Get()
	corsCfg := cfg.Security.CORS

	if !corsCfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := len(corsCfg.AllowedOrigins) == 0
		for _, o := range corsCfg.AllowedOrigins {
			if o == origin || o == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			if corsCfg.AllowCredentials {
				c.Header("Access-Control-Allow-Origin", origin)
			} else if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", strings.Join(corsCfg.AllowedMethods, ", "))
		c.Header("Access-Control-Allow-Headers", strings.Join(corsCfg.AllowedHeaders, ", "))
		c.Header("Access-Control-Allow-Credentials", fmt.Sprintf("%t", corsCfg.AllowCredentials))
		c.Header("Access-Control-Max-Age", fmt.Sprintf("%d", corsCfg.MaxAge))

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// UserClaims JWT claims carried by host-issued tokens
type UserClaims struct {
	UID       int64  `json:"uid"`
	Username  string `json:"username"`
	Staff     bool   `json:"staff"`
	Superuser bool   `json:"superuser"`
	jwt.RegisteredClaims
}

// IdentityMW resolves the caller's identity from an optional Bearer
// token. Missing or invalid tokens degrade to the anonymous identity;
// write endpoints reject anonymity themselves. Moderator forum
// membership is loaded per request so revocation takes effect
// immediately.
func IdentityMW(cfg *config.JWTConfig, forums repository.ForumRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(identityKey, model.Identity{})

		token := c.GetHeader("Authorization")
		if token == "" || !strings.HasPrefix(token, "Bearer ") {
			c.Next()
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := ParseJWT(token, cfg.Secret)
		if err != nil {
			c.Next()
			return
		}

		id := model.Identity{}
		if uid, ok := claims["uid"].(float64); ok {
			id.Uid = int64(uid)
		}
		if username, ok := claims["username"].(string); ok {
			id.Username = username
		}
		if staff, ok := claims["staff"].(bool); ok {
			id.Staff = staff
		}
		if superuser, ok := claims["superuser"].(bool); ok {
			id.Superuser = superuser
		}

		if id.Uid != 0 && !id.Staff && !id.Superuser {
			fids, err := forums.ModeratedBy(c.Request.Context(), id.Uid)
			if err != nil {
				logger.Warn("moderator lookup failed",
					logger.Int64("uid", id.Uid), logger.String("error", err.Error()))
			} else {
				id.Moderated = fids
			}
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireUser rejects anonymous callers
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetIdentity(c).Anonymous() {
			c.AbortWithStatusJSON(401, gin.H{
				"code": 401,
				"msg":  "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// RequireStaff rejects callers without staff or superuser standing
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		if !id.Staff && !id.Superuser {
			c.AbortWithStatusJSON(403, gin.H{
				"code": 403,
				"msg":  "forbidden",
			})
			return
		}
		c.Next()
	}
}

// GetIdentity returns the resolved identity, anonymous when absent
func GetIdentity(c *gin.Context) model.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(model.Identity); ok {
			return id
		}
	}
	return model.Identity{}
}

// ParseJWT parses and validates a token
func ParseJWT(tokenString, secret string) (map[string]interface{}, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return map[string]interface{}(claims), nil
	}
	return nil, fmt.Errorf("invalid token")
}

// GenerateToken issues a signed identity token
func GenerateToken(id model.Identity, cfg *config.JWTConfig) (string, error) {
	claims := UserClaims{
		UID:       id.Uid,
		Username:  id.Username,
		Staff:     id.Staff,
		Superuser: id.Superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(cfg.Expiry) * time.Second)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "agora_go",
			Subject:   fmt.Sprintf("%d", id.Uid),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}
