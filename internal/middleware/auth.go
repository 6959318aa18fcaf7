package middleware

import (
	"net/http"
	"strings"

	"github.com/Skarath13/cards/internal/apierror"
	"github.com/Skarath13/cards/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	ClaimsKey = "claims"

	msgAuthRequired   = "Authentication required"
	msgSessionExpired = "Session expired"
)

// DeviceClaims are the custom claims embedded in every device token.
type DeviceClaims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// SessionAuth validates the Bearer token and then the device session behind
// it. Every request runs the sliding inactivity check, so an idle device is
// logged out on its next call. A token whose user no longer matches the
// device session is rejected the same way.
func SessionAuth(secret string, sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(msgAuthRequired))
			return
		}

		claims := &DeviceClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.DeviceID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Invalid or expired token"))
			return
		}

		current, ok := sessions.For(claims.DeviceID).UserID(c.Request.Context())
		if !ok || current != claims.UserID {
			log.Debug().
				Str("request_id", c.GetString(RequestIDKey)).
				Str("device_id", claims.DeviceID).
				Msg("auth: device session not active")
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New(msgSessionExpired))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose token role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !allowed[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

// CronAuth guards the scheduled reset with a shared bearer secret.
// An empty secret closes the route.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok || secret == "" || tokenStr != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Unauthorized"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *DeviceClaims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*DeviceClaims)
	return claims
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}
