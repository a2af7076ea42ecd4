package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware validates the bearer token issued by the catalog user
// service. This subsystem never issues tokens itself; it only checks the
// shared HMAC secret and exposes the caller's identity to handlers.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		if userID, exists := claims["user_id"]; exists {
			if id, ok := userID.(float64); ok {
				c.Set("user_id", uint(id))
			}
		}
		if role, exists := claims["role"]; exists {
			if r, ok := role.(string); ok {
				c.Set("user_role", r)
			}
		}

		c.Next()
	}
}

// RequireRole guards a route group behind a role claim. Used for the admin
// acknowledgment surface.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("user_role")
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}

func parseBearerToken(header string) (jwt.MapClaims, error) {
	if header == "" {
		return nil, errMissingAuth
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errBadAuthFormat
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}
	return claims, nil
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errMissingAuth   = authError("Authorization header required")
	errBadAuthFormat = authError("Invalid authorization header format")
	errInvalidToken  = authError("Invalid token")
)
