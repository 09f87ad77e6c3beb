package middleware

import (
	"net/http"
	"strings"

	"ridehail/internal/models"
	"ridehail/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ContextUserID   = "user_id"
	ContextUserType = "user_type"
)

// AuthRequired validates the JWT and sets the caller on the context. The
// token is read from the Authorization header, or from the token query
// parameter for websocket upgrades where browsers cannot set headers.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		if claims.UserID.IsZero() || !models.ActorKind(claims.UserType).IsValid() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserType, claims.UserType)

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// CurrentActor returns the caller set by AuthRequired.
func CurrentActor(c *gin.Context) (models.Actor, bool) {
	userID, ok := c.Get(ContextUserID)
	if !ok {
		return models.Actor{}, false
	}
	userType, ok := c.Get(ContextUserType)
	if !ok {
		return models.Actor{}, false
	}

	id, ok := userID.(primitive.ObjectID)
	if !ok {
		return models.Actor{}, false
	}
	kind, ok := userType.(string)
	if !ok {
		return models.Actor{}, false
	}
	return models.Actor{Kind: models.ActorKind(kind), ID: id}, true
}

// AdminRequired middleware ensures user is an admin
func AdminRequired() gin.HandlerFunc {
	return requireKind(models.ActorKindAdmin, "Admin access required")
}

// UserRequired ensures the caller is a passenger.
func UserRequired() gin.HandlerFunc {
	return requireKind(models.ActorKindUser, "User access required")
}

// RiderRequired ensures the caller is a driver.
func RiderRequired() gin.HandlerFunc {
	return requireKind(models.ActorKindRider, "Rider access required")
}

func requireKind(kind models.ActorKind, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType, exists := c.Get(ContextUserType)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User type not found"})
			c.Abort()
			return
		}

		userTypeStr, ok := userType.(string)
		if !ok || userTypeStr != string(kind) {
			c.JSON(http.StatusForbidden, gin.H{"error": message})
			c.Abort()
			return
		}

		c.Next()
	}
}
