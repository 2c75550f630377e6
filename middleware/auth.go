package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"service-marketplace-server/models"
	"service-marketplace-server/services"
	"service-marketplace-server/types"
	"service-marketplace-server/utils"
)

// AccountFinder loads the account named by a token.
type AccountFinder interface {
	FindByID(ctx context.Context, id uint) (*models.Account, error)
}

// AuthMiddleware validates the bearer token and sets user_id and role on the context.
func AuthMiddleware(accounts AccountFinder, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Authorization header required",
				"message": "Please provide a valid token",
			})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid token format",
				"message": "Token must be in format: Bearer <token>",
			})
			return
		}

		authenticate(c, accounts, log, tokenString)
	}
}

// WebSocketAuthMiddleware reads the token from the query string, since
// browsers cannot set headers on a WebSocket upgrade.
func WebSocketAuthMiddleware(accounts AccountFinder, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Token required",
				"message": "Please provide a valid token in query parameters",
			})
			return
		}
		authenticate(c, accounts, log, tokenString)
	}
}

func authenticate(c *gin.Context, accounts AccountFinder, log *zap.Logger, tokenString string) {
	claims, err := utils.VerifyToken(tokenString)
	if err != nil {
		log.Debug("token rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "Invalid token",
			"message": "Token is invalid or expired",
		})
		return
	}

	account, err := accounts.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "User not found",
			"message": "User associated with token not found",
		})
		return
	}
	if !account.IsActive {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "User inactive",
			"message": "User account is deactivated",
		})
		return
	}
	if claims.Role != "" && models.Role(claims.Role) != account.Role {
		log.Warn("token role does not match account",
			zap.Uint("user_id", account.ID),
			zap.String("token_role", claims.Role),
			zap.String("account_role", string(account.Role)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "Invalid token",
			"message": "Token role is out of date",
		})
		return
	}

	c.Set("user_id", account.ID)
	c.Set("role", account.Role)
	c.Set("claims", claims)
	c.Next()
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "Access denied",
			"message": "Your role cannot perform this action",
		})
	}
}

// CurrentActor returns the authenticated actor set by AuthMiddleware.
func CurrentActor(c *gin.Context) (services.Actor, bool) {
	id, ok := c.Get("user_id")
	if !ok {
		return services.Actor{}, false
	}
	role, _ := c.Get("role")
	userID, _ := id.(uint)
	r, _ := role.(models.Role)
	return services.Actor{ID: userID, Role: r}, userID != 0
}

// Claims returns the token claims of the authenticated request.
func Claims(c *gin.Context) (*types.Claims, bool) {
	v, ok := c.Get("claims")
	if !ok {
		return nil, false
	}
	claims, ok := v.(*types.Claims)
	return claims, ok
}
