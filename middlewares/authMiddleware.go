package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/cash_reconciliation/utils"
)

type authString string

// AuthMiddleware validates the bearer token and puts the caller's identity in the request context.
// Admin callers bypass store scoping; store callers are pinned to their store.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = strings.TrimSpace(auth[len(bearer):])

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		customClaim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		switch customClaim.Role {
		case utils.RoleAdmin:
		case utils.RoleStore:
			if strings.TrimSpace(customClaim.StoreId) == "" {
				c.JSON(http.StatusForbidden, gin.H{"error": "store token without store_id"})
				c.Abort()
				return
			}
		default:
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), authString("auth"), customClaim)
		ctx = utils.SetTokenInContext(ctx, auth)
		ctx = utils.SetUsernameInContext(ctx, customClaim.Username)
		ctx = utils.SetRoleInContext(ctx, customClaim.Role)
		if customClaim.Role == utils.RoleAdmin {
			ctx = utils.SetSkipStoreScopeInContext(ctx, true)
		} else {
			ctx = utils.SetStoreIdInContext(ctx, customClaim.StoreId)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}

// ResolveStoreScope returns the store a request may act on.
// Store callers always get their own store; asking for another one is refused.
func ResolveStoreScope(ctx context.Context, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	claim := CtxValue(ctx)
	if claim == nil || claim.Role == utils.RoleAdmin {
		return requested, true
	}
	if requested != "" && requested != claim.StoreId {
		return "", false
	}
	return claim.StoreId, true
}
