package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"mall/internal/utils"
	pkgutils "mall/pkg/utils"
)

const (
	// AuthorizationHeader 认证头部名称
	AuthorizationHeader = "Authorization"
	// BearerPrefix Bearer前缀
	BearerPrefix = "Bearer "
	// UserIDKey 用户ID在上下文中的键
	UserIDKey = "user_id"
	// UserRoleKey 用户角色在上下文中的键
	UserRoleKey = "user_role"
)

// UserInfo 用户信息
type UserInfo struct {
	ID   uint64 `json:"id"`
	Role string `json:"role"`
}

// TokenValidator resolves a bearer token to its user
type TokenValidator func(token string) (*UserInfo, error)

// JWTValidator adapts a JWTManager to TokenValidator
func JWTValidator(m *utils.JWTManager) TokenValidator {
	return func(token string) (*UserInfo, error) {
		claims, err := m.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return &UserInfo{ID: claims.UserID, Role: claims.Role}, nil
	}
}

// Auth 认证中间件
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "Missing authorization header")
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}
		token := strings.TrimPrefix(authHeader, BearerPrefix)
		if token == "" {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "Missing token")
			c.Abort()
			return
		}

		userInfo, err := validator(token)
		if err != nil {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "Invalid token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, userInfo.ID)
		c.Set(UserRoleKey, userInfo.Role)
		c.Next()
	}
}

// RequireRole 需要特定角色；must run after Auth
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if got, _ := GetUserRole(c); got != role {
			pkgutils.Error(c, pkgutils.CodeForbidden, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) (uint64, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok && id > 0
}

// GetUserRole 从上下文获取用户角色
func GetUserRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	roleStr, ok := role.(string)
	return roleStr, ok
}
