package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow-backend/internal/service"
)

// Ключи gin.Context.
const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "role"
)

// AuthMiddleware проверяет Bearer access-токен.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			return
		}

		userID, role, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil || userID == uuid.Nil {
			response.Unauthorized(c, "токен невалиден")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRole пропускает только пользователей с указанной ролью.
// Ставится после AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRoleKey) != role {
			response.Forbidden(c, "недостаточно прав")
			return
		}
		c.Next()
	}
}

// ActorFrom достаёт пользователя, которого положил AuthMiddleware.
func ActorFrom(c *gin.Context) (entity.Actor, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return entity.Actor{}, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return entity.Actor{}, false
	}
	return entity.Actor{ID: id, Role: c.GetString(ContextRoleKey)}, true
}
