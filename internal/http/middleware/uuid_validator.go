package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/response"
)

// UUIDValidator проверяет, что параметр пути: валидный UUID.
// Использование: router.GET("/gigs/:id", UUIDValidator("id"), handler.Get)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(paramName)
		if raw == "" {
			response.BadRequest(c, "параметр "+paramName+" обязателен")
			return
		}
		if _, err := uuid.Parse(raw); err != nil {
			response.BadRequest(c, "параметр "+paramName+" должен быть валидным UUID")
			return
		}
		c.Next()
	}
}
