package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/http/middleware"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/response"
)

// requireActor пишет 401 и возвращает false, если пользователя нет в контексте.
func requireActor(c *gin.Context) (entity.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		response.Unauthorized(c, "требуется авторизация")
	}
	return actor, ok
}

func gigIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "некорректный ID задания")
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}
