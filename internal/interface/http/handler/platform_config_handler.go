package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/dto"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/response"
	"github.com/ignatzorin/gig-escrow-backend/internal/service"
)

type PlatformConfigHandler struct {
	cache *service.PlatformConfigCache
}

func NewPlatformConfigHandler(cache *service.PlatformConfigCache) *PlatformConfigHandler {
	return &PlatformConfigHandler{cache: cache}
}

func (h *PlatformConfigHandler) Get(c *gin.Context) {
	cfg, err := h.cache.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, cfg)
}

// Update обрабатывает PUT /api/admin/platform-config. Роль проверяет middleware.
func (h *PlatformConfigHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req dto.UpdatePlatformConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "нужны fee_bps и grace_period_secs")
		return
	}

	cfg, err := h.cache.Update(c.Request.Context(), *req.FeeBPS, *req.GracePeriodSecs, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, cfg)
}
