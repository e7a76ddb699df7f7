package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/gig-escrow-backend/internal/config"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/http/middleware"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/handler"
	"github.com/ignatzorin/gig-escrow-backend/internal/service"
)

type Handlers struct {
	Gig            *handler.GigHandler
	Escrow         *handler.EscrowHandler
	PlatformConfig *handler.PlatformConfigHandler
	Health         *handler.HealthHandler
	WS             *handler.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Публичные маршруты
	api.GET("/platform-config", h.PlatformConfig.Get)
	api.GET("/gigs", h.Gig.ListGigs)
	api.GET("/gigs/:id", middleware.UUIDValidator("id"), h.Gig.GetGig)
	api.GET("/chain/signatures/:signature", h.Escrow.SignatureStatus)
	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/gigs", h.Gig.CreateGig)
		protected.POST("/gigs/:id/cancel-draft", middleware.UUIDValidator("id"), h.Gig.CancelDraft)
		protected.GET("/gigs/:id/transactions", middleware.UUIDValidator("id"), h.Gig.ListTransactions)
		protected.GET("/gigs/:id/dispute", middleware.UUIDValidator("id"), h.Gig.GetDispute)
	}

	// Сборка и коммит транзакций: отдельный лимит, RPC узла дороже остального.
	escrowGroup := api.Group("/gigs/:id")
	escrowGroup.Use(
		middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod),
		middleware.AuthMiddleware(tokenManager),
		middleware.UUIDValidator("id"),
	)
	for _, action := range entity.ChainActions {
		a := string(action)
		escrowGroup.POST("/"+a+"/build", h.Escrow.Build(action))
		escrowGroup.POST("/"+a+"/commit", h.Escrow.Commit(action))
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireRole(entity.RoleAdmin))
	{
		admin.PUT("/platform-config", h.PlatformConfig.Update)
	}

	return r
}
