package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/gig-escrow-backend/internal/config"
	"github.com/ignatzorin/gig-escrow-backend/internal/db"
	httpRouter "github.com/ignatzorin/gig-escrow-backend/internal/http/router"
	"github.com/ignatzorin/gig-escrow-backend/internal/infrastructure/chain"
	"github.com/ignatzorin/gig-escrow-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/gig-escrow-backend/internal/interface/http/handler"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/service"
	"github.com/ignatzorin/gig-escrow-backend/internal/usecase/escrow"
	"github.com/ignatzorin/gig-escrow-backend/internal/usecase/expiry"
	"github.com/ignatzorin/gig-escrow-backend/internal/usecase/gig"
	"github.com/ignatzorin/gig-escrow-backend/internal/ws"
)

const sweepLockKey = "gig-escrow:expiry-sweep"

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	chainClient, err := chain.NewClient(chain.NewRPCClient(cfg.SolanaRPCURL), cfg.EscrowProgramID)
	if err != nil {
		logger.Log.Fatalf("main: некорректный ESCROW_PROGRAM_ID: %v", err)
	}

	// Репозитории.
	gigRepo := persistence.NewGigRepository(dbConn)
	ledgerRepo := persistence.NewLedgerRepository(dbConn)
	disputeRepo := persistence.NewDisputeRepository(dbConn)
	userRepo := service.NewUserCache(persistence.NewUserRepository(dbConn), nil, service.DefaultUserCacheTTL)
	configRepo := persistence.NewPlatformConfigRepository(dbConn)

	configCache := service.NewPlatformConfigCache(configRepo, nil, cfg.ConfigCacheTTL)
	tokenManager := service.NewTokenManager(cfg.JWTSecret, 24*time.Hour)

	// Вебсокеты.
	hub := ws.NewHub()

	expiryManager := expiry.NewManager(gigRepo, configCache, newThrottle(ctx, cfg), nil, hub)

	coordinator := escrow.NewCoordinator(escrow.Deps{
		Gigs:   gigRepo,
		Ledger: ledgerRepo,
		Users:  userRepo,
		Config: configCache,
		Chain:  chainClient,
		Expiry: expiryManager,
		Events: hub,
		Depth:  chain.DepthForNetwork(cfg.IsProductionTier()),
	})

	// HTTP хэндлеры.
	handlers := httpRouter.Handlers{
		Gig: handler.NewGigHandler(
			gig.NewCreateGigUseCase(gigRepo, chainClient, nil, cfg.MaxPaymentLamports),
			gig.NewGetGigUseCase(gigRepo, expiryManager),
			gig.NewListGigsUseCase(gigRepo, expiryManager),
			gig.NewCancelDraftUseCase(gigRepo, expiryManager, hub),
			gig.NewListTransactionsUseCase(gigRepo, ledgerRepo),
			gig.NewGetDisputeUseCase(gigRepo, disputeRepo),
		),
		Escrow:         handler.NewEscrowHandler(coordinator),
		PlatformConfig: handler.NewPlatformConfigHandler(configCache),
		Health:         handler.NewHealthHandler(dbConn),
		WS:             handler.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}

	engine := httpRouter.SetupRouter(cfg, handlers, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler, err := newSweepScheduler(ctx, cfg, expiryManager)
	if err != nil {
		logger.Log.Fatalf("main: не удалось запустить планировщик: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Log.Infof("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Завершаем сервер и планировщик при получении сигнала.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := scheduler.Shutdown(); err != nil {
			logger.Log.WithError(err).Warn("main: ошибка остановки планировщика")
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
	logger.Log.Info("main: сервер остановлен")
}

// newThrottle выбирает общий для всех реплик лимитер через Redis,
// если он настроен, иначе локальный.
func newThrottle(ctx context.Context, cfg *config.Config) expiry.Throttle {
	if cfg.RedisURL == "" {
		return expiry.NewMemoryThrottle(nil, cfg.ExpirySweepCooldown)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatalf("main: некорректный REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Warn("main: redis недоступен, пакетная проверка будет пропускаться до восстановления")
	}

	owner, _ := os.Hostname()
	return expiry.NewRedisThrottle(client, sweepLockKey, owner, cfg.ExpirySweepCooldown)
}

// newSweepScheduler запускает фоновую пакетную проверку сроков. Частоту
// реального прохода всё равно ограничивает Throttle.
func newSweepScheduler(ctx context.Context, cfg *config.Config, manager *expiry.Manager) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(cfg.ExpirySweepInterval),
		gocron.NewTask(func() {
			expired, ran, err := manager.Sweep(ctx)
			if err != nil {
				logger.Log.WithError(err).Warn("expiry: пакетная проверка не удалась")
				return
			}
			if ran && expired > 0 {
				logger.Log.WithField("expired", expired).Info("expiry: задания переведены в expired")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	s.Start()
	return s, nil
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
