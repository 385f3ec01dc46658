package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-space-reservation/internal/api"
	"github.com/sanosuguru/go-space-reservation/internal/api/handler"
	custommiddleware "github.com/sanosuguru/go-space-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-space-reservation/internal/application"
	"github.com/sanosuguru/go-space-reservation/internal/config"
	"github.com/sanosuguru/go-space-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-space-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-space-reservation/internal/infrastructure/razorpay"
	redisinfra "github.com/sanosuguru/go-space-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-space-reservation/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(os.Getenv("APP_ENV"))
	logger.Set(log)
	defer logger.Sync()

	// データベース接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// Redis接続
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisinfra.Ping(ctx, redisClient); err != nil {
			logger.Fatal("Redis接続に失敗", zap.Error(err))
		}
		cancel()
	}

	// 決済ゲートウェイ
	gateway, err := razorpay.NewClient(&cfg.Razorpay)
	if err != nil {
		logger.Fatal("決済ゲートウェイの初期化に失敗", zap.Error(err))
	}

	// メトリクス
	m := metrics.Init()

	// 依存の組み立て
	lockManager := redisinfra.NewLockManager(redisClient)
	spaceCache := redisinfra.NewSpaceCache(redisClient)

	reservationRepo := postgres.NewReservationRepository(db)
	spaceRepo := postgres.NewSpaceRepository(db)
	txManager := postgres.NewTxManager(db)

	calculator := pricing.NewCalculator(pricing.DefaultPromoTable())
	clk := clock.Real{}

	reservationService := application.NewReservationService(
		txManager, reservationRepo, spaceRepo, gateway, calculator,
		lockManager, spaceCache, clk, cfg.Razorpay.Currency,
	)
	paymentService := application.NewPaymentService(txManager, reservationRepo, gateway, clk)

	// 保留予約の期限切れワーカー
	expirer := worker.NewPendingReservationExpirer(
		reservationService, cfg.Worker.SweepInterval, cfg.Worker.PendingTTL,
	)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	go expirer.Start(workerCtx)

	// Echo インスタンス作成
	e := echo.New()
	e.HideBanner = true
	custommiddleware.SetupMiddleware(e)
	e.Use(custommiddleware.PrometheusMiddleware(m))

	api.RegisterRoutes(
		e,
		handler.NewReservationHandler(reservationService),
		handler.NewPaymentHandler(paymentService),
		handler.NewHealthHandler(),
	)

	// サーバー起動
	go func() {
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	workerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
