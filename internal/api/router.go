package api

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-space-reservation/internal/api/handler"
	"github.com/sanosuguru/go-space-reservation/internal/api/middleware"
)

// RegisterRoutes はAPIのルーティングを設定する
func RegisterRoutes(
	e *echo.Echo,
	reservationHandler *handler.ReservationHandler,
	paymentHandler *handler.PaymentHandler,
	healthHandler *handler.HealthHandler,
) {
	e.Validator = NewValidator()
	e.HTTPErrorHandler = CustomHTTPErrorHandler

	e.GET("/api/v1/health", healthHandler.Check)

	// Prometheusメトリクス（Basic認証は環境変数設定時のみ有効）
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth())

	// Webhookはゲートウェイからの呼び出しのため認証ヘッダーを要求しない
	e.POST("/api/v1/payments/webhook", paymentHandler.Webhook)

	v1 := e.Group("/api/v1", middleware.Identity())
	v1.POST("/reservations", reservationHandler.Create)
	v1.GET("/reservations", reservationHandler.List)
	v1.GET("/reservations/today", reservationHandler.ListToday)
	v1.GET("/reservations/:id", reservationHandler.GetByID)
	v1.POST("/reservations/:id/cancel", reservationHandler.Cancel)
	v1.POST("/reservations/:id/check-in", reservationHandler.CheckIn)
	v1.POST("/reservations/:id/check-out", reservationHandler.CheckOut)
	v1.POST("/reservations/:id/no-show", reservationHandler.MarkNoShow)
	v1.POST("/payments/verify", paymentHandler.Verify)
}
