package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	service PaymentServiceInterface
}

func NewPaymentHandler(s PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type WebhookResponse struct {
	Status  string `json:"status" example:"received"`
	Outcome string `json:"outcome" example:"confirmed"`
}

// Webhook godoc
// @Summary 決済ゲートウェイのWebhookを受信
// @Description 決済イベントを予約状態に照合します。再送・順序逆転は冪等に処理します
// @Tags payments
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string false "Webhook署名"
// @Success 200 {object} WebhookResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 503 {object} api.ErrorResponse "予約が未登録の注文のイベント（再送で解消）"
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエスト本文を読み込めません")
	}

	signature := c.Request().Header.Get("X-Razorpay-Signature")
	result, err := h.service.HandleWebhook(c.Request().Context(), body, signature)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, WebhookResponse{
		Status:  "received",
		Outcome: string(result.Outcome),
	})
}

// Verify godoc
// @Summary 決済署名を検証
// @Description クライアントが受け取った決済署名を検証します
// @Tags payments
// @Accept json
// @Produce json
// @Param request body VerifyPaymentRequest true "検証情報"
// @Success 200 {object} map[string]string
// @Failure 400 {object} api.ErrorResponse
// @Router /payments/verify [post]
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.service.VerifyPayment(req.OrderID, req.PaymentID, req.Signature); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "決済署名を確認しました",
	})
}
