package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-space-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-space-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-space-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-space-reservation/internal/domain/space"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// statusForDomainError はドメインエラーをHTTPステータスに対応付ける
// ここに載らないエラーは内部エラーとして扱い、生のメッセージは外に出さない
func statusForDomainError(err error) (int, bool) {
	switch {
	case errors.Is(err, reservation.ErrReservationNotFound),
		errors.Is(err, space.ErrSpaceNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, reservation.ErrSlotAlreadyBooked):
		return http.StatusConflict, true
	case errors.Is(err, reservation.ErrNotAllowed):
		return http.StatusForbidden, true
	case errors.Is(err, reservation.ErrInvalidTransition),
		errors.Is(err, reservation.ErrInvalidTimeRange),
		errors.Is(err, reservation.ErrSpaceIDRequired),
		errors.Is(err, reservation.ErrUserIDRequired),
		errors.Is(err, pricing.ErrInvalidTimeRange),
		errors.Is(err, space.ErrSpaceInactive),
		errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, payment.ErrInvalidWebhookPayload):
		return http.StatusBadRequest, true
	case errors.Is(err, payment.ErrGatewayRequestFailed):
		return http.StatusBadGateway, true
	case errors.Is(err, payment.ErrOrderNotFound):
		// 予約の永続化前に届いたWebhookの可能性があるため5xxで再送を促す
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
// ドメインの典型エラーはそのままreturnすれば適切なステータスに変換される
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
	)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else if status, ok := statusForDomainError(err); ok {
		code = status
		message = err.Error()
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
