package payment

import "errors"

// Payment ドメインのエラー定義
var (
	ErrGatewayRequestFailed  = errors.New("決済ゲートウェイへのリクエストに失敗しました")
	ErrInvalidSignature      = errors.New("決済署名が不正です")
	ErrInvalidWebhookPayload = errors.New("Webhookペイロードを解析できません")
	ErrOrderNotFound         = errors.New("注文に対応する予約が見つかりません")
)
