package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Order は決済ゲートウェイ上の注文を表す
type Order struct {
	ID       string
	Amount   int64 // 最小通貨単位（INRの場合paise）
	Currency string
	Receipt  string
}

// Refund は返金結果を表す
type Refund struct {
	ID        string
	PaymentID string
	Amount    int64
}

// Gateway は外部決済ゲートウェイのインターフェース
// 注文作成・署名検証・返金のみを利用し、ゲートウェイ内部の仕様には関知しない
type Gateway interface {
	// CreateOrder は指定金額の注文を作成する
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*Order, error)

	// VerifySignature は決済署名を検証する
	VerifySignature(orderID, paymentID, signature string) bool

	// VerifyWebhookSignature はWebhook本文の署名を検証する
	VerifyWebhookSignature(body []byte, signature string) bool

	// Refund は支払いに対する返金を開始する
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*Refund, error)
}
