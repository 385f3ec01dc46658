package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-space-reservation/internal/config"
	"github.com/sanosuguru/go-space-reservation/internal/domain/payment"
)

// Client はRazorpay REST APIのクライアント
// 注文作成・返金・署名検証のみを提供する
type Client struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

// NewClient は新しいClientを作成する
func NewClient(cfg *config.RazorpayConfig) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("Razorpay APIキーが設定されていません")
	}
	return &Client{
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       cfg.BaseURL,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type orderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder は注文を作成する
// 金額は最小通貨単位（paise）に変換して送信する
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*payment.Order, error) {
	req := orderRequest{
		Amount:         toMinorUnits(amount),
		Currency:       currency,
		Receipt:        receipt,
		PaymentCapture: 1, // 自動キャプチャ
	}

	var resp orderResponse
	if err := c.post(ctx, "/v1/orders", req, &resp); err != nil {
		return nil, err
	}
	return &payment.Order{
		ID:       resp.ID,
		Amount:   resp.Amount,
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
	}, nil
}

type refundRequest struct {
	Amount int64 `json:"amount"`
}

type refundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// Refund は支払いに対する返金を開始する
func (c *Client) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*payment.Refund, error) {
	req := refundRequest{Amount: toMinorUnits(amount)}

	var resp refundResponse
	if err := c.post(ctx, "/v1/payments/"+paymentID+"/refund", req, &resp); err != nil {
		return nil, err
	}
	return &payment.Refund{
		ID:        resp.ID,
		PaymentID: resp.PaymentID,
		Amount:    resp.Amount,
	}, nil
}

// VerifySignature は決済署名（HMAC-SHA256 of "orderID|paymentID"）を検証する
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// VerifyWebhookSignature はWebhook本文の署名を検証する
// Webhookシークレット未設定の場合は検証をスキップする（ローカル開発用）
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("リクエストのシリアライズに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", payment.ErrGatewayRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status=%d body=%s", payment.ErrGatewayRequestFailed, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("レスポンスの解析に失敗: %w", err)
	}
	return nil
}

// toMinorUnits は金額を最小通貨単位（×100、paise）の整数に変換する
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

var _ payment.Gateway = (*Client)(nil)
