package payment

import "encoding/json"

// EventKind はゲートウェイイベントの種別を表す
type EventKind string

const (
	EventCaptured EventKind = "captured"
	EventFailed   EventKind = "failed"
	EventUnknown  EventKind = "unknown"
)

// Event はゲートウェイから受信した決済イベントを表す
// 動的なWebhookペイロードは境界でこの閉じた型に変換してから照合処理に渡す
type Event struct {
	Kind      EventKind
	OrderID   string
	PaymentID string
	Raw       string // 元のイベント名（unknown時の調査用）
}

// webhookPayload はRazorpay Webhookの構造
type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook はWebhook本文を決済イベントに変換する
// 未知のイベント名はEventUnknownとして返し、エラーにはしない
func ParseWebhook(body []byte) (Event, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, ErrInvalidWebhookPayload
	}

	ev := Event{
		OrderID:   p.Payload.Payment.Entity.OrderID,
		PaymentID: p.Payload.Payment.Entity.ID,
		Raw:       p.Event,
	}
	switch p.Event {
	case "payment.captured":
		ev.Kind = EventCaptured
	case "payment.failed":
		ev.Kind = EventFailed
	default:
		ev.Kind = EventUnknown
	}
	return ev, nil
}
