package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-space-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-space-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-space-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/metrics"
)

// ReconcileOutcome は決済イベント照合の結果種別
type ReconcileOutcome string

const (
	// OutcomeConfirmed は照合により予約が確定した
	OutcomeConfirmed ReconcileOutcome = "confirmed"
	// OutcomeCancelled は照合により予約が取り消された
	OutcomeCancelled ReconcileOutcome = "cancelled"
	// OutcomeNoop は既に反映済みで何も行わなかった（冪等な再送）
	OutcomeNoop ReconcileOutcome = "noop"
	// OutcomeIgnored は未知イベントや確定後の失敗通知を無視した
	OutcomeIgnored ReconcileOutcome = "ignored"
)

// ReconcileResult は決済イベント照合の結果
type ReconcileResult struct {
	Outcome     ReconcileOutcome
	Reservation *reservation.Reservation // Ignoredの場合はnil
}

// PaymentService は決済ゲートウェイのイベントを予約状態に照合する
type PaymentService struct {
	txManager       transaction.Manager
	reservationRepo reservation.Repository
	gateway         payment.Gateway
	clk             clock.Clock
}

func NewPaymentService(txManager transaction.Manager, rr reservation.Repository, gw payment.Gateway, clk clock.Clock) *PaymentService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &PaymentService{txManager: txManager, reservationRepo: rr, gateway: gw, clk: clk}
}

// HandleWebhook はWebhook本文を検証・解析し、予約状態に照合する
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*ReconcileResult, error) {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		return nil, payment.ErrInvalidSignature
	}
	ev, err := payment.ParseWebhook(body)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, ev)
}

// Reconcile は決済イベントを予約の状態遷移に変換する
// 同一イベントの再送は冪等に処理し、遅延して届いた失敗イベントで
// 確定済み予約を巻き戻すことはない
func (s *PaymentService) Reconcile(ctx context.Context, ev payment.Event) (*ReconcileResult, error) {
	if ev.Kind == payment.EventUnknown || ev.OrderID == "" {
		logger.Warn("未知の決済イベントを無視",
			zap.String("event", ev.Raw), zap.String("order_id", ev.OrderID))
		s.countEvent(OutcomeIgnored)
		return &ReconcileResult{Outcome: OutcomeIgnored}, nil
	}

	res, err := s.lookupByOrderID(ctx, ev.OrderID)
	if err != nil {
		if errors.Is(err, payment.ErrOrderNotFound) {
			// 黙って握りつぶすとゲートウェイが再送を止めてイベントが失われる
			// 5xxで応答して再送させる
			logger.Warn("該当予約のない決済イベント",
				zap.String("order_id", ev.OrderID), zap.String("event", ev.Raw))
		}
		return nil, err
	}

	switch ev.Kind {
	case payment.EventCaptured:
		return s.applyCaptured(ctx, res, ev)
	case payment.EventFailed:
		return s.applyFailed(ctx, res, ev)
	}
	s.countEvent(OutcomeIgnored)
	return &ReconcileResult{Outcome: OutcomeIgnored}, nil
}

// 注文作成は予約を永続化するトランザクションの外で行われるため、
// Webhookが予約より先に到着することがある。短い再試行で永続化を待つ
const (
	orderLookupRetries = 2
	orderLookupDelay   = 100 * time.Millisecond
)

func (s *PaymentService) lookupByOrderID(ctx context.Context, orderID string) (*reservation.Reservation, error) {
	for attempt := 0; ; attempt++ {
		res, err := s.reservationRepo.GetByOrderID(ctx, orderID)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, reservation.ErrReservationNotFound) {
			return nil, err
		}
		if attempt >= orderLookupRetries {
			return nil, fmt.Errorf("order_id=%s: %w", orderID, payment.ErrOrderNotFound)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(orderLookupDelay):
		}
	}
}

func (s *PaymentService) applyCaptured(ctx context.Context, res *reservation.Reservation, ev payment.Event) (*ReconcileResult, error) {
	// 同一注文のcapturedイベント再送は冪等なno-op
	if res.Status == reservation.StatusConfirmed {
		s.countEvent(OutcomeNoop)
		return &ReconcileResult{Outcome: OutcomeNoop, Reservation: res}, nil
	}

	if err := res.ConfirmPayment(ev.PaymentID, s.clk.Now()); err != nil {
		return nil, fmt.Errorf("支払い完了イベントを適用できません（状態=%s）: %w", res.Status, err)
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}

	s.countEvent(OutcomeConfirmed)
	logger.Info("支払い完了により予約を確定",
		zap.String("reservation_id", res.ID), zap.String("order_id", ev.OrderID))
	return &ReconcileResult{Outcome: OutcomeConfirmed, Reservation: res}, nil
}

func (s *PaymentService) applyFailed(ctx context.Context, res *reservation.Reservation, ev payment.Event) (*ReconcileResult, error) {
	// 確定後に遅れて届いた失敗イベントでは状態を巻き戻さない
	if res.Status != reservation.StatusPending {
		s.countEvent(OutcomeIgnored)
		logger.Warn("確定済み予約への失敗イベントを無視",
			zap.String("reservation_id", res.ID), zap.String("status", string(res.Status)))
		return &ReconcileResult{Outcome: OutcomeIgnored, Reservation: res}, nil
	}

	if err := res.FailPayment(s.clk.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}

	s.countEvent(OutcomeCancelled)
	logger.Info("支払い失敗により予約を取り消し",
		zap.String("reservation_id", res.ID), zap.String("order_id", ev.OrderID))
	return &ReconcileResult{Outcome: OutcomeCancelled, Reservation: res}, nil
}

// VerifyPayment はクライアントから送られた決済署名を検証する
func (s *PaymentService) VerifyPayment(orderID, paymentID, signature string) error {
	if !s.gateway.VerifySignature(orderID, paymentID, signature) {
		return payment.ErrInvalidSignature
	}
	return nil
}

func (s *PaymentService) persist(ctx context.Context, res *reservation.Reservation) error {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.reservationRepo.Update(ctx, tx, res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

func (s *PaymentService) countEvent(outcome ReconcileOutcome) {
	if m := metrics.Get(); m != nil {
		m.PaymentEventsTotal.WithLabelValues(string(outcome)).Inc()
	}
}
