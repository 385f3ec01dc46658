package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-space-reservation/internal/pkg/logger"
)

// ReservationExpirer は期限切れの保留予約をキャンセルするインターフェース
type ReservationExpirer interface {
	CancelExpiredReservations(ctx context.Context, expireAfter time.Duration) (int, error)
}

// PendingReservationExpirer は支払いが完了しないまま放置された保留予約を
// 定期的にキャンセルし、スペースの枠が塞がれたままになるのを防ぐワーカー
type PendingReservationExpirer struct {
	reservationService ReservationExpirer
	interval           time.Duration
	expireAfter        time.Duration
	stopCh             chan struct{}
	doneCh             chan struct{}
}

// NewPendingReservationExpirer は新しいワーカーを作成
func NewPendingReservationExpirer(
	rs ReservationExpirer,
	interval time.Duration,
	expireAfter time.Duration,
) *PendingReservationExpirer {
	return &PendingReservationExpirer{
		reservationService: rs,
		interval:           interval,
		expireAfter:        expireAfter,
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
	}
}

// Start はワーカーを開始
func (w *PendingReservationExpirer) Start(ctx context.Context) {
	logger.Info("保留予約の期限切れワーカー開始",
		zap.Duration("interval", w.interval),
		zap.Duration("expire_after", w.expireAfter),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("保留予約の期限切れワーカー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("保留予約の期限切れワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop はワーカーを停止
func (w *PendingReservationExpirer) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// sweep は期限切れの保留予約をキャンセル
func (w *PendingReservationExpirer) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れ保留予約の掃除開始")

	count, err := w.reservationService.CancelExpiredReservations(ctx, w.expireAfter)
	if err != nil {
		log.Error("期限切れ保留予約の掃除に失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("期限切れ保留予約をキャンセル", zap.Int("count", count))
	} else {
		log.Debug("期限切れ保留予約なし")
	}
}
