package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-space-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-space-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-space-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-space-reservation/internal/domain/space"
	"github.com/sanosuguru/go-space-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-space-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/metrics"
)

const spaceCacheTTL = 5 * time.Minute

// ReservationService は予約ライフサイクルのオーケストレーター
type ReservationService struct {
	txManager       transaction.Manager
	reservationRepo reservation.Repository
	spaceRepo       space.Repository
	gateway         payment.Gateway
	availability    *AvailabilityChecker
	calculator      *pricing.Calculator
	lockManager     *redisinfra.LockManager
	spaceCache      *redisinfra.SpaceCache
	clk             clock.Clock
	currency        string
}

func NewReservationService(
	txManager transaction.Manager,
	rr reservation.Repository,
	sr space.Repository,
	gw payment.Gateway,
	calc *pricing.Calculator,
	lm *redisinfra.LockManager,
	sc *redisinfra.SpaceCache,
	clk clock.Clock,
	currency string,
) *ReservationService {
	if clk == nil {
		clk = clock.Real{}
	}
	if currency == "" {
		currency = "INR"
	}
	return &ReservationService{
		txManager:       txManager,
		reservationRepo: rr,
		spaceRepo:       sr,
		gateway:         gw,
		availability:    NewAvailabilityChecker(rr),
		calculator:      calc,
		lockManager:     lm,
		spaceCache:      sc,
		clk:             clk,
		currency:        currency,
	}
}

type CreateReservationInput struct {
	SpaceID   string
	UserID    string
	StartTime time.Time
	EndTime   time.Time
	PromoCode string
}

// CreateReservation は予約を作成する
// 料金計算と外部注文の作成はロック外で行い、空き確認と挿入のみをスペース単位の
// ロックで直列化する。挿入時のEXCLUDE制約が重複に対する最終防衛線となる
func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (*reservation.Reservation, error) {
	if !input.StartTime.Before(input.EndTime) {
		return nil, reservation.ErrInvalidTimeRange
	}
	if input.SpaceID == "" {
		return nil, reservation.ErrSpaceIDRequired
	}
	if input.UserID == "" {
		return nil, reservation.ErrUserIDRequired
	}

	sp, err := s.getSpace(ctx, input.SpaceID)
	if err != nil {
		return nil, err
	}
	if !sp.IsActive {
		return nil, space.ErrSpaceInactive
	}

	// 事前の空き確認（ロック取得前に枠が埋まっていれば外部呼び出しを省く）
	available, err := s.availability.IsAvailable(ctx, input.SpaceID, input.StartTime, input.EndTime, "")
	if err != nil {
		return nil, err
	}
	if !available {
		s.countReservation("conflict")
		return nil, reservation.ErrSlotAlreadyBooked
	}

	quote, err := s.calculator.Calculate(sp, input.StartTime, input.EndTime, input.PromoCode)
	if err != nil {
		return nil, err
	}

	// 外部注文の作成はブロッキングI/Oのためロック外で実行する
	receipt := fmt.Sprintf("reservation_%d", s.clk.Now().UnixMilli())
	order, err := s.gateway.CreateOrder(ctx, quote.Total, s.currency, receipt)
	if err != nil {
		s.countReservation("gateway_error")
		return nil, fmt.Errorf("注文作成に失敗: %w", err)
	}

	// スペース単位の排他制御
	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, "space:"+input.SpaceID, 10*time.Second, 3, 100*time.Millisecond)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				s.countReservation("lock_failed")
				return nil, reservation.ErrSlotAlreadyBooked
			}
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer lock.Release(ctx)

		// ロック取得後に再確認（取得待ちの間に枠が埋まっている可能性がある）
		available, err = s.availability.IsAvailable(ctx, input.SpaceID, input.StartTime, input.EndTime, "")
		if err != nil {
			return nil, err
		}
		if !available {
			s.countReservation("conflict")
			return nil, reservation.ErrSlotAlreadyBooked
		}
	}

	now := s.clk.Now()
	res := reservation.NewReservation(
		input.SpaceID, input.UserID, input.StartTime, input.EndTime,
		quote.Total, quote.Discount, input.PromoCode, order.ID, now,
	)
	if err := res.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.reservationRepo.Create(ctx, tx, res); err != nil {
		if errors.Is(err, reservation.ErrSlotAlreadyBooked) {
			s.countReservation("conflict")
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.countReservation("success")
	return res, nil
}

// GetReservation は予約を取得する（閲覧権限チェック付き）
func (s *ReservationService) GetReservation(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error) {
	res, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sp, err := s.getSpace(ctx, res.SpaceID)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(res, sp.OwnerID) {
		return nil, reservation.ErrNotAllowed
	}
	return res, nil
}

// ListReservations は役割に応じた予約一覧を返す
// consumer: 自身の予約 / brand_owner: 所有スペースの予約 / staff: 全予約
func (s *ReservationService) ListReservations(ctx context.Context, actor reservation.Actor, limit, offset int) ([]*reservation.Reservation, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	switch actor.Role {
	case reservation.RoleStaff:
		return s.reservationRepo.ListAll(ctx, limit, offset)
	case reservation.RoleBrandOwner:
		spaces, err := s.spaceRepo.GetByOwnerID(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		spaceIDs := make([]string, len(spaces))
		for i, sp := range spaces {
			spaceIDs[i] = sp.ID
		}
		return s.reservationRepo.ListBySpaceIDs(ctx, spaceIDs, limit, offset)
	default:
		return s.reservationRepo.ListByUserID(ctx, actor.ID, limit, offset)
	}
}

// ListTodayReservations は本日開始のCONFIRMED/CHECKED_IN予約を返す（スタッフ運用向け）
func (s *ReservationService) ListTodayReservations(ctx context.Context, actor reservation.Actor) ([]*reservation.Reservation, error) {
	if actor.Role != reservation.RoleStaff {
		return nil, reservation.ErrNotAllowed
	}
	now := s.clk.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.reservationRepo.ListStartingBetween(ctx, today, today.AddDate(0, 0, 1))
}

// CancelReservation は予約をキャンセルする
// 状態変更のコミットを先に行い、返金は事後に試みる。返金失敗は
// キャンセルを巻き戻さず、手動対応のためにログへ残す
func (s *ReservationService) CancelReservation(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error) {
	res, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanCancel(res) {
		return nil, reservation.ErrNotAllowed
	}
	if err := res.Cancel(s.clk.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}

	if res.RazorpayPaymentID != "" {
		s.refund(ctx, res)
	}
	return res, nil
}

// refund は返金を1回だけ試みる
func (s *ReservationService) refund(ctx context.Context, res *reservation.Reservation) {
	if _, err := s.gateway.Refund(ctx, res.RazorpayPaymentID, res.TotalAmount); err != nil {
		s.countRefund("failed")
		logger.Error("返金リクエストに失敗（手動対応が必要）",
			zap.String("reservation_id", res.ID),
			zap.String("payment_id", res.RazorpayPaymentID),
			zap.String("amount", res.TotalAmount.String()),
			zap.Error(err),
		)
		return
	}
	s.countRefund("success")
	logger.Info("返金リクエスト完了",
		zap.String("reservation_id", res.ID),
		zap.String("payment_id", res.RazorpayPaymentID),
	)
}

// CheckIn は予約をチェックインする
func (s *ReservationService) CheckIn(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error) {
	return s.operate(ctx, actor, id, func(res *reservation.Reservation, now time.Time) error {
		return res.CheckIn(now)
	})
}

// CheckOut は予約をチェックアウトする
func (s *ReservationService) CheckOut(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error) {
	return s.operate(ctx, actor, id, func(res *reservation.Reservation, now time.Time) error {
		return res.CheckOut(now)
	})
}

// MarkNoShow は来場しなかった確定予約をノーショー扱いにする
func (s *ReservationService) MarkNoShow(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error) {
	return s.operate(ctx, actor, id, func(res *reservation.Reservation, now time.Time) error {
		return res.MarkNoShow(now)
	})
}

// operate はスタッフ／スペースオーナー専用の状態遷移を実行する共通処理
// 永続化された最新状態を取り直してから遷移を適用する
func (s *ReservationService) operate(ctx context.Context, actor reservation.Actor, id string, transition func(*reservation.Reservation, time.Time) error) (*reservation.Reservation, error) {
	res, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sp, err := s.getSpace(ctx, res.SpaceID)
	if err != nil {
		return nil, err
	}
	if !actor.CanOperate(res, sp.OwnerID) {
		return nil, reservation.ErrNotAllowed
	}
	if err := transition(res, s.clk.Now()); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// CancelExpiredReservations は支払いが完了しないまま放置された保留予約を
// キャンセルし、キャンセルした件数を返す
func (s *ReservationService) CancelExpiredReservations(ctx context.Context, expireAfter time.Duration) (int, error) {
	stale, err := s.reservationRepo.GetStalePending(ctx, s.clk.Now().Add(-expireAfter))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, res := range stale {
		if err := res.Cancel(s.clk.Now()); err != nil {
			continue
		}
		if err := s.persist(ctx, res); err != nil {
			logger.Error("期限切れ予約のキャンセルに失敗",
				zap.String("reservation_id", res.ID), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

func (s *ReservationService) persist(ctx context.Context, res *reservation.Reservation) error {
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

// getSpace はキャッシュ経由でスペースを取得する
func (s *ReservationService) getSpace(ctx context.Context, spaceID string) (*space.Space, error) {
	if s.spaceCache != nil {
		if sp, err := s.spaceCache.Get(ctx, spaceID); err == nil {
			return sp, nil
		}
	}
	sp, err := s.spaceRepo.GetByID(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if s.spaceCache != nil {
		if err := s.spaceCache.Set(ctx, sp, spaceCacheTTL); err != nil {
			logger.Warn("スペースキャッシュの保存に失敗", zap.Error(err))
		}
	}
	return sp, nil
}

func (s *ReservationService) countReservation(status string) {
	if m := metrics.Get(); m != nil {
		m.ReservationsTotal.WithLabelValues(status).Inc()
	}
}

func (s *ReservationService) countRefund(status string) {
	if m := metrics.Get(); m != nil {
		m.RefundsTotal.WithLabelValues(status).Inc()
	}
}
