package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-space-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-space-reservation/internal/domain/transaction"
)

const reservationColumns = `id, space_id, user_id, start_time, end_time, status, total_amount, discount_amount, promo_code, razorpay_order_id, razorpay_payment_id, check_in_time, check_out_time, created_at, updated_at`

type reservationRow struct {
	ID                string          `db:"id"`
	SpaceID           string          `db:"space_id"`
	UserID            string          `db:"user_id"`
	StartTime         time.Time       `db:"start_time"`
	EndTime           time.Time       `db:"end_time"`
	Status            string          `db:"status"`
	TotalAmount       decimal.Decimal `db:"total_amount"`
	DiscountAmount    decimal.Decimal `db:"discount_amount"`
	PromoCode         sql.NullString  `db:"promo_code"`
	RazorpayOrderID   string          `db:"razorpay_order_id"`
	RazorpayPaymentID sql.NullString  `db:"razorpay_payment_id"`
	CheckInTime       *time.Time      `db:"check_in_time"`
	CheckOutTime      *time.Time      `db:"check_out_time"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r *reservationRow) toEntity() *reservation.Reservation {
	return &reservation.Reservation{
		ID:                r.ID,
		SpaceID:           r.SpaceID,
		UserID:            r.UserID,
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		Status:            reservation.Status(r.Status),
		TotalAmount:       r.TotalAmount,
		DiscountAmount:    r.DiscountAmount,
		PromoCode:         r.PromoCode.String,
		RazorpayOrderID:   r.RazorpayOrderID,
		RazorpayPaymentID: r.RazorpayPaymentID.String,
		CheckInTime:       r.CheckInTime,
		CheckOutTime:      r.CheckOutTime,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create は予約を挿入する
// 時間枠の重複はEXCLUDE制約（23P01）が最終防衛線となり、ErrSlotAlreadyBookedに変換する
func (r *ReservationRepository) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが不正です")
	}

	query := `INSERT INTO reservations (space_id, user_id, start_time, end_time, status, total_amount, discount_amount, promo_code, razorpay_order_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11) RETURNING id`
	err := sqlxTx.QueryRowContext(ctx, query,
		res.SpaceID, res.UserID, res.StartTime, res.EndTime, string(res.Status),
		res.TotalAmount, res.DiscountAmount, res.PromoCode, res.RazorpayOrderID,
		res.CreatedAt, res.UpdatedAt,
	).Scan(&res.ID)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23P01": // exclusion_violation
				return reservation.ErrSlotAlreadyBooked
			case "23505": // unique_violation（razorpay_order_id）
				return fmt.Errorf("注文IDが重複しています: %w", err)
			}
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) GetByOrderID(ctx context.Context, orderID string) (*reservation.Reservation, error) {
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE razorpay_order_id = $1`
	if err := r.db.GetContext(ctx, &row, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) FindBlocking(ctx context.Context, spaceID string, startTime, endTime time.Time, excludeID string) ([]*reservation.Reservation, error) {
	// 半開区間 [start, end) の重なり判定: s1 < e2 AND s2 < e1
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE space_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3
		  AND $2 < end_time
		  AND ($4 = '' OR id::text <> $4)`
	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, query, spaceID, startTime, endTime, excludeID); err != nil {
		return nil, fmt.Errorf("重複予約の検索に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) ListBySpaceIDs(ctx context.Context, spaceIDs []string, limit, offset int) ([]*reservation.Reservation, error) {
	if len(spaceIDs) == 0 {
		return nil, nil
	}
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE space_id = ANY($1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(spaceIDs), limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) ListAll(ctx context.Context, limit, offset int) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE start_time >= $1 AND start_time < $2
		  AND status IN ('confirmed', 'checked_in')
		ORDER BY start_time ASC`
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func (r *ReservationRepository) Update(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("トランザクションが不正です")
	}

	// 終端状態の行は上書きしない。読み取り後に別の遷移がコミットされた場合、
	// 遅れてきた更新はここで0行になる
	query := `UPDATE reservations
		SET status = $1, razorpay_payment_id = NULLIF($2, ''), check_in_time = $3, check_out_time = $4, updated_at = $5
		WHERE id = $6 AND status IN ('pending', 'confirmed', 'checked_in')`
	result, err := sqlxTx.ExecContext(ctx, query,
		string(res.Status), res.RazorpayPaymentID, res.CheckInTime, res.CheckOutTime, res.UpdatedAt, res.ID,
	)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var current string
		if err := sqlxTx.GetContext(ctx, &current, `SELECT status FROM reservations WHERE id = $1`, res.ID); err != nil {
			return reservation.ErrReservationNotFound
		}
		return fmt.Errorf("予約 %s は %s のため更新できません: %w", res.ID, current, reservation.ErrInvalidTransition)
	}
	return nil
}

func (r *ReservationRepository) GetStalePending(ctx context.Context, olderThan time.Time) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE status = 'pending' AND created_at < $1`
	if err := r.db.SelectContext(ctx, &rows, query, olderThan); err != nil {
		return nil, fmt.Errorf("期限切れ保留予約の取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func toEntities(rows []reservationRow) []*reservation.Reservation {
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

var _ reservation.Repository = (*ReservationRepository)(nil)
