package reservation

import (
	"context"
	"time"

	"github.com/sanosuguru/go-space-reservation/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	// 同一スペースの時間枠が重なるPENDING/CONFIRMED予約が既に存在する場合は
	// ErrSlotAlreadyBookedを返す
	Create(ctx context.Context, tx transaction.Tx, reservation *Reservation) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Reservation, error)

	// GetByOrderID は外部注文IDから予約を取得する（支払い照合用）
	GetByOrderID(ctx context.Context, orderID string) (*Reservation, error)

	// FindBlocking は指定スペース・時間枠と重なるPENDING/CONFIRMED予約を取得する
	// excludeID が空でない場合、そのIDの予約は除外する
	FindBlocking(ctx context.Context, spaceID string, startTime, endTime time.Time, excludeID string) ([]*Reservation, error)

	// ListByUserID はユーザーIDから予約一覧を取得する
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*Reservation, error)

	// ListBySpaceIDs はスペースID群に属する予約一覧を取得する
	ListBySpaceIDs(ctx context.Context, spaceIDs []string, limit, offset int) ([]*Reservation, error)

	// ListAll は全予約一覧を取得する（スタッフ用）
	ListAll(ctx context.Context, limit, offset int) ([]*Reservation, error)

	// ListStartingBetween は指定期間に開始するCONFIRMED/CHECKED_IN予約を取得する
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*Reservation, error)

	// Update は予約を更新する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, reservation *Reservation) error

	// GetStalePending は作成からexpireAfter以上経過した保留中予約を取得する
	GetStalePending(ctx context.Context, olderThan time.Time) ([]*Reservation, error)
}
