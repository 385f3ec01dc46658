package reservation

import "errors"

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound = errors.New("予約が見つかりません")
	ErrInvalidTransition   = errors.New("この予約状態では実行できない操作です")
	ErrSlotAlreadyBooked   = errors.New("指定の時間枠は既に予約されています")
	ErrInvalidTimeRange    = errors.New("開始時刻は終了時刻より前である必要があります")
	ErrNotAllowed          = errors.New("この予約を操作する権限がありません")
	ErrSpaceIDRequired     = errors.New("スペースIDは必須です")
	ErrUserIDRequired      = errors.New("ユーザーIDは必須です")
)
