package reservation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCancelled  Status = "cancelled"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusNoShow     Status = "no_show"
)

// Reservation は予約エンティティを表す
// 状態遷移は必ずこのエンティティのメソッドを経由する
type Reservation struct {
	ID                string
	SpaceID           string
	UserID            string
	StartTime         time.Time
	EndTime           time.Time
	Status            Status
	TotalAmount       decimal.Decimal
	DiscountAmount    decimal.Decimal
	PromoCode         string
	RazorpayOrderID   string
	RazorpayPaymentID string
	CheckInTime       *time.Time
	CheckOutTime      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewReservation は新しい保留中予約を作成する
func NewReservation(spaceID, userID string, startTime, endTime time.Time, total, discount decimal.Decimal, promoCode, orderID string, now time.Time) *Reservation {
	return &Reservation{
		SpaceID:         spaceID,
		UserID:          userID,
		StartTime:       startTime,
		EndTime:         endTime,
		Status:          StatusPending,
		TotalAmount:     total,
		DiscountAmount:  discount,
		PromoCode:       promoCode,
		RazorpayOrderID: orderID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.SpaceID == "" {
		return ErrSpaceIDRequired
	}
	if r.UserID == "" {
		return ErrUserIDRequired
	}
	if !r.StartTime.Before(r.EndTime) {
		return ErrInvalidTimeRange
	}
	return nil
}

// IsBlocking は予約が時間枠を占有するかを返す
// PENDINGとCONFIRMEDのみが他の予約をブロックする
func (r *Reservation) IsBlocking() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// IsTerminal は予約が終端状態かを返す
func (r *Reservation) IsTerminal() bool {
	switch r.Status {
	case StatusCancelled, StatusCheckedOut, StatusNoShow:
		return true
	}
	return false
}

// OverlapsWindow は予約の時間枠が指定区間と重なるかを返す
func (r *Reservation) OverlapsWindow(startTime, endTime time.Time) bool {
	return Overlaps(r.StartTime, r.EndTime, startTime, endTime)
}

// ConfirmPayment は支払い完了イベントで予約を確定する（PENDING → CONFIRMED）
// 支払いIDはこの遷移で一度だけ記録され、確定後に上書きされることはない
func (r *Reservation) ConfirmPayment(paymentID string, now time.Time) error {
	if r.Status != StatusPending {
		return ErrInvalidTransition
	}
	r.RazorpayPaymentID = paymentID
	r.Status = StatusConfirmed
	r.UpdatedAt = now
	return nil
}

// FailPayment は支払い失敗イベントで予約を取り消す（PENDING → CANCELLED）
func (r *Reservation) FailPayment(now time.Time) error {
	if r.Status != StatusPending {
		return ErrInvalidTransition
	}
	r.Status = StatusCancelled
	r.UpdatedAt = now
	return nil
}

// Cancel はユーザーによるキャンセル（PENDING/CONFIRMED → CANCELLED）
func (r *Reservation) Cancel(now time.Time) error {
	if r.Status != StatusPending && r.Status != StatusConfirmed {
		return ErrInvalidTransition
	}
	r.Status = StatusCancelled
	r.UpdatedAt = now
	return nil
}

// CheckIn はチェックイン（CONFIRMED → CHECKED_IN）
func (r *Reservation) CheckIn(now time.Time) error {
	if r.Status != StatusConfirmed {
		return ErrInvalidTransition
	}
	r.Status = StatusCheckedIn
	r.CheckInTime = &now
	r.UpdatedAt = now
	return nil
}

// CheckOut はチェックアウト（CHECKED_IN → CHECKED_OUT）
func (r *Reservation) CheckOut(now time.Time) error {
	if r.Status != StatusCheckedIn {
		return ErrInvalidTransition
	}
	r.Status = StatusCheckedOut
	r.CheckOutTime = &now
	r.UpdatedAt = now
	return nil
}

// MarkNoShow は無断キャンセル扱いにする（CONFIRMED → NO_SHOW）
func (r *Reservation) MarkNoShow(now time.Time) error {
	if r.Status != StatusConfirmed {
		return ErrInvalidTransition
	}
	r.Status = StatusNoShow
	r.UpdatedAt = now
	return nil
}
