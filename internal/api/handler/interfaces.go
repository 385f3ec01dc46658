package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-space-reservation/internal/application"
	"github.com/sanosuguru/go-space-reservation/internal/domain/reservation"
)

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	CreateReservation(ctx context.Context, input application.CreateReservationInput) (*reservation.Reservation, error)
	GetReservation(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error)
	ListReservations(ctx context.Context, actor reservation.Actor, limit, offset int) ([]*reservation.Reservation, error)
	ListTodayReservations(ctx context.Context, actor reservation.Actor) ([]*reservation.Reservation, error)
	CancelReservation(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error)
	CheckIn(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error)
	CheckOut(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error)
	MarkNoShow(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error)
	CancelExpiredReservations(ctx context.Context, expireAfter time.Duration) (int, error)
}

// PaymentServiceInterface は決済照合サービスのインターフェース
type PaymentServiceInterface interface {
	HandleWebhook(ctx context.Context, body []byte, signature string) (*application.ReconcileResult, error)
	VerifyPayment(orderID, paymentID, signature string) error
}

var (
	_ ReservationServiceInterface = (*application.ReservationService)(nil)
	_ PaymentServiceInterface     = (*application.PaymentService)(nil)
)
