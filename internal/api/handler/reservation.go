package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-space-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-space-reservation/internal/application"
	"github.com/sanosuguru/go-space-reservation/internal/domain/reservation"
)

type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(s ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

type CreateReservationRequest struct {
	SpaceID   string    `json:"space_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	StartTime time.Time `json:"start_time" validate:"required" example:"2025-11-01T10:00:00+09:00"`
	EndTime   time.Time `json:"end_time" validate:"required" example:"2025-11-01T12:00:00+09:00"`
	PromoCode string    `json:"promo_code" example:"WELCOME10"`
}

type ReservationResponse struct {
	ID              string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	SpaceID         string     `json:"space_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	UserID          string     `json:"user_id" example:"user-123"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Status          string     `json:"status" example:"pending"`
	TotalAmount     string     `json:"total_amount" example:"45"`
	DiscountAmount  string     `json:"discount_amount" example:"5"`
	PromoCode       string     `json:"promo_code,omitempty" example:"WELCOME10"`
	RazorpayOrderID string     `json:"razorpay_order_id" example:"order_NXhT2aFqC1"`
	CheckInTime     *time.Time `json:"check_in_time,omitempty"`
	CheckOutTime    *time.Time `json:"check_out_time,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:              r.ID,
		SpaceID:         r.SpaceID,
		UserID:          r.UserID,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Status:          string(r.Status),
		TotalAmount:     r.TotalAmount.String(),
		DiscountAmount:  r.DiscountAmount.String(),
		PromoCode:       r.PromoCode,
		RazorpayOrderID: r.RazorpayOrderID,
		CheckInTime:     r.CheckInTime,
		CheckOutTime:    r.CheckOutTime,
		CreatedAt:       r.CreatedAt,
	}
}

func toReservationResponses(rs []*reservation.Reservation) []ReservationResponse {
	resp := make([]ReservationResponse, len(rs))
	for i, r := range rs {
		resp[i] = toReservationResponse(r)
	}
	return resp
}

// Create godoc
// @Summary 予約を作成
// @Description スペースの時間枠を押さえ、決済注文を発行します
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "時間枠が既に予約済み"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.service.CreateReservation(c.Request().Context(), application.CreateReservationInput{
		SpaceID:   req.SpaceID,
		UserID:    actor.ID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// GetByID godoc
// @Summary 予約を取得
// @Description 指定IDの予約を取得します（本人・スペースオーナー・スタッフのみ）
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	r, err := h.service.GetReservation(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// List godoc
// @Summary 予約一覧を取得
// @Description 役割に応じた予約一覧を取得します
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ReservationResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /reservations [get]
func (h *ReservationHandler) List(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	rs, err := h.service.ListReservations(c.Request().Context(), actor, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponses(rs))
}

// ListToday godoc
// @Summary 本日の予約一覧を取得
// @Description 本日開始の確定・チェックイン済み予約を取得します（スタッフ用）
// @Tags reservations
// @Produce json
// @Success 200 {array} ReservationResponse
// @Failure 403 {object} api.ErrorResponse
// @Router /reservations/today [get]
func (h *ReservationHandler) ListToday(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	rs, err := h.service.ListTodayReservations(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponses(rs))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約をキャンセルし、支払い済みの場合は返金を開始します
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	r, err := h.service.CancelReservation(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// CheckIn godoc
// @Summary チェックイン
// @Description 確定済み予約をチェックインします（スタッフ・スペースオーナーのみ）
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id}/check-in [post]
func (h *ReservationHandler) CheckIn(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	r, err := h.service.CheckIn(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// CheckOut godoc
// @Summary チェックアウト
// @Description チェックイン済み予約をチェックアウトします
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id}/check-out [post]
func (h *ReservationHandler) CheckOut(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	r, err := h.service.CheckOut(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// MarkNoShow godoc
// @Summary ノーショー登録
// @Description 来場しなかった確定予約をノーショー扱いにします
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id}/no-show [post]
func (h *ReservationHandler) MarkNoShow(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	r, err := h.service.MarkNoShow(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}
