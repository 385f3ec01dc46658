package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-space-reservation/internal/domain/payment"
	"github.com/sanosuguru/go-space-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-space-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-space-reservation/internal/domain/space"
	"github.com/sanosuguru/go-space-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-space-reservation/internal/pkg/clock"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockReservationRepository implements reservation.Repository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Create(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	args := m.Called(ctx, tx, r)
	return args.Error(0)
}

func (m *MockReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) GetByOrderID(ctx context.Context, orderID string) (*reservation.Reservation, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FindBlocking(ctx context.Context, spaceID string, startTime, endTime time.Time, excludeID string) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, spaceID, startTime, endTime, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListBySpaceIDs(ctx context.Context, spaceIDs []string, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, spaceIDs, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListAll(ctx context.Context, limit, offset int) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Update(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	args := m.Called(ctx, tx, r)
	return args.Error(0)
}

func (m *MockReservationRepository) GetStalePending(ctx context.Context, olderThan time.Time) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

// MockSpaceRepository implements space.Repository
type MockSpaceRepository struct {
	mock.Mock
}

func (m *MockSpaceRepository) GetByID(ctx context.Context, id string) (*space.Space, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*space.Space), args.Error(1)
}

func (m *MockSpaceRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]*space.Space, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*space.Space), args.Error(1)
}

// MockGateway implements payment.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*payment.Order, error) {
	args := m.Called(ctx, amount, currency, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	args := m.Called(orderID, paymentID, signature)
	return args.Bool(0)
}

func (m *MockGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	args := m.Called(body, signature)
	return args.Bool(0)
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*payment.Refund, error) {
	args := m.Called(ctx, paymentID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Refund), args.Error(1)
}

// === Test helper ===

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type testDeps struct {
	txManager *MockTxManager
	tx        *MockTx
	resRepo   *MockReservationRepository
	spaceRepo *MockSpaceRepository
	gateway   *MockGateway
	service   *ReservationService
}

func newTestDeps() *testDeps {
	txm := new(MockTxManager)
	tx := new(MockTx)
	resRepo := new(MockReservationRepository)
	spaceRepo := new(MockSpaceRepository)
	gateway := new(MockGateway)

	calc := pricing.NewCalculator(pricing.DefaultPromoTable())
	service := NewReservationService(txm, resRepo, spaceRepo, gateway, calc, nil, nil, clock.At(testNow), "INR")

	return &testDeps{
		txManager: txm,
		tx:        tx,
		resRepo:   resRepo,
		spaceRepo: spaceRepo,
		gateway:   gateway,
		service:   service,
	}
}

func activeSpace() *space.Space {
	return &space.Space{
		ID:       "space-1",
		OwnerID:  "owner-1",
		Name:     "会議室A",
		IsActive: true,
		PricingRules: []space.PricingRule{
			{Name: "標準", Type: space.RateHourly, Rate: decimal.NewFromInt(50), IsActive: true},
		},
	}
}

// === Tests ===

func TestReservationService_CreateReservation_Success(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	start := testNow.Add(1 * time.Hour)
	input := CreateReservationInput{
		SpaceID:   "space-1",
		UserID:    "user-1",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		PromoCode: "WELCOME10",
	}

	deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)
	deps.resRepo.On("FindBlocking", ctx, "space-1", input.StartTime, input.EndTime, "").
		Return([]*reservation.Reservation{}, nil)

	// 割引後の金額で注文が作成される（50×2時間 = 100、10%引きで90）
	deps.gateway.On("CreateOrder", ctx, mock.MatchedBy(func(amount decimal.Decimal) bool {
		return amount.Equal(decimal.NewFromInt(90))
	}), "INR", mock.AnythingOfType("string")).
		Return(&payment.Order{ID: "order_abc", Amount: 9000, Currency: "INR"}, nil)

	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.resRepo.On("Create", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).Return(nil)

	result, err := deps.service.CreateReservation(ctx, input)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "space-1", result.SpaceID)
	assert.Equal(t, "user-1", result.UserID)
	assert.Equal(t, reservation.StatusPending, result.Status)
	assert.Equal(t, "order_abc", result.RazorpayOrderID)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(90)))
	assert.True(t, result.DiscountAmount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "WELCOME10", result.PromoCode)

	deps.txManager.AssertExpectations(t)
	deps.resRepo.AssertExpectations(t)
	deps.gateway.AssertExpectations(t)
}

func TestReservationService_CreateReservation_InvalidInput(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()
	start := testNow.Add(1 * time.Hour)

	tests := []struct {
		name    string
		input   CreateReservationInput
		wantErr error
	}{
		{
			name:    "終了が開始より前",
			input:   CreateReservationInput{SpaceID: "space-1", UserID: "user-1", StartTime: start, EndTime: start.Add(-time.Hour)},
			wantErr: reservation.ErrInvalidTimeRange,
		},
		{
			name:    "開始と終了が同時刻",
			input:   CreateReservationInput{SpaceID: "space-1", UserID: "user-1", StartTime: start, EndTime: start},
			wantErr: reservation.ErrInvalidTimeRange,
		},
		{
			name:    "スペースID未指定",
			input:   CreateReservationInput{UserID: "user-1", StartTime: start, EndTime: start.Add(time.Hour)},
			wantErr: reservation.ErrSpaceIDRequired,
		},
		{
			name:    "ユーザーID未指定",
			input:   CreateReservationInput{SpaceID: "space-1", StartTime: start, EndTime: start.Add(time.Hour)},
			wantErr: reservation.ErrUserIDRequired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := deps.service.CreateReservation(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
		})
	}

	// 検証で弾かれた場合は外部注文を作成しない
	deps.gateway.AssertNotCalled(t, "CreateOrder")
}

func TestReservationService_CreateReservation_SpaceInactive(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	sp := activeSpace()
	sp.IsActive = false
	deps.spaceRepo.On("GetByID", ctx, "space-1").Return(sp, nil)

	start := testNow.Add(1 * time.Hour)
	result, err := deps.service.CreateReservation(ctx, CreateReservationInput{
		SpaceID: "space-1", UserID: "user-1", StartTime: start, EndTime: start.Add(time.Hour),
	})

	assert.ErrorIs(t, err, space.ErrSpaceInactive)
	assert.Nil(t, result)
	deps.gateway.AssertNotCalled(t, "CreateOrder")
}

func TestReservationService_CreateReservation_SlotConflict(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	start := testNow.Add(1 * time.Hour)
	end := start.Add(2 * time.Hour)

	deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)

	blocking := []*reservation.Reservation{{
		ID: "res-existing", SpaceID: "space-1", UserID: "user-2",
		StartTime: start.Add(30 * time.Minute), EndTime: end.Add(time.Hour),
		Status: reservation.StatusConfirmed,
	}}
	deps.resRepo.On("FindBlocking", ctx, "space-1", start, end, "").Return(blocking, nil)

	result, err := deps.service.CreateReservation(ctx, CreateReservationInput{
		SpaceID: "space-1", UserID: "user-1", StartTime: start, EndTime: end,
	})

	assert.ErrorIs(t, err, reservation.ErrSlotAlreadyBooked)
	assert.Nil(t, result)

	// 枠が埋まっている場合は外部注文もDB書き込みも行わない
	deps.gateway.AssertNotCalled(t, "CreateOrder")
	deps.txManager.AssertNotCalled(t, "Begin")
}

func TestReservationService_CreateReservation_AdjacentSlotAllowed(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	start := testNow.Add(1 * time.Hour)
	end := start.Add(time.Hour)

	deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)

	// 既存予約は [end, end+1h)。半開区間なので連続予約は重ならない
	adjacent := []*reservation.Reservation{{
		ID: "res-next", SpaceID: "space-1", UserID: "user-2",
		StartTime: end, EndTime: end.Add(time.Hour),
		Status: reservation.StatusConfirmed,
	}}
	deps.resRepo.On("FindBlocking", ctx, "space-1", start, end, "").Return(adjacent, nil)

	deps.gateway.On("CreateOrder", ctx, mock.Anything, "INR", mock.AnythingOfType("string")).
		Return(&payment.Order{ID: "order_adj"}, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.resRepo.On("Create", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).Return(nil)

	result, err := deps.service.CreateReservation(ctx, CreateReservationInput{
		SpaceID: "space-1", UserID: "user-1", StartTime: start, EndTime: end,
	})

	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPending, result.Status)
}

func TestReservationService_CreateReservation_GatewayError(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	start := testNow.Add(1 * time.Hour)
	deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)
	deps.resRepo.On("FindBlocking", ctx, "space-1", start, start.Add(time.Hour), "").
		Return([]*reservation.Reservation{}, nil)
	deps.gateway.On("CreateOrder", ctx, mock.Anything, "INR", mock.AnythingOfType("string")).
		Return(nil, payment.ErrGatewayRequestFailed)

	result, err := deps.service.CreateReservation(ctx, CreateReservationInput{
		SpaceID: "space-1", UserID: "user-1", StartTime: start, EndTime: start.Add(time.Hour),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrGatewayRequestFailed)
	assert.Nil(t, result)
	deps.txManager.AssertNotCalled(t, "Begin")
}

func TestReservationService_CreateReservation_InsertConflict(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	start := testNow.Add(1 * time.Hour)
	deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)
	deps.resRepo.On("FindBlocking", ctx, "space-1", start, start.Add(time.Hour), "").
		Return([]*reservation.Reservation{}, nil)
	deps.gateway.On("CreateOrder", ctx, mock.Anything, "INR", mock.AnythingOfType("string")).
		Return(&payment.Order{ID: "order_abc"}, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)

	// 排他制約違反（同時リクエストに先を越されたケース）
	deps.resRepo.On("Create", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).
		Return(reservation.ErrSlotAlreadyBooked)

	result, err := deps.service.CreateReservation(ctx, CreateReservationInput{
		SpaceID: "space-1", UserID: "user-1", StartTime: start, EndTime: start.Add(time.Hour),
	})

	assert.ErrorIs(t, err, reservation.ErrSlotAlreadyBooked)
	assert.Nil(t, result)
	deps.tx.AssertNotCalled(t, "Commit")
}

func TestReservationService_CreateReservation_CommitFailed(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	start := testNow.Add(1 * time.Hour)
	deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)
	deps.resRepo.On("FindBlocking", ctx, "space-1", start, start.Add(time.Hour), "").
		Return([]*reservation.Reservation{}, nil)
	deps.gateway.On("CreateOrder", ctx, mock.Anything, "INR", mock.AnythingOfType("string")).
		Return(&payment.Order{ID: "order_abc"}, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(errors.New("commit error"))
	deps.resRepo.On("Create", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).Return(nil)

	result, err := deps.service.CreateReservation(ctx, CreateReservationInput{
		SpaceID: "space-1", UserID: "user-1", StartTime: start, EndTime: start.Add(time.Hour),
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "コミットに失敗")
}

func TestReservationService_GetReservation(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	res := &reservation.Reservation{ID: "res-1", SpaceID: "space-1", UserID: "user-1"}
	deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)
	deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)

	t.Run("本人は取得できる", func(t *testing.T) {
		result, err := deps.service.GetReservation(ctx, reservation.Actor{ID: "user-1", Role: reservation.RoleConsumer}, "res-1")
		require.NoError(t, err)
		assert.Equal(t, res, result)
	})

	t.Run("他人の予約は取得できない", func(t *testing.T) {
		result, err := deps.service.GetReservation(ctx, reservation.Actor{ID: "user-2", Role: reservation.RoleConsumer}, "res-1")
		assert.ErrorIs(t, err, reservation.ErrNotAllowed)
		assert.Nil(t, result)
	})

	t.Run("スタッフは取得できる", func(t *testing.T) {
		result, err := deps.service.GetReservation(ctx, reservation.Actor{ID: "staff-1", Role: reservation.RoleStaff}, "res-1")
		require.NoError(t, err)
		assert.Equal(t, res, result)
	})
}

func TestReservationService_ListReservations(t *testing.T) {
	ctx := context.Background()

	t.Run("consumerは自身の予約のみ", func(t *testing.T) {
		deps := newTestDeps()
		expected := []*reservation.Reservation{{ID: "res-1", UserID: "user-1"}}
		deps.resRepo.On("ListByUserID", ctx, "user-1", 20, 0).Return(expected, nil)

		result, err := deps.service.ListReservations(ctx, reservation.Actor{ID: "user-1", Role: reservation.RoleConsumer}, 0, 0)
		require.NoError(t, err)
		assert.Len(t, result, 1)
	})

	t.Run("brand_ownerは所有スペースの予約", func(t *testing.T) {
		deps := newTestDeps()
		deps.spaceRepo.On("GetByOwnerID", ctx, "owner-1").
			Return([]*space.Space{{ID: "space-1"}, {ID: "space-2"}}, nil)
		expected := []*reservation.Reservation{{ID: "res-1"}, {ID: "res-2"}}
		deps.resRepo.On("ListBySpaceIDs", ctx, []string{"space-1", "space-2"}, 20, 0).Return(expected, nil)

		result, err := deps.service.ListReservations(ctx, reservation.Actor{ID: "owner-1", Role: reservation.RoleBrandOwner}, 0, 0)
		require.NoError(t, err)
		assert.Len(t, result, 2)
	})

	t.Run("staffは全予約", func(t *testing.T) {
		deps := newTestDeps()
		deps.resRepo.On("ListAll", ctx, 50, 10).Return([]*reservation.Reservation{}, nil)

		_, err := deps.service.ListReservations(ctx, reservation.Actor{ID: "staff-1", Role: reservation.RoleStaff}, 50, 10)
		require.NoError(t, err)
	})

	t.Run("上限を超えるlimitは丸められる", func(t *testing.T) {
		deps := newTestDeps()
		deps.resRepo.On("ListAll", ctx, 100, 0).Return([]*reservation.Reservation{}, nil)

		_, err := deps.service.ListReservations(ctx, reservation.Actor{ID: "staff-1", Role: reservation.RoleStaff}, 500, 0)
		require.NoError(t, err)
	})
}

func TestReservationService_ListTodayReservations(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	today := time.Date(testNow.Year(), testNow.Month(), testNow.Day(), 0, 0, 0, 0, testNow.Location())
	deps.resRepo.On("ListStartingBetween", ctx, today, today.AddDate(0, 0, 1)).
		Return([]*reservation.Reservation{{ID: "res-1"}}, nil)

	result, err := deps.service.ListTodayReservations(ctx, reservation.Actor{ID: "staff-1", Role: reservation.RoleStaff})
	require.NoError(t, err)
	assert.Len(t, result, 1)

	// スタッフ以外は拒否
	_, err = deps.service.ListTodayReservations(ctx, reservation.Actor{ID: "user-1", Role: reservation.RoleConsumer})
	assert.ErrorIs(t, err, reservation.ErrNotAllowed)
}

func TestReservationService_CancelReservation_PendingNoRefund(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	res := &reservation.Reservation{
		ID: "res-1", SpaceID: "space-1", UserID: "user-1",
		Status: reservation.StatusPending,
	}
	deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.resRepo.On("Update", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).Return(nil)

	result, err := deps.service.CancelReservation(ctx, reservation.Actor{ID: "user-1", Role: reservation.RoleConsumer}, "res-1")

	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, result.Status)

	// 支払い前のキャンセルは返金しない
	deps.gateway.AssertNotCalled(t, "Refund")
}

func TestReservationService_CancelReservation_ConfirmedWithRefund(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	total := decimal.NewFromInt(90)
	res := &reservation.Reservation{
		ID: "res-1", SpaceID: "space-1", UserID: "user-1",
		Status: reservation.StatusConfirmed, TotalAmount: total,
		RazorpayPaymentID: "pay_001",
	}
	deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.resRepo.On("Update", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).Return(nil)

	deps.gateway.On("Refund", ctx, "pay_001", total).
		Return(&payment.Refund{ID: "rfnd_001", PaymentID: "pay_001"}, nil).Once()

	result, err := deps.service.CancelReservation(ctx, reservation.Actor{ID: "user-1", Role: reservation.RoleConsumer}, "res-1")

	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, result.Status)

	// 返金は全額に対して一度だけ
	deps.gateway.AssertNumberOfCalls(t, "Refund", 1)
}

func TestReservationService_CancelReservation_RefundFailureDoesNotRevert(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	total := decimal.NewFromInt(90)
	res := &reservation.Reservation{
		ID: "res-1", SpaceID: "space-1", UserID: "user-1",
		Status: reservation.StatusConfirmed, TotalAmount: total,
		RazorpayPaymentID: "pay_001",
	}
	deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.resRepo.On("Update", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).Return(nil)
	deps.gateway.On("Refund", ctx, "pay_001", total).Return(nil, payment.ErrGatewayRequestFailed)

	// 返金失敗でもキャンセル自体は成功として返る
	result, err := deps.service.CancelReservation(ctx, reservation.Actor{ID: "user-1", Role: reservation.RoleConsumer}, "res-1")

	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, result.Status)
}

func TestReservationService_CancelReservation_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("予約が見つからない", func(t *testing.T) {
		deps := newTestDeps()
		deps.resRepo.On("GetByID", ctx, "nonexistent").Return(nil, reservation.ErrReservationNotFound)

		result, err := deps.service.CancelReservation(ctx, reservation.Actor{ID: "user-1"}, "nonexistent")
		assert.ErrorIs(t, err, reservation.ErrReservationNotFound)
		assert.Nil(t, result)
	})

	t.Run("本人以外はキャンセル不可", func(t *testing.T) {
		deps := newTestDeps()
		res := &reservation.Reservation{ID: "res-1", UserID: "user-1", Status: reservation.StatusPending}
		deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)

		result, err := deps.service.CancelReservation(ctx, reservation.Actor{ID: "user-2", Role: reservation.RoleConsumer}, "res-1")
		assert.ErrorIs(t, err, reservation.ErrNotAllowed)
		assert.Nil(t, result)
	})

	t.Run("チェックイン済みはキャンセル不可", func(t *testing.T) {
		deps := newTestDeps()
		res := &reservation.Reservation{ID: "res-1", UserID: "user-1", Status: reservation.StatusCheckedIn}
		deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)

		result, err := deps.service.CancelReservation(ctx, reservation.Actor{ID: "user-1", Role: reservation.RoleConsumer}, "res-1")
		assert.ErrorIs(t, err, reservation.ErrInvalidTransition)
		assert.Nil(t, result)
		deps.txManager.AssertNotCalled(t, "Begin")
	})
}

func TestReservationService_CheckInCheckOut(t *testing.T) {
	ctx := context.Background()
	staff := reservation.Actor{ID: "staff-1", Role: reservation.RoleStaff}

	t.Run("スタッフによるチェックインとチェックアウト", func(t *testing.T) {
		deps := newTestDeps()
		res := &reservation.Reservation{
			ID: "res-1", SpaceID: "space-1", UserID: "user-1",
			Status: reservation.StatusConfirmed,
		}
		deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)
		deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)
		deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
		deps.tx.On("Rollback").Return(nil)
		deps.tx.On("Commit").Return(nil)
		deps.resRepo.On("Update", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).Return(nil)

		result, err := deps.service.CheckIn(ctx, staff, "res-1")
		require.NoError(t, err)
		assert.Equal(t, reservation.StatusCheckedIn, result.Status)
		require.NotNil(t, result.CheckInTime)
		assert.Equal(t, testNow, *result.CheckInTime)

		result, err = deps.service.CheckOut(ctx, staff, "res-1")
		require.NoError(t, err)
		assert.Equal(t, reservation.StatusCheckedOut, result.Status)
		require.NotNil(t, result.CheckOutTime)
	})

	t.Run("オーナーは自身のスペースのみ操作可能", func(t *testing.T) {
		deps := newTestDeps()
		res := &reservation.Reservation{
			ID: "res-1", SpaceID: "space-1", UserID: "user-1",
			Status: reservation.StatusConfirmed,
		}
		deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)
		deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)

		result, err := deps.service.CheckIn(ctx, reservation.Actor{ID: "owner-2", Role: reservation.RoleBrandOwner}, "res-1")
		assert.ErrorIs(t, err, reservation.ErrNotAllowed)
		assert.Nil(t, result)
	})

	t.Run("一般ユーザーはチェックイン不可", func(t *testing.T) {
		deps := newTestDeps()
		res := &reservation.Reservation{
			ID: "res-1", SpaceID: "space-1", UserID: "user-1",
			Status: reservation.StatusConfirmed,
		}
		deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)
		deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)

		result, err := deps.service.CheckIn(ctx, reservation.Actor{ID: "user-1", Role: reservation.RoleConsumer}, "res-1")
		assert.ErrorIs(t, err, reservation.ErrNotAllowed)
		assert.Nil(t, result)
	})

	t.Run("Pendingからのチェックインは状態遷移エラー", func(t *testing.T) {
		deps := newTestDeps()
		res := &reservation.Reservation{
			ID: "res-1", SpaceID: "space-1", UserID: "user-1",
			Status: reservation.StatusPending,
		}
		deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)
		deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)

		result, err := deps.service.CheckIn(ctx, staff, "res-1")
		assert.ErrorIs(t, err, reservation.ErrInvalidTransition)
		assert.Nil(t, result)
	})
}

func TestReservationService_MarkNoShow(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	res := &reservation.Reservation{
		ID: "res-1", SpaceID: "space-1", UserID: "user-1",
		Status: reservation.StatusConfirmed,
	}
	deps.resRepo.On("GetByID", ctx, "res-1").Return(res, nil)
	deps.spaceRepo.On("GetByID", ctx, "space-1").Return(activeSpace(), nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.resRepo.On("Update", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).Return(nil)

	result, err := deps.service.MarkNoShow(ctx, reservation.Actor{ID: "owner-1", Role: reservation.RoleBrandOwner}, "res-1")

	require.NoError(t, err)
	assert.Equal(t, reservation.StatusNoShow, result.Status)
}

func TestReservationService_CancelExpiredReservations(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	stale := []*reservation.Reservation{
		{ID: "res-1", SpaceID: "space-1", UserID: "user-1", Status: reservation.StatusPending},
		{ID: "res-2", SpaceID: "space-2", UserID: "user-2", Status: reservation.StatusPending},
	}
	expireAfter := 30 * time.Minute
	deps.resRepo.On("GetStalePending", ctx, testNow.Add(-expireAfter)).Return(stale, nil)

	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.resRepo.On("Update", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation")).Return(nil)

	count, err := deps.service.CancelExpiredReservations(ctx, expireAfter)

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, reservation.StatusCancelled, stale[0].Status)
	assert.Equal(t, reservation.StatusCancelled, stale[1].Status)
}

func TestReservationService_CancelExpiredReservations_PartialFailure(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	stale := []*reservation.Reservation{
		{ID: "res-1", SpaceID: "space-1", UserID: "user-1", Status: reservation.StatusPending},
		{ID: "res-2", SpaceID: "space-2", UserID: "user-2", Status: reservation.StatusPending},
	}
	deps.resRepo.On("GetStalePending", ctx, mock.AnythingOfType("time.Time")).Return(stale, nil)

	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.resRepo.On("Update", ctx, deps.tx, stale[0]).Return(errors.New("update error")).Once()
	deps.resRepo.On("Update", ctx, deps.tx, stale[1]).Return(nil).Once()

	count, err := deps.service.CancelExpiredReservations(ctx, 30*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
