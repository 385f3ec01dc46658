package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-space-reservation/internal/domain/reservation"
)

// AvailabilityChecker はスペースの空き判定を行う
// 判定はあくまで事前チェックであり、並行作成時の最終的な整合性は
// ストレージの排他制約とスペース単位のロックが保証する
type AvailabilityChecker struct {
	reservationRepo reservation.Repository
}

// NewAvailabilityChecker は新しいAvailabilityCheckerを作成する
func NewAvailabilityChecker(repo reservation.Repository) *AvailabilityChecker {
	return &AvailabilityChecker{reservationRepo: repo}
}

// IsAvailable は指定スペース・時間枠が予約可能かを返す
// PENDING/CONFIRMEDの予約のみがブロックし、半開区間なので連続予約は可能
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, spaceID string, startTime, endTime time.Time, excludeID string) (bool, error) {
	blocking, err := c.reservationRepo.FindBlocking(ctx, spaceID, startTime, endTime, excludeID)
	if err != nil {
		return false, fmt.Errorf("重複予約の確認に失敗: %w", err)
	}
	for _, r := range blocking {
		if r.IsBlocking() && r.OverlapsWindow(startTime, endTime) {
			return false, nil
		}
	}
	return true, nil
}
