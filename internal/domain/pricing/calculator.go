package pricing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-space-reservation/internal/domain/space"
)

var (
	ErrInvalidTimeRange = errors.New("開始時刻は終了時刻より前である必要があります")
)

// Quote は料金計算の結果を表す
type Quote struct {
	Base     decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	Rule     *space.PricingRule // 適用されたルール（ルールなしの場合はnil）
}

// Calculator は料金計算機
// 純粋な計算のみを行い、I/Oや副作用を持たない
type Calculator struct {
	promos PromoResolver
}

// NewCalculator は新しいCalculatorを作成する
func NewCalculator(promos PromoResolver) *Calculator {
	if promos == nil {
		promos = StaticPromoTable{}
	}
	return &Calculator{promos: promos}
}

// Calculate は時間枠と料金ルールから金額を算出する
// 料金 = レート × 利用時間（時間単位、端数可）。適用ルールはスペースの選択方針に従い、
// ルールが1つもない場合は基本料金0の縮退ケースとして扱う
func (c *Calculator) Calculate(sp *space.Space, startTime, endTime time.Time, promoCode string) (Quote, error) {
	if !startTime.Before(endTime) {
		return Quote{}, ErrInvalidTimeRange
	}

	durationHours := decimal.NewFromFloat(endTime.Sub(startTime).Hours())

	rule := sp.SelectRule(startTime)
	base := decimal.Zero
	if rule != nil {
		base = rule.Rate.Mul(durationHours)
	}

	discount := base.Mul(c.promos.Fraction(promoCode))
	total := base.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Quote{Base: base, Discount: discount, Total: total, Rule: rule}, nil
}
