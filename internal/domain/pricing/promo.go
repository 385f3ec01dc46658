package pricing

import "github.com/shopspring/decimal"

// PromoResolver はプロモーションコードから割引率を解決する
// 未知のコードは割引率0を返し、エラーにはしない
type PromoResolver interface {
	Fraction(code string) decimal.Decimal
}

// StaticPromoTable はコード→割引率の固定テーブル
type StaticPromoTable map[string]decimal.Decimal

func (t StaticPromoTable) Fraction(code string) decimal.Decimal {
	if f, ok := t[code]; ok {
		return f
	}
	return decimal.Zero
}

// DefaultPromoTable は既定のプロモーションコード表を返す
func DefaultPromoTable() StaticPromoTable {
	return StaticPromoTable{
		"WELCOME10": decimal.NewFromFloat(0.10),
	}
}
