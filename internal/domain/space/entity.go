package space

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateType は料金ルールの課金単位を表す
type RateType string

const (
	RateHourly  RateType = "hourly"
	RateDaily   RateType = "daily"
	RateMonthly RateType = "monthly"
)

// PricingRule はスペースに紐づく料金ルールを表す
// StartTime/EndTime は "HH:mm" 形式の時間帯制限、DaysOfWeek は曜日制限（小文字英語）
type PricingRule struct {
	Name       string
	Type       RateType
	Rate       decimal.Decimal
	IsActive   bool
	StartTime  string
	EndTime    string
	DaysOfWeek []string
	Multiplier decimal.Decimal // ピーク倍率（予約計算では未使用、メタデータとして保持）
}

// Space はブランドオーナーが所有する予約可能なスペースを表す
type Space struct {
	ID           string
	OwnerID      string
	Name         string
	Description  string
	Address      string
	Capacity     int
	IsActive     bool
	PricingRules []PricingRule
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Matches はルールが指定開始時刻に適用可能かを返す
// 時間帯・曜日の制限が未設定の場合はその条件を満たすものとして扱う
func (p *PricingRule) Matches(startAt time.Time) bool {
	if !p.IsActive {
		return false
	}
	if len(p.DaysOfWeek) > 0 {
		day := strings.ToLower(startAt.Weekday().String())
		found := false
		for _, d := range p.DaysOfWeek {
			if strings.ToLower(d) == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.StartTime != "" && p.EndTime != "" {
		hm := startAt.Format("15:04")
		if hm < p.StartTime || hm >= p.EndTime {
			return false
		}
	}
	return true
}

// SelectRule は適用する料金ルールを決定的に選択する
// 先頭から最初にマッチするアクティブなルールを返し、マッチしない場合は先頭ルールに
// フォールバックする。ルールが1つもない場合は nil を返す
func (s *Space) SelectRule(startAt time.Time) *PricingRule {
	for i := range s.PricingRules {
		if s.PricingRules[i].Matches(startAt) {
			return &s.PricingRules[i]
		}
	}
	if len(s.PricingRules) > 0 {
		return &s.PricingRules[0]
	}
	return nil
}

// Validate はスペースの検証を行う
func (s *Space) Validate() error {
	if s.Name == "" {
		return ErrSpaceNameRequired
	}
	if s.OwnerID == "" {
		return ErrOwnerIDRequired
	}
	return nil
}
