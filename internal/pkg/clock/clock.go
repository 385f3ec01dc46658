package clock

import "time"

// Clock は現在時刻の取得を抽象化する
// テストでチェックイン時刻や時間枠の境界条件を固定できるようにする
type Clock interface {
	Now() time.Time
}

// Real はシステム時刻を返すClock
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

// Fixed は固定時刻を返すClock（テスト用）
type Fixed struct {
	Time time.Time
}

func (f Fixed) Now() time.Time {
	return f.Time
}

// At は指定時刻のFixedを返す
func At(t time.Time) Fixed {
	return Fixed{Time: t}
}
