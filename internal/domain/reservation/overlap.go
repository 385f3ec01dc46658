package reservation

import "time"

// Overlaps は2つの半開区間 [aStart, aEnd) と [bStart, bEnd) が重なるかを返す
// 厳密な不等号により、前の予約の終了と次の予約の開始が同時刻の連続予約は許可される
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
