package reservation

// Role は認証済みユーザーの役割を表す
type Role string

const (
	RoleConsumer   Role = "consumer"
	RoleBrandOwner Role = "brand_owner"
	RoleStaff      Role = "staff"
)

// Actor は認証済みの操作主体を表す
// 認証自体は外部の責務であり、ここでは確定済みのID・役割のみを扱う
type Actor struct {
	ID   string
	Role Role
}

// CanCancel は予約のキャンセル権限を判定する
// キャンセルできるのは予約者本人のみ
func (a Actor) CanCancel(r *Reservation) bool {
	return a.ID == r.UserID
}

// CanOperate はチェックイン・チェックアウト・ノーショー登録の権限を判定する
// スタッフは全予約を、ブランドオーナーは自身のスペースの予約のみ操作できる
func (a Actor) CanOperate(r *Reservation, spaceOwnerID string) bool {
	if a.Role == RoleStaff {
		return true
	}
	return a.Role == RoleBrandOwner && a.ID == spaceOwnerID
}

// CanView は予約の閲覧権限を判定する
func (a Actor) CanView(r *Reservation, spaceOwnerID string) bool {
	switch a.Role {
	case RoleStaff:
		return true
	case RoleBrandOwner:
		return a.ID == spaceOwnerID
	default:
		return a.ID == r.UserID
	}
}
