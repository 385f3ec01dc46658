package space

import "context"

// Repository はスペース参照のインターフェース
// スペースの作成・更新は別システムの責務であり、予約エンジンからは読み取り専用
type Repository interface {
	// GetByID はIDからスペースを取得する
	GetByID(ctx context.Context, id string) (*Space, error)

	// GetByOwnerID はオーナーIDからスペース一覧を取得する
	GetByOwnerID(ctx context.Context, ownerID string) ([]*Space, error)
}
