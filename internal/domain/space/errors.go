package space

import "errors"

// Space ドメインのエラー定義
var (
	ErrSpaceNotFound     = errors.New("スペースが見つかりません")
	ErrSpaceInactive     = errors.New("スペースは現在利用できません")
	ErrSpaceNameRequired = errors.New("スペース名は必須です")
	ErrOwnerIDRequired   = errors.New("オーナーIDは必須です")
)
