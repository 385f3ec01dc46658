package transaction

import "context"

// Tx は予約の永続化をまとめる単位トランザクション
// アプリケーション層がsqlx等のインフラ実装へ直接依存しないための抽象化
type Tx interface {
	// Commit はトランザクションを確定する
	Commit() error
	// Rollback はトランザクションを破棄する
	// コミット後の呼び出しは副作用を持たないこと（defer前提）
	Rollback() error
}

// Manager はトランザクションの開始を担うインターフェース
type Manager interface {
	// Begin は新しいトランザクションを開始する
	Begin(ctx context.Context) (Tx, error)
}
