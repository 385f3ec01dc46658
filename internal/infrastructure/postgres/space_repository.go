package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sanosuguru/go-space-reservation/internal/domain/space"
)

type spaceRow struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Address     string    `db:"address"`
	Capacity    int       `db:"capacity"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type pricingRuleRow struct {
	SpaceID    string          `db:"space_id"`
	Name       string          `db:"name"`
	RateType   string          `db:"rate_type"`
	Rate       decimal.Decimal `db:"rate"`
	IsActive   bool            `db:"is_active"`
	StartTime  sql.NullString  `db:"start_time"`
	EndTime    sql.NullString  `db:"end_time"`
	DaysOfWeek pq.StringArray  `db:"days_of_week"`
	Multiplier decimal.Decimal `db:"multiplier"`
}

func (r *pricingRuleRow) toEntity() space.PricingRule {
	return space.PricingRule{
		Name:       r.Name,
		Type:       space.RateType(r.RateType),
		Rate:       r.Rate,
		IsActive:   r.IsActive,
		StartTime:  r.StartTime.String,
		EndTime:    r.EndTime.String,
		DaysOfWeek: r.DaysOfWeek,
		Multiplier: r.Multiplier,
	}
}

// SpaceRepository はスペースの読み取り専用リポジトリ
// スペースの登録・編集は別システムが行い、予約エンジンは参照のみ
type SpaceRepository struct{ db *sqlx.DB }

func NewSpaceRepository(db *sqlx.DB) *SpaceRepository {
	return &SpaceRepository{db: db}
}

func (r *SpaceRepository) GetByID(ctx context.Context, id string) (*space.Space, error) {
	var row spaceRow
	query := `SELECT id, owner_id, name, description, address, capacity, is_active, created_at, updated_at FROM spaces WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, space.ErrSpaceNotFound
		}
		return nil, fmt.Errorf("スペース取得に失敗: %w", err)
	}

	rules, err := r.getPricingRules(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSpaceEntity(&row, rules), nil
}

func (r *SpaceRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]*space.Space, error) {
	var rows []spaceRow
	query := `SELECT id, owner_id, name, description, address, capacity, is_active, created_at, updated_at FROM spaces WHERE owner_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("スペース一覧取得に失敗: %w", err)
	}

	result := make([]*space.Space, len(rows))
	for i := range rows {
		rules, err := r.getPricingRules(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		result[i] = toSpaceEntity(&rows[i], rules)
	}
	return result, nil
}

// getPricingRules はルールを定義順（position昇順）で返す
// ルール選択の決定性はこの並び順に依存する
func (r *SpaceRepository) getPricingRules(ctx context.Context, spaceID string) ([]space.PricingRule, error) {
	var rows []pricingRuleRow
	query := `SELECT space_id, name, rate_type, rate, is_active, start_time, end_time, days_of_week, multiplier
		FROM pricing_rules WHERE space_id = $1 ORDER BY position ASC`
	if err := r.db.SelectContext(ctx, &rows, query, spaceID); err != nil {
		return nil, fmt.Errorf("料金ルール取得に失敗: %w", err)
	}
	rules := make([]space.PricingRule, len(rows))
	for i := range rows {
		rules[i] = rows[i].toEntity()
	}
	return rules, nil
}

func toSpaceEntity(row *spaceRow, rules []space.PricingRule) *space.Space {
	return &space.Space{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		Name:         row.Name,
		Description:  row.Description,
		Address:      row.Address,
		Capacity:     row.Capacity,
		IsActive:     row.IsActive,
		PricingRules: rules,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

var _ space.Repository = (*SpaceRepository)(nil)
