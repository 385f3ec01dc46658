package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-space-reservation/internal/domain/space"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// SpaceCache はスペース情報（料金ルール込み）のキャッシュを管理する
// 予約作成のたびにスペース参照が走るため、読み取りをRedisで吸収する
type SpaceCache struct {
	client *redis.Client
}

// NewSpaceCache は新しいSpaceCacheインスタンスを作成する
func NewSpaceCache(client *redis.Client) *SpaceCache {
	return &SpaceCache{client: client}
}

// Get はスペースをキャッシュから取得する
func (c *SpaceCache) Get(ctx context.Context, spaceID string) (*space.Space, error) {
	key := c.spaceKey(spaceID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}

	var sp space.Space
	if err := json.Unmarshal(data, &sp); err != nil {
		return nil, fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	return &sp, nil
}

// Set はスペースをキャッシュに保存する
func (c *SpaceCache) Set(ctx context.Context, sp *space.Space, ttl time.Duration) error {
	data, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("キャッシュのシリアライズに失敗: %w", err)
	}
	if err := c.client.Set(ctx, c.spaceKey(sp.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はスペースのキャッシュを無効化する
func (c *SpaceCache) Invalidate(ctx context.Context, spaceID string) error {
	if err := c.client.Del(ctx, c.spaceKey(spaceID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *SpaceCache) spaceKey(spaceID string) string {
	return fmt.Sprintf("spaces:%s", spaceID)
}
