package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS dataset_cache (
	cache_key  TEXT PRIMARY KEY,
	records    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresCache PostgreSQL缓存实现
type PostgresCache struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewPostgresCache 连接数据库并确保缓存表存在
func NewPostgresCache(ctx context.Context, databaseURL string) (*PostgresCache, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := NewPostgresCacheWithDB(db, nil)
	if err := c.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// NewPostgresCacheWithDB 使用已有连接创建缓存
func NewPostgresCacheWithDB(db *sql.DB, clock clockwork.Clock) *PostgresCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PostgresCache{db: db, clock: clock}
}

// Migrate 创建缓存表
func (c *PostgresCache) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create dataset_cache table: %w", err)
	}
	return nil
}

// Get 获取缓存
func (c *PostgresCache) Get(ctx context.Context, key string) (*CachedDataset, error) {
	query := `
	SELECT cache_key, records, created_at, expires_at
	FROM dataset_cache
	WHERE cache_key = $1 AND expires_at > $2
	`

	var entry CachedDataset
	var recordsJSON []byte

	err := c.db.QueryRowContext(ctx, query, key, c.clock.Now()).Scan(
		&entry.Key,
		&recordsJSON,
		&entry.CreatedAt,
		&entry.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset cache: %w", err)
	}

	if err := json.Unmarshal(recordsJSON, &entry.Records); err != nil {
		return nil, fmt.Errorf("failed to decode cached dataset: %w", err)
	}

	return &entry, nil
}

// Set 设置缓存
func (c *PostgresCache) Set(ctx context.Context, key string, records []map[string]any, ttl time.Duration) error {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	now := c.clock.Now()
	query := `
	INSERT INTO dataset_cache (cache_key, records, created_at, expires_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (cache_key)
	DO UPDATE SET records = $2, created_at = $3, expires_at = $4
	`

	if _, err := c.db.ExecContext(ctx, query, key, recordsJSON, now, now.Add(ttl)); err != nil {
		return fmt.Errorf("failed to store dataset cache: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (c *PostgresCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM dataset_cache WHERE cache_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete dataset cache: %w", err)
	}
	return nil
}

// CleanExpired 清理过期缓存
func (c *PostgresCache) CleanExpired(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, `DELETE FROM dataset_cache WHERE expires_at < $1`, c.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired datasets: %w", err)
	}
	return result.RowsAffected()
}

// Close 关闭数据库连接
func (c *PostgresCache) Close() error {
	return c.db.Close()
}
