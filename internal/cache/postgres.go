package cache

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore はkv_cacheテーブルを使ったStoreの実装。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreの新しいインスタンスを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get は指定キーの値を取得する。見つからない場合はok=falseを返す。
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_cache WHERE key = $1`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv_cacheの読み取りに失敗しました: %w", err)
	}
	return value, true, nil
}

// Set は指定キーに値をUPSERTする。
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_cache (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("kv_cacheへの書き込みに失敗しました: %w", err)
	}
	return nil
}
