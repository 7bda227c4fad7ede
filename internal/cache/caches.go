package cache

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hitoshi/unitable/internal/model"
)

// 永続化エラーの方針: 読み取り失敗は「キャッシュ空」として扱い、
// 書き込み失敗はログに残して前回値を維持する（ベストエフォート永続化）。
// 呼び出し元にエラーを伝播させない。

// EventCache はsource=localイベントの永続キャッシュ。
// ネットワーク障害時のフォールバックデータを兼ねる。
type EventCache struct {
	store  Store
	logger *slog.Logger
}

// NewEventCache はEventCacheの新しいインスタンスを生成する。
func NewEventCache(store Store, logger *slog.Logger) *EventCache {
	return &EventCache{store: store, logger: logger}
}

// Load はキャッシュ済みローカルイベントを読み込む。
// キャッシュが無い・読めない場合は空リストを返す。
func (c *EventCache) Load(ctx context.Context, userID string) []model.CalendarEvent {
	raw, ok, err := c.store.Get(ctx, userKey(KeyLocalEvents, userID))
	if err != nil {
		c.logger.Warn("ローカルイベントキャッシュの読み取りに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		return nil
	}

	var events []model.CalendarEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		c.logger.Warn("ローカルイベントキャッシュのデコードに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	// 後方互換: 旧形式で保存されたイベントにsourceが無い場合はlocal扱い
	for i := range events {
		if events[i].Source == "" {
			events[i].Source = model.SourceLocal
		}
	}
	return events
}

// Save はsource=localのイベントのみをキャッシュに保存する。
// フィード由来イベントは単体では永続化されないため除外する。
func (c *EventCache) Save(ctx context.Context, userID string, events []model.CalendarEvent) {
	localOnly := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.Source == model.SourceLocal {
			localOnly = append(localOnly, ev)
		}
	}

	raw, err := json.Marshal(localOnly)
	if err != nil {
		c.logger.Warn("ローカルイベントのエンコードに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.store.Set(ctx, userKey(KeyLocalEvents, userID), string(raw)); err != nil {
		c.logger.Warn("ローカルイベントキャッシュの書き込みに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// SubscriptionCache はフィード購読一覧の永続キャッシュ。
// 購読は到達可能な限り常にネットワークの値を信頼して上書き保存される。
type SubscriptionCache struct {
	store  Store
	logger *slog.Logger
}

// NewSubscriptionCache はSubscriptionCacheの新しいインスタンスを生成する。
func NewSubscriptionCache(store Store, logger *slog.Logger) *SubscriptionCache {
	return &SubscriptionCache{store: store, logger: logger}
}

// Load はキャッシュ済み購読一覧を読み込む。無ければ空リストを返す。
func (c *SubscriptionCache) Load(ctx context.Context, userID string) []model.FeedSubscription {
	raw, ok, err := c.store.Get(ctx, userKey(KeySubscriptions, userID))
	if err != nil || !ok {
		if err != nil {
			c.logger.Warn("購読キャッシュの読み取りに失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var subs []model.FeedSubscription
	if err := json.Unmarshal([]byte(raw), &subs); err != nil {
		c.logger.Warn("購読キャッシュのデコードに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return subs
}

// Save は正規化済みの購読一覧をキャッシュに保存する。
func (c *SubscriptionCache) Save(ctx context.Context, userID string, subs []model.FeedSubscription) {
	raw, err := json.Marshal(subs)
	if err != nil {
		c.logger.Warn("購読一覧のエンコードに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.store.Set(ctx, userKey(KeySubscriptions, userID), string(raw)); err != nil {
		c.logger.Warn("購読キャッシュの書き込みに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// MetaCache はフィード由来イベントのユーザー上書き（metaKey →
// EventMeta）の永続キャッシュ。
type MetaCache struct {
	store  Store
	logger *slog.Logger
}

// NewMetaCache はMetaCacheの新しいインスタンスを生成する。
func NewMetaCache(store Store, logger *slog.Logger) *MetaCache {
	return &MetaCache{store: store, logger: logger}
}

// Load はメタ上書きマップを読み込む。無ければ空マップを返す。
func (c *MetaCache) Load(ctx context.Context, userID string) map[string]model.EventMeta {
	raw, ok, err := c.store.Get(ctx, userKey(KeyEventMeta, userID))
	if err != nil || !ok {
		if err != nil {
			c.logger.Warn("イベントメタキャッシュの読み取りに失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return map[string]model.EventMeta{}
	}

	meta := map[string]model.EventMeta{}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		c.logger.Warn("イベントメタキャッシュのデコードに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return map[string]model.EventMeta{}
	}
	return meta
}

// Save はメタ上書きマップ全体を保存する。
func (c *MetaCache) Save(ctx context.Context, userID string, meta map[string]model.EventMeta) {
	raw, err := json.Marshal(meta)
	if err != nil {
		c.logger.Warn("イベントメタのエンコードに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.store.Set(ctx, userKey(KeyEventMeta, userID), string(raw)); err != nil {
		c.logger.Warn("イベントメタキャッシュの書き込みに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Upsert は単一metaKeyの上書きを読み出し・更新・保存する。
func (c *MetaCache) Upsert(ctx context.Context, userID, metaKey string, m model.EventMeta) {
	all := c.Load(ctx, userID)
	all[metaKey] = m
	c.Save(ctx, userID, all)
}
