// Package sync は時間割同期エンジンを提供する。
//
// バックエンドのローカルイベント、購読フィードのパース結果、
// ローカルキャッシュのユーザーメタデータを1つの統一イベントリストに
// マージする。マージの順序・優先規則・障害時フォールバックはすべて
// このパッケージが定義する。
package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/unitable/internal/backend"
	"github.com/hitoshi/unitable/internal/cache"
	"github.com/hitoshi/unitable/internal/mapping"
	"github.com/hitoshi/unitable/internal/metrics"
	"github.com/hitoshi/unitable/internal/model"
)

// FeedFetcher はフィード取得のインターフェース。
type FeedFetcher interface {
	FetchEvents(ctx context.Context, sub model.FeedSubscription) ([]model.RawFeedEvent, error)
}

// Engine は同期処理のオーケストレーター。
//
// 各同期ランには単調増加する世代番号が割り当てられ、公開時に
// より新しい世代がすでに公開済みであれば結果を破棄する
// （後勝ちの明示化）。走行中のランをキャンセルすることはない。
type Engine struct {
	backend backend.Client
	fetcher FeedFetcher
	events  *cache.EventCache
	subs    *cache.SubscriptionCache
	meta    *cache.MetaCache
	metrics metrics.MetricsCollector
	logger  *slog.Logger

	mu        sync.Mutex
	nextGen   uint64
	published map[string]snapshot
}

// snapshot はユーザーごとの最新公開状態。
type snapshot struct {
	gen    uint64
	events []model.CalendarEvent
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(
	backendClient backend.Client,
	fetcher FeedFetcher,
	events *cache.EventCache,
	subs *cache.SubscriptionCache,
	meta *cache.MetaCache,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		backend:   backendClient,
		fetcher:   fetcher,
		events:    events,
		subs:      subs,
		meta:      meta,
		metrics:   collector,
		logger:    logger,
		published: make(map[string]snapshot),
	}
}

// Refresh は1回の同期ランを実行し、統一イベントリストを返す。
//
// バックエンド到達不能などラン全体の失敗時は、キャッシュ済み
// ローカルイベントのみにフォールバックする。部分的な成功状態を
// 公開することはなく、エラーも呼び出し元に伝播しない。
func (e *Engine) Refresh(ctx context.Context, userID string) []model.CalendarEvent {
	gen := e.beginRun()
	runID := uuid.NewString()
	start := time.Now()

	// キャッシュ済みローカルイベント（障害時フォールバック）とメタ上書き
	cachedLocal := e.events.Load(ctx, userID)
	overrides := e.meta.Load(ctx, userID)

	unified, err := e.run(ctx, userID, cachedLocal, overrides)
	if err != nil {
		e.logger.Error("同期ランに失敗しました。キャッシュにフォールバックします",
			slog.String("run_id", runID),
			slog.String("user_id", userID),
			slog.Uint64("sync_generation", gen),
			slog.String("error", err.Error()),
		)
		e.metrics.RecordSyncFallback()
		unified = cachedLocal
	} else {
		e.metrics.RecordSyncSuccess()
	}

	duration := time.Since(start)
	e.metrics.RecordSyncLatency(duration)

	if !e.publish(userID, gen, unified) {
		e.logger.Info("より新しい世代が公開済みのため同期結果を破棄します",
			slog.String("run_id", runID),
			slog.String("user_id", userID),
			slog.Uint64("sync_generation", gen),
		)
		e.metrics.RecordStalePublish()
		return unified
	}

	e.metrics.RecordEventsPublished(len(unified))
	e.logger.Info("同期ランが完了しました",
		slog.String("run_id", runID),
		slog.String("user_id", userID),
		slog.Uint64("sync_generation", gen),
		slog.Int("events_total", len(unified)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return unified
}

// run は同期アルゴリズムの本体。手順は固定順で、後段は前段の
// 出力に依存する。エラーはラン全体の失敗としてのみ返す。
func (e *Engine) run(
	ctx context.Context,
	userID string,
	cachedLocal []model.CalendarEvent,
	overrides map[string]model.EventMeta,
) ([]model.CalendarEvent, error) {
	// 購読一覧はネットワーク到達可能な限り常に信頼し、正規化して保存する
	subDTOs, err := e.backend.Subscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}
	subs := make([]model.FeedSubscription, 0, len(subDTOs))
	for _, dto := range subDTOs {
		subs = append(subs, model.FeedSubscription{
			ID:                 dto.ID,
			Name:               dto.Name,
			URL:                dto.URL,
			Color:              dto.Color,
			DefaultDisplayType: model.NormalizeDisplayTypeOrNil(dto.DefaultDisplayType),
		})
	}
	e.subs.Save(ctx, userID, subs)

	// ローカルイベントの取得とマッピング
	entries, err := e.backend.LocalEvents(ctx, userID)
	if err != nil {
		return nil, err
	}

	cachedByID := make(map[string]model.CalendarEvent, len(cachedLocal))
	for _, ev := range cachedLocal {
		cachedByID[ev.ID] = ev
	}

	localEvents := make([]model.CalendarEvent, 0, len(entries))
	for _, dto := range entries {
		fresh := mapping.FromEntryDTO(dto)
		if prev, ok := cachedByID[dto.ID]; ok {
			fresh = mergeLocalExtras(fresh, dto, prev)
		}
		localEvents = append(localEvents, fresh)
	}

	// マージ済みローカルイベントが次回ランのフォールバック基準になる
	e.events.Save(ctx, userID, localEvents)

	// フィードごとのフェッチとマージ。1つの失敗は他に波及しない
	var feedEvents []model.CalendarEvent
	for _, sub := range subs {
		raws, err := e.fetcher.FetchEvents(ctx, sub)
		if err != nil {
			e.logger.Warn("フィードをスキップします",
				slog.String("user_id", userID),
				slog.String("subscription_id", sub.ID),
				slog.String("error", err.Error()),
			)
			e.metrics.RecordFeedFetchFailure(sub.ID)
			continue
		}
		for _, raw := range raws {
			feedEvents = append(feedEvents, buildFeedEvent(sub, raw, overrides))
		}
	}

	// フィード由来イベントが先、ローカルイベントが後。
	// 順序に意味はないがラン内で決定的であること
	unified := make([]model.CalendarEvent, 0, len(feedEvents)+len(localEvents))
	unified = append(unified, feedEvents...)
	unified = append(unified, localEvents...)
	return unified, nil
}

// beginRun は新しい同期ランの世代番号を払い出す。
func (e *Engine) beginRun() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextGen++
	return e.nextGen
}

// publish は同期結果を公開する。より新しい世代がすでに公開済みの
// 場合は何もせずfalseを返す。
func (e *Engine) publish(userID string, gen uint64, events []model.CalendarEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.published[userID]; ok && prev.gen > gen {
		return false
	}
	e.published[userID] = snapshot{gen: gen, events: events}
	return true
}

// Events は指定ユーザーの最新公開リストのコピーを返す。
// 一度も同期されていないユーザーには空リストを返す。
func (e *Engine) Events(userID string) []model.CalendarEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap, ok := e.published[userID]
	if !ok {
		return nil
	}
	out := make([]model.CalendarEvent, len(snap.events))
	copy(out, snap.events)
	return out
}

// ActiveUsers は公開済み状態を持つユーザーIDの一覧を返す。
// 定期リフレッシュワーカーが対象ユーザーを列挙するために使う。
func (e *Engine) ActiveUsers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	users := make([]string, 0, len(e.published))
	for userID := range e.published {
		users = append(users, userID)
	}
	return users
}
