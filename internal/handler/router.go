// Package handler はJSON APIのHTTPハンドラーを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/unitable/internal/metrics"
	"github.com/hitoshi/unitable/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
	Gatherer    prometheus.Gatherer

	// 時間割
	Syncer TimetableSyncer

	// 購読
	Backend  SubscriptionBackend
	Verifier FeedVerifier

	// イベントメタ
	Meta MetaUpserter

	// 変更通知
	Publisher SyncPublisher
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → RateLimit(General)
//
// /healthz と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	timetableHandler := NewTimetableHandler(deps.Syncer)
	subHandler := NewSubscriptionHandler(deps.Backend, deps.Verifier, deps.Publisher)
	metaHandler := NewEventMetaHandler(deps.Meta, deps.Publisher)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 時間割
		r.Get("/api/timetable", timetableHandler.GetTimetable)

		// 購読管理
		r.Route("/api/subscriptions", func(r chi.Router) {
			r.Get("/", subHandler.ListSubscriptions)
			r.Post("/", subHandler.UpsertSubscription)
			r.Delete("/{id}", subHandler.DeleteSubscription)
		})

		// イベントメタ上書き
		r.Put("/api/events/{metaKey}/meta", metaHandler.UpsertMeta)
	})

	return r
}
