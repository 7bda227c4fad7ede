// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 同期エンジンやフェッチャーから利用する。
type MetricsCollector interface {
	RecordSyncSuccess()
	RecordSyncFallback()
	RecordStalePublish()
	RecordSyncLatency(duration time.Duration)
	RecordFeedFetchFailure(subscriptionID string)
	RecordEventsPublished(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess     prometheus.Counter
	syncFallback    prometheus.Counter
	stalePublish    prometheus.Counter
	syncLatency     prometheus.Histogram
	feedFetchFail   prometheus.Counter
	eventsPublished prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unitable_sync_success_total",
			Help: "時間割同期成功の合計数",
		}),
		syncFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unitable_sync_fallback_total",
			Help: "キャッシュフォールバックに終わった同期の合計数",
		}),
		stalePublish: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unitable_sync_stale_publish_total",
			Help: "世代チェックで破棄された同期結果の合計数",
		}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "unitable_sync_latency_seconds",
			Help:    "時間割同期のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		feedFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unitable_feed_fetch_fail_total",
			Help: "フィードフェッチ失敗の合計数",
		}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unitable_events_published_total",
			Help: "公開されたカレンダーイベントの合計数",
		}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFallback,
		c.stalePublish,
		c.syncLatency,
		c.feedFetchFail,
		c.eventsPublished,
	)

	return c
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess() {
	c.syncSuccess.Inc()
}

// RecordSyncFallback はキャッシュフォールバックを記録する。
func (c *Collector) RecordSyncFallback() {
	c.syncFallback.Inc()
}

// RecordStalePublish は世代チェックによる結果破棄を記録する。
func (c *Collector) RecordStalePublish() {
	c.stalePublish.Inc()
}

// RecordSyncLatency は同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
}

// RecordFeedFetchFailure はフィードフェッチ失敗を記録する。
func (c *Collector) RecordFeedFetchFailure(subscriptionID string) {
	c.feedFetchFail.Inc()
}

// RecordEventsPublished は公開されたイベント数を記録する。
func (c *Collector) RecordEventsPublished(count int) {
	c.eventsPublished.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
