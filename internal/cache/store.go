// Package cache はローカル永続ストアを提供する。
//
// ストアは単純な非同期KV契約（get/set）であり、本体は自身の構造体
// （ローカルイベント、フィード購読、イベント個別メタ）を3つの固定
// 論理キー配下にJSONでシリアライズして保存する。
package cache

import "context"

// 固定論理キー。ユーザーIDを付加して名前空間化される。
const (
	// KeyLocalEvents はローカルイベントキャッシュのキー。
	KeyLocalEvents = "timetable_local_events_v1"
	// KeySubscriptions はフィード購読キャッシュのキー。
	KeySubscriptions = "ical_subscriptions_v1"
	// KeyEventMeta はイベント個別メタキャッシュのキー。
	KeyEventMeta = "ical_event_meta_v1"
)

// Store はKVストアの契約。get → 値または「無し」、set → 上書き。
// 複数キーにまたがるトランザクション原子性は提供しない（各キーは
// 独立に読み書きされ、不整合は次回同期が再導出して吸収する）。
type Store interface {
	// Get は指定キーの値を返す。キーが存在しない場合はok=false。
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set は指定キーに値を保存する。既存値は上書きされる。
	Set(ctx context.Context, key, value string) error
}

// userKey は論理キーをユーザーIDで名前空間化する。
func userKey(base, userID string) string {
	return base + ":" + userID
}
