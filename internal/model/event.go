// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// EventSource はイベントの出自を表す。
// local=バックエンドで管理されるユーザー作成イベント、ical=フィード由来イベント。
type EventSource string

const (
	// SourceLocal はユーザーがローカル作成したイベント。
	SourceLocal EventSource = "local"
	// SourceICal はiCalフィード購読から導出されたイベント。
	SourceICal EventSource = "ical"
)

// DisplayType はイベントの表示分類を表す。
// デフォルト色とフィルタリングの挙動を決める。
type DisplayType string

const (
	// DisplayTypeNone は未分類。
	DisplayTypeNone DisplayType = "none"
	// DisplayTypeCourse は講義。
	DisplayTypeCourse DisplayType = "course"
	// DisplayTypeEvent は一般イベント。
	DisplayTypeEvent DisplayType = "event"
	// DisplayTypeAssignment は課題・試験。予約済みだが現在は未使用。
	DisplayTypeAssignment DisplayType = "assignment"
)

// NormalizeDisplayType は任意の文字列を閉じた列挙に正規化する。
// 列挙外の値はすべてDisplayTypeNoneに落とす（例外は投げない）。
func NormalizeDisplayType(v string) DisplayType {
	switch DisplayType(v) {
	case DisplayTypeNone, DisplayTypeCourse, DisplayTypeEvent:
		return DisplayType(v)
	default:
		return DisplayTypeNone
	}
}

// NormalizeDisplayTypeOrNil は正規化し、未指定・列挙外の値はnilを返す。
// 購読のdefault_display_typeのように「未選択」を区別する場合に使う。
func NormalizeDisplayTypeOrNil(v *string) *DisplayType {
	if v == nil {
		return nil
	}
	switch DisplayType(*v) {
	case DisplayTypeNone, DisplayTypeCourse, DisplayTypeEvent:
		t := DisplayType(*v)
		return &t
	default:
		return nil
	}
}

// DefaultColor は表示分類ごとのデフォルト色を返す。
func DefaultColor(t DisplayType) string {
	switch t {
	case DisplayTypeCourse:
		return "#4dabf7" // 青
	case DisplayTypeAssignment:
		return "#ffd43b" // 黄
	case DisplayTypeEvent:
		return "#69db7c" // 緑
	default:
		return "#b197fc" // 紫（未分類）
	}
}

// CalendarEvent はUIが消費する統一イベント表現。
// source=localのイベントはバックエンド由来でローカルキャッシュされる。
// source=icalのイベントは同期のたびにフィード×メタデータから再計算され、
// 単体では永続化されない（永続化されるのはEventMetaのみ）。
type CalendarEvent struct {
	ID string `json:"id"`

	FullTitle         string `json:"fullTitle"`
	TitleAbbr         string `json:"titleAbbr"`
	IsTitleAbbrCustom bool   `json:"isTitleAbbrCustom"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Color       string      `json:"color"`
	Note        string      `json:"note"`
	DisplayType DisplayType `json:"displayType"`
	Source      EventSource `json:"source"`
	Hidden      bool        `json:"hidden"`

	// フィード由来イベントのみ設定される。
	ICalSubscriptionID string `json:"icalSubscriptionId,omitempty"`
	ICalEventUID       string `json:"icalEventUid,omitempty"`
	MetaKey            string `json:"metaKey,omitempty"`

	// Extra はUI拡張フィールド（course、party等）の不透明バッグ。
	// 同期エンジンは中身を解釈せず、マージを越えて素通しする。
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// FeedSubscription は名前付きiCalフィードURLの購読。
type FeedSubscription struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Color string `json:"color"`

	// DefaultDisplayType はイベント個別メタが無い場合の分類フォールバック。
	// nilは「未選択」を意味する。
	DefaultDisplayType *DisplayType `json:"defaultDisplayType"`
}

// EventMeta はフィード由来イベント1件に対するユーザー上書き。
// metaKeyをキーにローカル永続化される。設定されたフィールドのみが
// フィード・購読のデフォルトを上書きする。
type EventMeta struct {
	TitleAbbr         *string      `json:"titleAbbr,omitempty"`
	Note              *string      `json:"note,omitempty"`
	Color             *string      `json:"color,omitempty"`
	IsTitleAbbrCustom *bool        `json:"isTitleAbbrCustom,omitempty"`
	DisplayType       *DisplayType `json:"displayType,omitempty"`
	Hidden            *bool        `json:"hidden,omitempty"`

	// Extra は拡張フィールドの上書き（不透明）。
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// RawFeedEvent はICSパーサーの出力。1つのVEVENTブロックに対応する。
// 永続化されず、マージ処理で即座に消費される。
type RawFeedEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// metaKeySeparator はmetaKeyの区切り。保存済みキーと互換を保つため固定。
const metaKeySeparator = "::"

// MakeMetaKey は購読IDとフィード内イベントUIDから複合キーを生成する。
// 同じ入力に対して常に同じキーを返すため、再同期をまたいで冪等。
func MakeMetaKey(subscriptionID, uid string) string {
	return subscriptionID + metaKeySeparator + uid
}
