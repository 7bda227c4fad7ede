// Package backend はホスト型バックエンド（外部コラボレーター）の
// クライアント契約を定義する。本体はカレンダーエントリと
// iCal購読のCRUDのみを消費し、それ以外の画面・認証系APIは扱わない。
package backend

import (
	"context"
	"time"
)

// EntryDTO はバックエンドが保持するローカルイベントのワイヤ表現。
type EntryDTO struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	TitleShort  *string    `json:"title_short,omitempty"`
	Date        time.Time  `json:"date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Note        *string    `json:"note,omitempty"`
	Color       *string    `json:"color,omitempty"`
	DisplayType *string    `json:"display_type,omitempty"`
}

// SubscriptionDTO はiCal購読のワイヤ表現。
type SubscriptionDTO struct {
	ID                 string  `json:"id"`
	UserID             string  `json:"user_id"`
	Name               string  `json:"name"`
	URL                string  `json:"url"`
	Color              string  `json:"color"`
	DefaultDisplayType *string `json:"default_display_type,omitempty"`
}

// UpsertSubscriptionRequest は購読の作成・更新リクエスト。
// バックエンドは(userID, url)をキーに冪等なupsertを行う。
type UpsertSubscriptionRequest struct {
	UserID             string  `json:"user_id"`
	Name               string  `json:"name"`
	URL                string  `json:"url"`
	Color              string  `json:"color"`
	DefaultDisplayType *string `json:"default_display_type,omitempty"`
}

// Client はバックエンドAPIのクライアントインターフェース。
type Client interface {
	// LocalEvents は指定ユーザーのローカルイベント一覧を取得する。
	LocalEvents(ctx context.Context, userID string) ([]EntryDTO, error)

	// Subscriptions は指定ユーザーのiCal購読一覧を取得する。
	Subscriptions(ctx context.Context, userID string) ([]SubscriptionDTO, error)

	// UpsertSubscription は購読を(userID, url)キーで冪等に作成・更新する。
	UpsertSubscription(ctx context.Context, req UpsertSubscriptionRequest) (SubscriptionDTO, error)

	// DeleteSubscription は指定IDの購読を削除する。
	DeleteSubscription(ctx context.Context, userID, id string) error
}
