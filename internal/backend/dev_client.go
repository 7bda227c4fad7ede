package backend

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DevClient はホスト型バックエンドなしで動作確認するための
// インメモリ実装。開発・デモ用で、プロセス終了とともに消える。
type DevClient struct {
	mu      sync.Mutex
	entries []EntryDTO
	subs    []SubscriptionDTO
}

// NewDevClient は初期データ入りのDevClientを生成する。
func NewDevClient() *DevClient {
	none := "none"
	short1 := "Doctor"
	short2 := "Meeting"
	return &DevClient{
		entries: []EntryDTO{
			{
				ID:          "1",
				UserID:      "1234",
				Title:       "Doctor appointment",
				TitleShort:  &short1,
				Date:        time.Date(2025, 12, 24, 0, 0, 0, 0, time.Local),
				DisplayType: &none,
			},
			{
				ID:          "2",
				UserID:      "1234",
				Title:       "Project meeting with team",
				TitleShort:  &short2,
				Date:        time.Date(2025, 2, 24, 0, 0, 0, 0, time.Local),
				DisplayType: &none,
			},
		},
	}
}

// LocalEvents は指定ユーザーのエントリを返す。
func (c *DevClient) LocalEvents(_ context.Context, userID string) ([]EntryDTO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []EntryDTO
	for _, e := range c.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Subscriptions は指定ユーザーの購読を返す。
func (c *DevClient) Subscriptions(_ context.Context, userID string) ([]SubscriptionDTO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []SubscriptionDTO
	for _, s := range c.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

// UpsertSubscription は(userID, url)キーで冪等にupsertする。
func (c *DevClient) UpsertSubscription(_ context.Context, req UpsertSubscriptionRequest) (SubscriptionDTO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.subs {
		if s.UserID == req.UserID && s.URL == req.URL {
			c.subs[i].Name = req.Name
			c.subs[i].Color = req.Color
			c.subs[i].DefaultDisplayType = req.DefaultDisplayType
			return c.subs[i], nil
		}
	}

	sub := SubscriptionDTO{
		ID:                 "sub-" + uuid.NewString(),
		UserID:             req.UserID,
		Name:               req.Name,
		URL:                req.URL,
		Color:              req.Color,
		DefaultDisplayType: req.DefaultDisplayType,
	}
	c.subs = append(c.subs, sub)
	return sub, nil
}

// DeleteSubscription は指定IDの購読を削除する。存在しなくてもエラーにしない。
func (c *DevClient) DeleteSubscription(_ context.Context, userID, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	filtered := c.subs[:0]
	for _, s := range c.subs {
		if !(s.UserID == userID && s.ID == id) {
			filtered = append(filtered, s)
		}
	}
	c.subs = filtered
	return nil
}
