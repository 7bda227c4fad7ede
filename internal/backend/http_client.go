package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// userAgent はバックエンドAPI呼び出し時のUser-Agentヘッダ。
const userAgent = "unitable/1.0 timetable sync"

// HTTPClient はJSON over HTTPのバックエンドクライアント実装。
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient はHTTPClientの新しいインスタンスを生成する。
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// LocalEvents は GET /calendar/entries?user_id=... を呼び出す。
func (c *HTTPClient) LocalEvents(ctx context.Context, userID string) ([]EntryDTO, error) {
	var entries []EntryDTO
	if err := c.getJSON(ctx, "/calendar/entries", url.Values{"user_id": {userID}}, &entries); err != nil {
		return nil, fmt.Errorf("ローカルイベント一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// Subscriptions は GET /ical-subscriptions?user_id=... を呼び出す。
func (c *HTTPClient) Subscriptions(ctx context.Context, userID string) ([]SubscriptionDTO, error) {
	var subs []SubscriptionDTO
	if err := c.getJSON(ctx, "/ical-subscriptions", url.Values{"user_id": {userID}}, &subs); err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}
	return subs, nil
}

// UpsertSubscription は POST /ical-subscriptions を呼び出す。
// バックエンド側で(userID, url)キーの冪等upsertが行われる。
func (c *HTTPClient) UpsertSubscription(ctx context.Context, req UpsertSubscriptionRequest) (SubscriptionDTO, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SubscriptionDTO{}, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ical-subscriptions", bytes.NewReader(body))
	if err != nil {
		return SubscriptionDTO{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return SubscriptionDTO{}, fmt.Errorf("購読のupsertに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("バックエンドがエラーステータスを返しました",
			slog.String("path", "/ical-subscriptions"),
			slog.Int("http_status", resp.StatusCode),
		)
		return SubscriptionDTO{}, fmt.Errorf("バックエンドがステータス %d を返しました", resp.StatusCode)
	}

	var sub SubscriptionDTO
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return SubscriptionDTO{}, fmt.Errorf("レスポンスのデコードに失敗しました: %w", err)
	}
	return sub, nil
}

// DeleteSubscription は DELETE /ical-subscriptions/{id}?user_id=... を呼び出す。
func (c *HTTPClient) DeleteSubscription(ctx context.Context, userID, id string) error {
	u := fmt.Sprintf("%s/ical-subscriptions/%s?%s", c.baseURL, url.PathEscape(id), url.Values{"user_id": {userID}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("バックエンドがステータス %d を返しました", resp.StatusCode)
	}
	return nil
}

// getJSON はGETリクエストを実行しJSONレスポンスをデコードする共通処理。
func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("バックエンドがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("バックエンドがステータス %d を返しました", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスのデコードに失敗しました: %w", err)
	}
	return nil
}
