// Package fetch はiCalendarフィードのHTTPフェッチとパースを提供する。
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/unitable/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// TextSanitizer はフィード供給テキストのサニタイズのインターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// CalendarParser はiCalendarテキストのパースのインターフェース。
type CalendarParser interface {
	Parse(doc string) []model.RawFeedEvent
}

// Fetcher は個別購読のHTTPフェッチとパースを行う。
// SSRF検証、レートリミット、サイズ制限付きの取得、
// iCalendarパース、テキストサニタイズを実行する。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	sanitizer   TextSanitizer
	parser      CalendarParser
	limiter     *rate.Limiter
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	ssrfGuard SSRFValidator,
	sanitizer TextSanitizer,
	parser CalendarParser,
	limiter *rate.Limiter,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		parser:      parser,
		limiter:     limiter,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// FetchEvents は購読先フィードをフェッチし、パース済みイベントを返す。
// 失敗は呼び出し元が購読単位で隔離するため、エラーを返すだけで
// 他の購読のフェッチには影響しない。
func (f *Fetcher) FetchEvents(ctx context.Context, sub model.FeedSubscription) ([]model.RawFeedEvent, error) {
	start := time.Now()

	body, err := f.get(ctx, sub.URL)
	if err != nil {
		f.logger.Warn("フィードのフェッチに失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("url", sub.URL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	events := f.parser.Parse(string(body))
	for i := range events {
		events[i].Summary = f.sanitizer.Sanitize(events[i].Summary)
		events[i].Description = f.sanitizer.Sanitize(events[i].Description)
		events[i].Location = f.sanitizer.Sanitize(events[i].Location)
	}

	f.logger.Info("フィードフェッチが完了しました",
		slog.String("subscription_id", sub.ID),
		slog.String("url", sub.URL),
		slog.Int("events_parsed", len(events)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return events, nil
}

// ValidateURL は購読URLの安全性をDNS解決なしで事前検証する。
func (f *Fetcher) ValidateURL(rawURL string) error {
	return f.ssrfGuard.ValidateURL(rawURL)
}

// VerifyCalendarURL はURLが実際にiCalendarフィードを指すことを確認する。
// 購読登録時の事前チェックとして使用する。
func (f *Fetcher) VerifyCalendarURL(ctx context.Context, rawURL string) error {
	body, err := f.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if !strings.Contains(string(body), "BEGIN:VCALENDAR") {
		return fmt.Errorf("iCalendarフィードではありません: %s", rawURL)
	}
	return nil
}

// get はSSRF検証とレートリミットを適用してURLを取得する。
func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レートリミット待機に失敗: %w", err)
	}

	if err := f.ssrfGuard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "unitable/1.0 timetable sync")
	req.Header.Set("Accept", "text/calendar, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTPステータス %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	return body, nil
}
