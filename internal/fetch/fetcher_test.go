package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/unitable/internal/ics"
	"github.com/hitoshi/unitable/internal/model"
)

// passthroughGuard は検証を常に通し、素のHTTPクライアントを返す。
// httptestサーバーはループバックで動くため、テストでは本物の
// SSRFガードの代わりに使う。
type passthroughGuard struct{}

func (passthroughGuard) ValidateURL(string) error { return nil }

func (passthroughGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// rejectingGuard は検証で常に拒否する。
type rejectingGuard struct{}

func (rejectingGuard) ValidateURL(string) error { return errors.New("blocked") }

func (rejectingGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// noopSanitizer は入力をそのまま返す。
type noopSanitizer struct{}

func (noopSanitizer) Sanitize(raw string) string { return raw }

// markingSanitizer はサニタイズが適用されたことを確認するための実装。
type markingSanitizer struct{}

func (markingSanitizer) Sanitize(raw string) string { return strings.TrimPrefix(raw, "<b>") }

func newTestFetcher(guard SSRFValidator, sanitizer TextSanitizer) *Fetcher {
	return NewFetcher(
		guard,
		sanitizer,
		ics.NewParser(time.UTC),
		rate.NewLimiter(rate.Inf, 1),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		5*time.Second,
		5*1024*1024,
	)
}

const sampleFeed = "BEGIN:VCALENDAR\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:u1@example.edu\r\n" +
	"SUMMARY:<b>Big Data Analytics\r\n" +
	"DTSTART:20251001T080000Z\r\n" +
	"DTEND:20251001T100000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestFetchEvents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "unitable/") {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(sampleFeed))
	}))
	defer ts.Close()

	f := newTestFetcher(passthroughGuard{}, markingSanitizer{})
	events, err := f.FetchEvents(context.Background(), model.FeedSubscription{ID: "sub-1", URL: ts.URL})
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UID != "u1@example.edu" {
		t.Errorf("UID = %q", events[0].UID)
	}
	if events[0].Summary != "Big Data Analytics" {
		t.Errorf("sanitizer not applied to summary: %q", events[0].Summary)
	}
}

func TestFetchEventsSSRFRejected(t *testing.T) {
	f := newTestFetcher(rejectingGuard{}, noopSanitizer{})
	_, err := f.FetchEvents(context.Background(), model.FeedSubscription{ID: "sub-1", URL: "http://169.254.169.254/"})
	if err == nil {
		t.Fatal("expected error for rejected URL, got nil")
	}
}

func TestFetchEventsHTTPErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	f := newTestFetcher(passthroughGuard{}, noopSanitizer{})
	if _, err := f.FetchEvents(context.Background(), model.FeedSubscription{ID: "sub-1", URL: ts.URL}); err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}

func TestFetchEventsBodySizeLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer ts.Close()

	f := newTestFetcher(passthroughGuard{}, noopSanitizer{})
	f.maxBodySize = 10 // フィード先頭だけが読まれ、VEVENTは切り捨てられる

	events, err := f.FetchEvents(context.Background(), model.FeedSubscription{ID: "sub-1", URL: ts.URL})
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected truncated body to yield 0 events, got %d", len(events))
	}
}

func TestVerifyCalendarURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cal.ics":
			w.Write([]byte(sampleFeed))
		default:
			w.Write([]byte("<html><body>not a calendar</body></html>"))
		}
	}))
	defer ts.Close()

	f := newTestFetcher(passthroughGuard{}, noopSanitizer{})

	if err := f.VerifyCalendarURL(context.Background(), ts.URL+"/cal.ics"); err != nil {
		t.Errorf("VerifyCalendarURL(ics) = %v, want nil", err)
	}
	if err := f.VerifyCalendarURL(context.Background(), ts.URL+"/index.html"); err == nil {
		t.Error("VerifyCalendarURL(html) = nil, want error")
	}
}
