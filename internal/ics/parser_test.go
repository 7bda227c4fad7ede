package ics

import (
	"strings"
	"testing"
	"time"
)

func TestParseSingleEvent(t *testing.T) {
	doc := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:abc1",
		"SUMMARY:EC - Big Data Analytics Vorlesung",
		"DESCRIPTION:ECBDA - Big Data Analytics Vorlesung\\nGroupA\\,GroupB\\nDr. Jane Doe",
		"LOCATION:Room 101",
		"DTSTART:20260128T180000",
		"DTEND:20260128T210000",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	p := NewParser(time.UTC)
	events := p.Parse(doc)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.UID != "abc1" {
		t.Errorf("UID = %q, want %q", ev.UID, "abc1")
	}
	if ev.Summary != "EC - Big Data Analytics Vorlesung" {
		t.Errorf("Summary = %q", ev.Summary)
	}
	if ev.Location != "Room 101" {
		t.Errorf("Location = %q", ev.Location)
	}

	wantStart := time.Date(2026, 1, 28, 18, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 1, 28, 21, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", ev.Start, wantStart)
	}
	if !ev.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", ev.End, wantEnd)
	}
}

func TestParseLineUnfolding(t *testing.T) {
	// 継続行（単一スペース開始）はスペースを挿入せずに連結する
	doc := "BEGIN:VEVENT\r\n" +
		"UID:u1\r\n" +
		"SUMMARY:Softwareent\r\n wicklung\r\n" +
		"DTSTART:20260101T100000\r\n" +
		"DTEND:20260101T110000\r\n" +
		"END:VEVENT\r\n"

	events := NewParser(time.UTC).Parse(doc)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Summary != "Softwareentwicklung" {
		t.Errorf("Summary = %q, want %q", events[0].Summary, "Softwareentwicklung")
	}
}

func TestParseTabContinuation(t *testing.T) {
	doc := "BEGIN:VEVENT\nUID:u1\nSUMMARY:Ana\n\tlysis\nDTSTART:20260101\nDTEND:20260102\nEND:VEVENT\n"
	events := NewParser(time.UTC).Parse(doc)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Summary != "Analysis" {
		t.Errorf("Summary = %q, want %q", events[0].Summary, "Analysis")
	}
}

func TestParseValueContainingColon(t *testing.T) {
	// 値側の":"は分割対象にならない
	doc := "BEGIN:VEVENT\nUID:u1\nSUMMARY:EC: Big Data\nDTSTART:20260101T100000\nDTEND:20260101T110000\nEND:VEVENT\n"
	events := NewParser(time.UTC).Parse(doc)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Summary != "EC: Big Data" {
		t.Errorf("Summary = %q, want %q", events[0].Summary, "EC: Big Data")
	}
}

func TestParsePropertyParametersIgnored(t *testing.T) {
	doc := "BEGIN:VEVENT\nUID:u1\nDTSTART;TZID=Europe/Vienna:20260101T100000\nDTEND;TZID=Europe/Vienna:20260101T110000\nEND:VEVENT\n"
	events := NewParser(time.UTC).Parse(doc)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	want := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	if !events[0].Start.Equal(want) {
		t.Errorf("Start = %v, want %v", events[0].Start, want)
	}
}

func TestParseMissingRequiredPropertyDropsEvent(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing UID",
			doc:  "BEGIN:VEVENT\nSUMMARY:x\nDTSTART:20260101\nDTEND:20260102\nEND:VEVENT\n",
		},
		{
			name: "missing DTSTART",
			doc:  "BEGIN:VEVENT\nUID:u1\nDTEND:20260102\nEND:VEVENT\n",
		},
		{
			name: "missing DTEND",
			doc:  "BEGIN:VEVENT\nUID:u1\nDTSTART:20260101\nEND:VEVENT\n",
		},
		{
			name: "unparsable date",
			doc:  "BEGIN:VEVENT\nUID:u1\nDTSTART:tomorrow\nDTEND:20260102\nEND:VEVENT\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if events := NewParser(time.UTC).Parse(tt.doc); len(events) != 0 {
				t.Errorf("expected 0 events, got %d", len(events))
			}
		})
	}
}

func TestParseBadBlockDoesNotAbortDocument(t *testing.T) {
	// 不完全なブロックはそのイベントのみ捨て、文書全体のパースは継続する
	doc := "BEGIN:VEVENT\nSUMMARY:no uid\nDTSTART:20260101\nDTEND:20260102\nEND:VEVENT\n" +
		"BEGIN:VEVENT\nUID:good\nDTSTART:20260101\nDTEND:20260102\nEND:VEVENT\n"
	events := NewParser(time.UTC).Parse(doc)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UID != "good" {
		t.Errorf("UID = %q, want %q", events[0].UID, "good")
	}
}

func TestParseDateForms(t *testing.T) {
	vienna, err := time.LoadLocation("Europe/Vienna")
	if err != nil {
		t.Fatal(err)
	}
	p := NewParser(vienna)

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "UTC suffix",
			raw:  "20260128T180000Z",
			want: time.Date(2026, 1, 28, 18, 0, 0, 0, time.UTC),
		},
		{
			name: "local datetime",
			raw:  "20260128T180000",
			want: time.Date(2026, 1, 28, 18, 0, 0, 0, vienna),
		},
		{
			name: "date only is local midnight",
			raw:  "20260128",
			want: time.Date(2026, 1, 28, 0, 0, 0, 0, vienna),
		},
		{
			name: "generic fallback",
			raw:  "2026-01-28T18:00:00Z",
			want: time.Date(2026, 1, 28, 18, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.parseDate(tt.raw)
			if !ok {
				t.Fatalf("parseDate(%q) failed", tt.raw)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}

	if _, ok := p.parseDate("next tuesday"); ok {
		t.Error("unparsable date should fail")
	}
}

func TestParseDocumentOrderPreserved(t *testing.T) {
	doc := "BEGIN:VEVENT\nUID:a\nDTSTART:20260101\nDTEND:20260102\nEND:VEVENT\n" +
		"BEGIN:VEVENT\nUID:b\nDTSTART:20260103\nDTEND:20260104\nEND:VEVENT\n" +
		"BEGIN:VEVENT\nUID:c\nDTSTART:20260105\nDTEND:20260106\nEND:VEVENT\n"
	events := NewParser(time.UTC).Parse(doc)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, want := range []string{"a", "b", "c"} {
		if events[i].UID != want {
			t.Errorf("events[%d].UID = %q, want %q", i, events[i].UID, want)
		}
	}
}

func TestParseEmptyAndGarbageInput(t *testing.T) {
	if events := NewParser(time.UTC).Parse(""); len(events) != 0 {
		t.Errorf("empty input: expected 0 events, got %d", len(events))
	}
	if events := NewParser(time.UTC).Parse("not an ics document at all"); len(events) != 0 {
		t.Errorf("garbage input: expected 0 events, got %d", len(events))
	}
}
