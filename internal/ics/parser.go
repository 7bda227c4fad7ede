// Package ics はiCalendar（RFC 5545のサブセット）のパース機能を提供する。
//
// パーサーは寛容に動作する: VCALENDARラッパーの検証は行わず、未知の
// プロパティは無視し、必須プロパティを欠くVEVENTブロックはそのブロック
// だけを捨てて処理を続行する。抽出するのはUID、SUMMARY、DESCRIPTION、
// LOCATION、DTSTART、DTENDの6プロパティのみ。
package ics

import (
	"strings"
	"time"

	"github.com/hitoshi/unitable/internal/model"
)

const (
	beginVEvent = "BEGIN:VEVENT"
	endVEvent   = "END:VEVENT"
)

// unfolder は論理行の展開を行う。改行直後の単一のスペースまたはタブは
// 折り返しを意味するため、他の処理より先に連結する（RFC 5545 §3.1）。
// 連結時にスペースは挿入しない。
var unfolder = strings.NewReplacer(
	"\r\n ", "",
	"\r\n\t", "",
	"\n ", "",
	"\n\t", "",
)

// Parser はICS文書をRawFeedEventの列に変換する。
// 純粋でステートレス。locはタイムゾーン指定なしの日時値の解釈に使う。
type Parser struct {
	loc *time.Location
}

// NewParser はParserを生成する。locがnilの場合はtime.Localを使う。
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{loc: loc}
}

// Parse は生のiCalendarテキストをパースする。
// 出力順は文書内の出現順。UID・DTSTART・DTENDのいずれかを欠くブロック、
// および日時のパースに失敗したブロックはそのイベントだけ捨てられる。
func (p *Parser) Parse(doc string) []model.RawFeedEvent {
	unfolded := unfolder.Replace(doc)

	parts := strings.Split(unfolded, beginVEvent)
	if len(parts) < 2 {
		return nil
	}
	parts = parts[1:]

	events := make([]model.RawFeedEvent, 0, len(parts))
	for _, part := range parts {
		if ev, ok := p.parseBlock(part); ok {
			events = append(events, ev)
		}
	}
	return events
}

// parseBlock は1つのVEVENTブロックをパースする。
// 不完全なブロックはok=falseで捨てる（致命的エラーにはしない）。
func (p *Parser) parseBlock(part string) (model.RawFeedEvent, bool) {
	body := part
	if idx := strings.Index(part, endVEvent); idx != -1 {
		body = part[:idx]
	}

	var uid, summary, description, location, dtstart, dtend string

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		// 値に":"が含まれうるため、最初の":"でのみ分割する
		idx := strings.Index(line, ":")
		if idx == -1 {
			continue
		}
		key := line[:idx]
		value := strings.TrimSpace(line[idx+1:])

		// ";"以降のプロパティパラメータは無視する
		if semi := strings.Index(key, ";"); semi != -1 {
			key = key[:semi]
		}

		switch strings.ToUpper(key) {
		case "UID":
			uid = value
		case "SUMMARY":
			summary = value
		case "DESCRIPTION":
			description = value
		case "LOCATION":
			location = value
		case "DTSTART":
			dtstart = value
		case "DTEND":
			dtend = value
		}
	}

	if uid == "" || dtstart == "" || dtend == "" {
		return model.RawFeedEvent{}, false
	}

	start, ok := p.parseDate(dtstart)
	if !ok {
		return model.RawFeedEvent{}, false
	}
	end, ok := p.parseDate(dtend)
	if !ok {
		return model.RawFeedEvent{}, false
	}

	return model.RawFeedEvent{
		UID:         uid,
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       start,
		End:         end,
	}, true
}

// fallbackLayouts は基本形式に合致しない日時値の汎用フォールバック。
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate はICSの日時値をパースする。
//   - YYYYMMDDTHHMMSS（末尾ZならUTC、なければローカル時刻）
//   - YYYYMMDD（ローカル深夜0時）
//   - それ以外は汎用フォーマットのフォールバック。全滅ならok=false。
func (p *Parser) parseDate(raw string) (time.Time, bool) {
	if strings.HasSuffix(raw, "Z") {
		if t, err := time.ParseInLocation("20060102T150405", strings.TrimSuffix(raw, "Z"), time.UTC); err == nil {
			return t, true
		}
	}
	if t, err := time.ParseInLocation("20060102T150405", raw, p.loc); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("20060102", raw, p.loc); err == nil {
		return t, true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, raw, p.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
