// Package mapping はバックエンドのワイヤ表現と統一イベント表現の
// 双方向変換を提供する。
package mapping

import (
	"strings"
	"time"

	"github.com/hitoshi/unitable/internal/backend"
	"github.com/hitoshi/unitable/internal/model"
)

// defaultEventDuration はend_date欠落時に補完するイベント長。
const defaultEventDuration = 60 * time.Minute

// untitledPlaceholder はタイトル・略称とも空の場合の代替タイトル。
// バックエンドに空タイトルを送らないための最終フォールバック。
const untitledPlaceholder = "Untitled"

// TitleAbbr はタイトルの各語の先頭文字を連結した短縮表示形を返す。
// フィードイベントの略称のデフォルト導出にも使われる。
func TitleAbbr(title string) string {
	words := strings.Fields(strings.TrimSpace(title))
	var b strings.Builder
	for _, w := range words {
		b.WriteString(string([]rune(w)[:1]))
	}
	return b.String()
}

// FromEntryDTO はバックエンドのエントリを統一イベントに変換する。
// title_shortが無ければ略称を自動導出し、end_dateが無ければ
// start+60分を補完する。display_typeの列挙外の値はnoneに落とす。
func FromEntryDTO(dto backend.EntryDTO) model.CalendarEvent {
	abbr := ""
	custom := false
	if dto.TitleShort != nil && *dto.TitleShort != "" {
		abbr = *dto.TitleShort
		custom = true
	} else {
		abbr = TitleAbbr(dto.Title)
	}

	end := dto.Date.Add(defaultEventDuration)
	if dto.EndDate != nil {
		end = *dto.EndDate
	}

	displayType := model.DisplayTypeNone
	if dto.DisplayType != nil {
		displayType = model.NormalizeDisplayType(*dto.DisplayType)
	}

	color := model.DefaultColor(displayType)
	if dto.Color != nil && *dto.Color != "" {
		color = *dto.Color
	}

	note := ""
	if dto.Note != nil {
		note = *dto.Note
	}

	return model.CalendarEvent{
		ID:                dto.ID,
		FullTitle:         dto.Title,
		TitleAbbr:         abbr,
		IsTitleAbbrCustom: custom,
		Start:             dto.Date,
		End:               end,
		Color:             color,
		Note:              note,
		DisplayType:       displayType,
		Source:            model.SourceLocal,
	}
}

// ToEntryDTO は統一イベントをバックエンドのエントリ表現に変換する。
// titleとtitle_shortは常に両方設定される。
func ToEntryDTO(ev model.CalendarEvent, userID string) backend.EntryDTO {
	title := ev.FullTitle
	abbr := ev.TitleAbbr
	if title == "" && abbr == "" {
		title = untitledPlaceholder
	}
	if abbr == "" {
		abbr = TitleAbbr(title)
	}
	if title == "" {
		title = abbr
	}

	end := ev.End
	note := ev.Note
	color := ev.Color
	displayType := string(model.NormalizeDisplayType(string(ev.DisplayType)))

	return backend.EntryDTO{
		ID:          ev.ID,
		UserID:      userID,
		Title:       title,
		TitleShort:  &abbr,
		Date:        ev.Start,
		EndDate:     &end,
		Note:        &note,
		Color:       &color,
		DisplayType: &displayType,
	}
}
