package sync

import (
	"encoding/json"
	"strings"

	"github.com/hitoshi/unitable/internal/backend"
	"github.com/hitoshi/unitable/internal/fhsalzburg"
	"github.com/hitoshi/unitable/internal/mapping"
	"github.com/hitoshi/unitable/internal/model"
)

// courseExtraKey は講義情報の拡張スロット名。
const courseExtraKey = "course"

// mergeLocalExtras はバックエンドのワイヤ表現が持たないフィールドを
// 前回キャッシュから引き継ぐ。値が明示的に供給されていれば常に
// 新しい値が勝ち、真の欠落のみキャッシュにフォールバックする。
// 疎なレスポンスが過去に付与されたフィールドを消すのを防ぐ。
func mergeLocalExtras(fresh model.CalendarEvent, dto backend.EntryDTO, cached model.CalendarEvent) model.CalendarEvent {
	// 拡張フィールドと非表示フラグはリモートが所有しない
	fresh.Extra = cached.Extra
	fresh.Hidden = cached.Hidden

	if dto.Title == "" && cached.FullTitle != "" {
		fresh.FullTitle = cached.FullTitle
	}
	if dto.TitleShort == nil && cached.TitleAbbr != "" {
		fresh.TitleAbbr = cached.TitleAbbr
		fresh.IsTitleAbbrCustom = cached.IsTitleAbbrCustom
	}
	if dto.Note == nil && cached.Note != "" {
		fresh.Note = cached.Note
	}
	if dto.DisplayType == nil && cached.DisplayType != "" {
		fresh.DisplayType = cached.DisplayType
		// 色が明示されていなければ分類に合わせてデフォルトを引き直す
		if dto.Color == nil {
			fresh.Color = model.DefaultColor(fresh.DisplayType)
		}
	}
	return fresh
}

// buildFeedEvent はパース済みフィードイベント1件を統一イベントに
// 組み立てる。優先順位は上書きメタ、購読デフォルト、組み込み
// デフォルトの順。
func buildFeedEvent(sub model.FeedSubscription, raw model.RawFeedEvent, overrides map[string]model.EventMeta) model.CalendarEvent {
	metaKey := model.MakeMetaKey(sub.ID, raw.UID)
	override := overrides[metaKey]

	fullTitle := raw.Summary
	abbr := mapping.TitleAbbr(raw.Summary)
	extra := map[string]json.RawMessage{}
	enriched := false

	// FHザルツブルクのフィードはDESCRIPTIONから構造化講義情報を抽出する
	if isFHSalzburg(sub.Name) {
		info := fhsalzburg.ParseDescription(raw.Description)
		if info.Title != "" {
			info.Location = raw.Location
			fullTitle = info.Title
			abbr = info.TitleAbbr
			enriched = true
			if encoded, err := json.Marshal(info); err == nil {
				extra[courseExtraKey] = encoded
			}
		}
	}

	displayType := model.DisplayTypeNone
	switch {
	case override.DisplayType != nil:
		displayType = *override.DisplayType
	case sub.DefaultDisplayType != nil:
		displayType = *sub.DefaultDisplayType
	case enriched:
		displayType = model.DisplayTypeCourse
	}

	color := sub.Color
	if color == "" {
		color = model.DefaultColor(displayType)
	}
	if override.Color != nil {
		color = *override.Color
	}

	custom := false
	if override.TitleAbbr != nil {
		abbr = *override.TitleAbbr
		custom = true
	}
	if override.IsTitleAbbrCustom != nil {
		custom = *override.IsTitleAbbrCustom
	}

	note := ""
	if override.Note != nil {
		note = *override.Note
	}

	hidden := false
	if override.Hidden != nil {
		hidden = *override.Hidden
	}

	return model.CalendarEvent{
		ID:                 metaKey,
		FullTitle:          fullTitle,
		TitleAbbr:          abbr,
		IsTitleAbbrCustom:  custom,
		Start:              raw.Start,
		End:                raw.End,
		Color:              color,
		Note:               note,
		DisplayType:        displayType,
		Source:             model.SourceICal,
		Hidden:             hidden,
		ICalSubscriptionID: sub.ID,
		ICalEventUID:       raw.UID,
		MetaKey:            metaKey,
		Extra:              mergeExtra(extra, override.Extra),
	}
}

// mergeExtra は導出した拡張フィールドの上にユーザー上書きを重ねる。
// 同じスロットが両方ともJSONオブジェクトならトップレベルのキー単位で
// マージし（上書き側が勝つ）、それ以外は上書き側の値をそのまま使う。
// エンジンは中身のスキーマを解釈しない。
func mergeExtra(derived, override map[string]json.RawMessage) map[string]json.RawMessage {
	if len(derived) == 0 && len(override) == 0 {
		return nil
	}

	out := make(map[string]json.RawMessage, len(derived)+len(override))
	for k, v := range derived {
		out[k] = v
	}
	for k, v := range override {
		base, exists := out[k]
		if !exists {
			out[k] = v
			continue
		}

		var baseObj, overObj map[string]json.RawMessage
		if json.Unmarshal(base, &baseObj) != nil || json.Unmarshal(v, &overObj) != nil {
			out[k] = v
			continue
		}
		for field, val := range overObj {
			baseObj[field] = val
		}
		if merged, err := json.Marshal(baseObj); err == nil {
			out[k] = merged
		} else {
			out[k] = v
		}
	}
	return out
}

// isFHSalzburg は購読名がFHザルツブルクのフィードを指すかを判定する。
// 大文字小文字と空白・ハイフン・アンダースコアの違いを無視する。
func isFHSalzburg(name string) bool {
	normalized := strings.ToLower(name)
	normalized = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(normalized)
	return normalized == "fhsalzburg"
}
