package sync

import (
	"encoding/json"
	"testing"

	"github.com/hitoshi/unitable/internal/model"
)

func TestBuildFeedEventDefaults(t *testing.T) {
	sub := model.FeedSubscription{ID: "sub-1", Name: "Uni", Color: "#4dabf7"}
	raw := model.RawFeedEvent{UID: "u1", Summary: "Guest Lecture", Start: ts(10), End: ts(12)}

	ev := buildFeedEvent(sub, raw, nil)

	if ev.ID != "sub-1::u1" || ev.MetaKey != "sub-1::u1" {
		t.Errorf("id/metaKey = %q/%q", ev.ID, ev.MetaKey)
	}
	if ev.Source != model.SourceICal {
		t.Errorf("source = %q", ev.Source)
	}
	if ev.FullTitle != "Guest Lecture" || ev.TitleAbbr != "GL" || ev.IsTitleAbbrCustom {
		t.Errorf("title fields = %q/%q/%v", ev.FullTitle, ev.TitleAbbr, ev.IsTitleAbbrCustom)
	}
	if ev.Color != "#4dabf7" {
		t.Errorf("color = %q, want subscription color", ev.Color)
	}
	if ev.DisplayType != model.DisplayTypeNone || ev.Hidden {
		t.Errorf("displayType/hidden = %q/%v", ev.DisplayType, ev.Hidden)
	}
}

func TestBuildFeedEventSubscriptionDefaultDisplayType(t *testing.T) {
	course := model.DisplayTypeCourse
	sub := model.FeedSubscription{ID: "sub-1", Name: "Uni", DefaultDisplayType: &course}
	raw := model.RawFeedEvent{UID: "u1", Summary: "Lecture"}

	ev := buildFeedEvent(sub, raw, nil)

	if ev.DisplayType != model.DisplayTypeCourse {
		t.Errorf("displayType = %q, want subscription default", ev.DisplayType)
	}
	// 購読色が無い場合は分類ごとのデフォルト色
	if ev.Color != model.DefaultColor(model.DisplayTypeCourse) {
		t.Errorf("color = %q", ev.Color)
	}
}

func TestBuildFeedEventOverrides(t *testing.T) {
	sub := model.FeedSubscription{ID: "sub-1", Name: "Uni", Color: "#4dabf7"}
	raw := model.RawFeedEvent{UID: "u1", Summary: "Guest Lecture"}

	abbr := "GLEC"
	note := "bring laptop"
	hidden := true
	evType := model.DisplayTypeEvent
	overrides := map[string]model.EventMeta{
		"sub-1::u1": {TitleAbbr: &abbr, Note: &note, Hidden: &hidden, DisplayType: &evType},
	}

	ev := buildFeedEvent(sub, raw, overrides)

	if ev.TitleAbbr != "GLEC" || !ev.IsTitleAbbrCustom {
		t.Errorf("abbr = %q custom=%v", ev.TitleAbbr, ev.IsTitleAbbrCustom)
	}
	if ev.Note != "bring laptop" || !ev.Hidden || ev.DisplayType != model.DisplayTypeEvent {
		t.Errorf("override fields not applied: %+v", ev)
	}
}

func TestBuildFeedEventFHSalzburgEnrichment(t *testing.T) {
	sub := model.FeedSubscription{ID: "sub-1", Name: "FH Salzburg", Color: "#4dabf7"}
	raw := model.RawFeedEvent{
		UID:         "abc1",
		Summary:     "EC - Big Data Analytics Vorlesung",
		Description: `ECBDA - Big Data Analytics Vorlesung\nGroupA\,GroupB\nDr. Jane Doe`,
		Location:    "Room 101",
		Start:       ts(18),
		End:         ts(21),
	}

	ev := buildFeedEvent(sub, raw, nil)

	if ev.FullTitle != "Big Data Analytics" {
		t.Errorf("fullTitle = %q", ev.FullTitle)
	}
	if ev.TitleAbbr != "BDA" {
		t.Errorf("titleAbbr = %q", ev.TitleAbbr)
	}
	// 上書きも購読デフォルトも無ければ講義として分類される
	if ev.DisplayType != model.DisplayTypeCourse {
		t.Errorf("displayType = %q, want course", ev.DisplayType)
	}

	var course struct {
		Name     string   `json:"courseName"`
		Type     string   `json:"courseType"`
		Lecturer string   `json:"lecturer"`
		Location string   `json:"location"`
		Groups   []string `json:"groups"`
	}
	if err := json.Unmarshal(ev.Extra["course"], &course); err != nil {
		t.Fatalf("course extension: %v", err)
	}
	if course.Type != "Vorlesung" || course.Lecturer != "Dr. Jane Doe" || course.Location != "Room 101" {
		t.Errorf("course = %+v", course)
	}
	if len(course.Groups) != 2 || course.Groups[0] != "GroupA" {
		t.Errorf("groups = %v", course.Groups)
	}
}

func TestBuildFeedEventExtraOverlayFieldWins(t *testing.T) {
	sub := model.FeedSubscription{ID: "sub-1", Name: "fh-salzburg"}
	raw := model.RawFeedEvent{
		UID:         "u1",
		Summary:     "EC - Big Data Analytics Vorlesung",
		Description: `ECBDA - Big Data Analytics Vorlesung\nDr. Jane Doe`,
	}
	overrides := map[string]model.EventMeta{
		"sub-1::u1": {Extra: map[string]json.RawMessage{
			"course": json.RawMessage(`{"lecturer":"Prof. Replacement"}`),
			"party":  json.RawMessage(`{"attending":true}`),
		}},
	}

	ev := buildFeedEvent(sub, raw, overrides)

	var course map[string]any
	if err := json.Unmarshal(ev.Extra["course"], &course); err != nil {
		t.Fatalf("course extension: %v", err)
	}
	if course["lecturer"] != "Prof. Replacement" {
		t.Errorf("override field must win: %v", course["lecturer"])
	}
	if course["courseName"] != "Big Data Analytics" {
		t.Errorf("derived fields outside the override must survive: %v", course["courseName"])
	}
	if _, ok := ev.Extra["party"]; !ok {
		t.Error("unrelated extension slot dropped")
	}
}

func TestIsFHSalzburg(t *testing.T) {
	yes := []string{"fhsalzburg", "FH Salzburg", "fh-salzburg", "FH_SALZBURG"}
	for _, name := range yes {
		if !isFHSalzburg(name) {
			t.Errorf("isFHSalzburg(%q) = false", name)
		}
	}
	no := []string{"", "Uni Wien", "salzburg"}
	for _, name := range no {
		if isFHSalzburg(name) {
			t.Errorf("isFHSalzburg(%q) = true", name)
		}
	}
}
