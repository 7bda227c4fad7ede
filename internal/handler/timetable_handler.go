package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/unitable/internal/middleware"
	"github.com/hitoshi/unitable/internal/model"
)

// TimetableSyncer は時間割同期のインターフェース。
type TimetableSyncer interface {
	// Refresh は同期ランを実行し、統一イベントリストを返す。
	// 失敗してもエラーは返さず、縮退したリストを返す。
	Refresh(ctx context.Context, userID string) []model.CalendarEvent
}

// TimetableHandler は時間割取得のHTTPハンドラー。
type TimetableHandler struct {
	syncer TimetableSyncer
}

// NewTimetableHandler はTimetableHandlerを生成する。
func NewTimetableHandler(syncer TimetableSyncer) *TimetableHandler {
	return &TimetableHandler{
		syncer: syncer,
	}
}

// timetableResponse は時間割APIのレスポンス。
type timetableResponse struct {
	Events []model.CalendarEvent `json:"events"`
}

// GetTimetable は同期を実行して統一イベントリストを返す。
// GET /api/timetable?user_id=...
func (h *TimetableHandler) GetTimetable(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingUserIDError())
		return
	}

	events := h.syncer.Refresh(r.Context(), userID)
	if events == nil {
		events = []model.CalendarEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(timetableResponse{Events: events})
}
