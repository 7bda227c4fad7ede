package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unitable/internal/bus"
	"github.com/hitoshi/unitable/internal/middleware"
	"github.com/hitoshi/unitable/internal/model"
)

// MetaUpserter はイベントメタ上書きの保存インターフェース。
type MetaUpserter interface {
	Upsert(ctx context.Context, userID, metaKey string, m model.EventMeta)
}

// EventMetaHandler はフィード由来イベントのユーザー上書きを管理する
// HTTPハンドラー。
type EventMetaHandler struct {
	meta      MetaUpserter
	publisher SyncPublisher
}

// NewEventMetaHandler はEventMetaHandlerを生成する。
func NewEventMetaHandler(meta MetaUpserter, publisher SyncPublisher) *EventMetaHandler {
	return &EventMetaHandler{
		meta:      meta,
		publisher: publisher,
	}
}

// UpsertMeta は単一イベントの上書きメタを保存し、変更通知を発行する。
// 設定されたフィールドのみが上書きとして適用される。
// PUT /api/events/{metaKey}/meta?user_id=...
func (h *EventMetaHandler) UpsertMeta(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingUserIDError())
		return
	}

	metaKey := chi.URLParam(r, "metaKey")
	if metaKey == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("metaKeyが指定されていません"))
		return
	}

	var meta model.EventMeta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	// 上書きの分類も閉じた列挙に正規化する
	if meta.DisplayType != nil {
		normalized := model.NormalizeDisplayType(string(*meta.DisplayType))
		meta.DisplayType = &normalized
	}

	h.meta.Upsert(r.Context(), userID, metaKey, meta)
	h.publisher.Publish(bus.SyncRequest{UserID: userID, Reason: "meta_updated"})

	w.WriteHeader(http.StatusNoContent)
}
