package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/unitable/internal/backend"
	"github.com/hitoshi/unitable/internal/bus"
	"github.com/hitoshi/unitable/internal/middleware"
	"github.com/hitoshi/unitable/internal/model"
)

// SubscriptionBackend は購読ハンドラーが必要とするバックエンド操作。
type SubscriptionBackend interface {
	Subscriptions(ctx context.Context, userID string) ([]backend.SubscriptionDTO, error)
	UpsertSubscription(ctx context.Context, req backend.UpsertSubscriptionRequest) (backend.SubscriptionDTO, error)
	DeleteSubscription(ctx context.Context, userID, id string) error
}

// FeedVerifier は購読登録前のURL検証のインターフェース。
type FeedVerifier interface {
	// ValidateURL はURLの安全性を静的に検証する。
	ValidateURL(rawURL string) error
	// VerifyCalendarURL はURLが実際にiCalendarフィードを指すことを確認する。
	VerifyCalendarURL(ctx context.Context, rawURL string) error
}

// SyncPublisher は変更通知の発行インターフェース。
type SyncPublisher interface {
	Publish(req bus.SyncRequest)
}

// SubscriptionHandler は購読管理のHTTPハンドラー。
type SubscriptionHandler struct {
	backend   SubscriptionBackend
	verifier  FeedVerifier
	publisher SyncPublisher
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(b SubscriptionBackend, verifier FeedVerifier, publisher SyncPublisher) *SubscriptionHandler {
	return &SubscriptionHandler{
		backend:   b,
		verifier:  verifier,
		publisher: publisher,
	}
}

// upsertSubscriptionRequest は購読登録・更新リクエストのボディ。
type upsertSubscriptionRequest struct {
	UserID             string  `json:"user_id"`
	Name               string  `json:"name"`
	URL                string  `json:"url"`
	Color              string  `json:"color"`
	DefaultDisplayType *string `json:"default_display_type,omitempty"`
}

// ListSubscriptions はユーザーの購読一覧を取得する。
// GET /api/subscriptions?user_id=...
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingUserIDError())
		return
	}

	dtos, err := h.backend.Subscriptions(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	subs := make([]model.FeedSubscription, 0, len(dtos))
	for _, dto := range dtos {
		subs = append(subs, model.FeedSubscription{
			ID:                 dto.ID,
			Name:               dto.Name,
			URL:                dto.URL,
			Color:              dto.Color,
			DefaultDisplayType: model.NormalizeDisplayTypeOrNil(dto.DefaultDisplayType),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subs)
}

// UpsertSubscription は購読を登録または更新する。
// URLの安全性とフィードの実在を確認してからバックエンドに保存し、
// 変更通知を発行する。
// POST /api/subscriptions
func (h *SubscriptionHandler) UpsertSubscription(w http.ResponseWriter, r *http.Request) {
	var req upsertSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.UserID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingUserIDError())
		return
	}
	if req.Name == "" || req.URL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("nameとurlは必須です"))
		return
	}

	if err := h.verifier.ValidateURL(req.URL); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewSSRFBlockedError())
		return
	}
	if err := h.verifier.VerifyCalendarURL(r.Context(), req.URL); err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewNotCalendarError(req.URL))
		return
	}

	sub, err := h.backend.UpsertSubscription(r.Context(), backend.UpsertSubscriptionRequest{
		UserID:             req.UserID,
		Name:               req.Name,
		URL:                req.URL,
		Color:              req.Color,
		DefaultDisplayType: req.DefaultDisplayType,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.publisher.Publish(bus.SyncRequest{UserID: req.UserID, Reason: "subscription_upserted"})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sub)
}

// DeleteSubscription は購読を削除し、変更通知を発行する。
// DELETE /api/subscriptions/{id}?user_id=...
func (h *SubscriptionHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingUserIDError())
		return
	}

	id := chi.URLParam(r, "id")

	if err := h.backend.DeleteSubscription(r.Context(), userID, id); err != nil {
		handleServiceError(w, err)
		return
	}

	h.publisher.Publish(bus.SyncRequest{UserID: userID, Reason: "subscription_deleted"})

	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外のエラーは詳細を漏らさず500にまとめる。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		middleware.WriteInternalServerError(w)
		return
	}

	status := http.StatusInternalServerError
	switch apiErr.Code {
	case model.ErrCodeSubscriptionMissing:
		status = http.StatusNotFound
	case model.ErrCodeBackendUnavailable:
		status = http.StatusBadGateway
	case model.ErrCodeInvalidURL, model.ErrCodeSSRFBlocked, model.ErrCodeMissingUserID, model.ErrCodeInvalidRequest:
		status = http.StatusBadRequest
	case model.ErrCodeNotCalendar, model.ErrCodeFetchFailed:
		status = http.StatusUnprocessableEntity
	}

	middleware.WriteErrorResponse(w, status, apiErr)
}
