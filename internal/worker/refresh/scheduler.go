// Package refresh は時間割の定期バックグラウンド再同期を提供する。
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/unitable/internal/bus"
	"github.com/hitoshi/unitable/internal/model"
)

// Syncer はスケジューラが必要とする同期エンジンの操作。
type Syncer interface {
	Refresh(ctx context.Context, userID string) []model.CalendarEvent
	ActiveUsers() []string
}

// Scheduler は一定間隔で全アクティブユーザーの時間割を再同期する。
// さらに変更通知バスを購読し、購読変更やメタ更新の直後にも
// 対象ユーザーの再同期を行う。
type Scheduler struct {
	syncer Syncer
	bus    *bus.Bus
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(syncer Syncer, b *bus.Bus, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer: syncer,
		bus:    b,
		logger: logger,
	}
}

// Start はスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	unsubscribe := s.bus.Subscribe(func(req bus.SyncRequest) {
		s.logger.Info("変更通知により再同期します",
			slog.String("user_id", req.UserID),
			slog.String("reason", req.Reason),
		)
		s.syncer.Refresh(ctx, req.UserID)
	})
	defer unsubscribe()

	s.logger.Info("リフレッシュスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リフレッシュスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全アクティブユーザーの再同期を1回実行する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	users := s.syncer.ActiveUsers()
	if len(users) == 0 {
		s.logger.Info("再同期対象のユーザーはいません")
		return
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		s.syncer.Refresh(ctx, userID)
	}

	s.logger.Info("リフレッシュサイクルが完了しました",
		slog.Int("user_count", len(users)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
