// Package bus はプロセス内の同期イベント通知を提供する。
//
// 購読の追加・削除やメタ更新が起きたとき、同期エンジンへ
// 再同期の必要を伝えるために使う。グローバル状態を持たず、
// 依存として注入する。
package bus

import (
	"log/slog"
	"sync"
)

// SyncRequest は再同期要求の通知ペイロード。
type SyncRequest struct {
	UserID string
	Reason string
}

// Bus は同期要求の発行と購読を仲介する。
// リスナーは登録順に同期的に呼ばれる。
type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(SyncRequest)
	order     []int
	logger    *slog.Logger
}

// NewBus はBusの新しいインスタンスを生成する。
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		listeners: make(map[int]func(SyncRequest)),
		logger:    logger,
	}
}

// Subscribe はリスナーを登録し、解除用の関数を返す。
// 解除関数は複数回呼んでも安全。
func (b *Bus) Subscribe(fn func(SyncRequest)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Publish は登録順にすべてのリスナーを呼び出す。
// リスナーのpanicは回復してログに残し、残りのリスナーの
// 呼び出しは継続する。
func (b *Bus) Publish(req SyncRequest) {
	b.mu.Lock()
	fns := make([]func(SyncRequest), 0, len(b.order))
	for _, id := range b.order {
		if fn, ok := b.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range fns {
		b.invoke(fn, req)
	}
}

func (b *Bus) invoke(fn func(SyncRequest), req SyncRequest) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("同期イベントリスナーでpanicが発生しました",
				slog.String("user_id", req.UserID),
				slog.String("reason", req.Reason),
				slog.Any("panic", r),
			)
		}
	}()
	fn(req)
}
