package feed

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Watcher 把订阅事件转换为重新读取，一批连续事件只触发一次读取。
type Watcher struct {
	sub    *Subscription
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Watch 订阅 filter 并在收到事件时调用 reread。
// ctx 取消或 Close 都会注销订阅；Close 返回时后台 goroutine 已退出。
func Watch(ctx context.Context, hub *Hub, filter Filter, reread func(context.Context) error) *Watcher {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		sub:    hub.Subscribe(filter),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.loop(ctx, hub.log, reread)
	return w
}

func (w *Watcher) loop(ctx context.Context, log *zap.Logger, reread func(context.Context) error) {
	defer close(w.done)
	defer w.sub.Unsubscribe()

	ch := w.sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
		drain:
			for {
				select {
				case _, ok := <-ch:
					if !ok {
						return
					}
				default:
					break drain
				}
			}
			if err := reread(ctx); err != nil && ctx.Err() == nil {
				log.Warn("re-read after change failed",
					zap.String("table", w.sub.filter.Table),
					zap.String("owner_id", w.sub.filter.OwnerID),
					zap.Error(err))
			}
		}
	}
}

// Close 停止监听并等待后台 goroutine 退出，可重复调用。
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// Done 在后台 goroutine 退出后关闭。
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}
