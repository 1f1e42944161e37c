package profile

import (
	"context"

	"talent-mirror/internal/feed"
	"talent-mirror/internal/resolver"
)

// ProfileView 某个候选人档案的缓存视图。
// 档案表有写入时自动重新读取，Updates 在每次成功刷新后收到通知。
type ProfileView struct {
	view    *feed.View[resolver.ResolvedProfile]
	watcher *feed.Watcher
	updates chan struct{}
}

// OpenView 先订阅变更再首次读取档案，读取期间提交的写入会再触发一次读取。
// 首次读取失败时注销订阅且不返回视图。
func (s *Service) OpenView(ctx context.Context, hub *feed.Hub, ownerID string) (*ProfileView, error) {
	pv := &ProfileView{updates: make(chan struct{}, 1)}
	pv.view = feed.NewView(func(ctx context.Context) (resolver.ResolvedProfile, error) {
		return s.Resolved(ctx, ownerID)
	})
	pv.watcher = feed.Watch(ctx, hub, feed.Entity("candidates", ownerID), pv.refresh)
	if err := pv.view.Refresh(ctx); err != nil {
		pv.watcher.Close()
		return nil, err
	}
	return pv, nil
}

func (pv *ProfileView) refresh(ctx context.Context) error {
	if err := pv.view.Refresh(ctx); err != nil {
		return err
	}
	select {
	case pv.updates <- struct{}{}:
	default:
	}
	return nil
}

// Current 返回最近一次成功读取的档案。
func (pv *ProfileView) Current() resolver.ResolvedProfile {
	v, _ := pv.view.Get()
	return v
}

// Updates 每次刷新成功后可读；多次刷新之间未读取时合并为一次通知。
func (pv *ProfileView) Updates() <-chan struct{} {
	return pv.updates
}

// Done 在视图停止监听后关闭。
func (pv *ProfileView) Done() <-chan struct{} {
	return pv.watcher.Done()
}

// Close 注销订阅并等待监听 goroutine 退出，可重复调用。
func (pv *ProfileView) Close() {
	pv.watcher.Close()
}
