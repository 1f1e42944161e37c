package feed

import (
	"context"
	"sync"
)

// View 缓存一次读取结果。并发刷新时以最后发起且成功的读取为准，
// 先发起但后完成的读取会被丢弃，失败的读取不覆盖已有值。
type View[T any] struct {
	load func(context.Context) (T, error)

	mu      sync.Mutex
	issued  uint64
	applied uint64
	value   T
	loaded  bool
}

// NewView 创建 View。
func NewView[T any](load func(context.Context) (T, error)) *View[T] {
	return &View[T]{load: load}
}

// Refresh 执行一次读取。
func (v *View[T]) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.issued++
	seq := v.issued
	v.mu.Unlock()

	value, err := v.load(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq > v.applied {
		v.applied = seq
		v.value = value
		v.loaded = true
	}
	return nil
}

// Get 返回当前值以及是否至少成功读取过一次。
func (v *View[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.loaded
}
