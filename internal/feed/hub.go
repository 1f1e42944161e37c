package feed

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultBuffer = 16

// Hub 进程内变更事件分发器。
// 订阅者缓冲区满时事件被丢弃而不是阻塞发布者，配合 Watcher 的合并读取即为“每批至多一次”。
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	next    uint64
	buffer  int
	log     *zap.Logger
	dropped atomic.Uint64
}

// HubOption 配置 Hub。
type HubOption func(*Hub)

// WithBuffer 设置每个订阅的缓冲大小。
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger 设置日志。
func WithLogger(l *zap.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHub 创建 Hub。
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: defaultBuffer,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription 单个订阅，只有一个消费者。
type Subscription struct {
	id     uint64
	hub    *Hub
	filter Filter
	ch     chan Event
	once   sync.Once
}

// Subscribe 注册订阅，调用方必须在结束时 Unsubscribe。
func (h *Hub) Subscribe(filter Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	sub := &Subscription{
		id:     h.next,
		hub:    h,
		filter: filter,
		ch:     make(chan Event, h.buffer),
	}
	h.subs[sub.id] = sub
	return sub
}

// Events 返回事件通道，Unsubscribe 后关闭。
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Unsubscribe 注销订阅并关闭通道，可重复调用。
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Publish 向所有匹配的订阅投递事件，从不阻塞。
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.filter.Match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
			h.log.Debug("drop change event for slow subscriber",
				zap.String("table", ev.Table),
				zap.String("key", ev.Key))
		}
	}
}

// Active 返回当前订阅数。
func (h *Hub) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped 返回因缓冲区满而丢弃的事件数。
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close 注销全部订阅。
func (h *Hub) Close() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
