package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel 是跨进程变更事件使用的 Redis 频道。
const DefaultChannel = "talent-mirror:changes"

// RedisBridge 将本地事件发布到 Redis，并把其他进程的事件转发到本地 Hub。
// 作为 storage.Publisher 使用时，本地订阅者同步收到事件。
type RedisBridge struct {
	hub     *Hub
	client  *redis.Client
	channel string
	origin  string
	log     *zap.Logger
}

// NewRedisBridge 创建桥接器，channel 为空时使用 DefaultChannel。
func NewRedisBridge(hub *Hub, client *redis.Client, channel string, log *zap.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{
		hub:     hub,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
	}
}

// Publish 先投递到本地 Hub，再尽力发布到 Redis。
func (b *RedisBridge) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Origin = b.origin
	b.hub.Publish(ev)

	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Warn("encode change event", zap.Error(err))
		return
	}
	if err := b.client.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		b.log.Warn("publish change event to redis", zap.String("channel", b.channel), zap.Error(err))
	}
}

// Run 订阅 Redis 频道并转发远程事件，直到 ctx 取消。
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			b.relay(msg.Payload)
		}
	}
}

func (b *RedisBridge) relay(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.log.Warn("decode change event", zap.Error(err))
		return
	}
	if ev.Origin == b.origin {
		return
	}
	b.hub.Publish(ev)
}
