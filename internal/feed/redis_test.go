package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBridgePublishesLocallyWhenRedisDown(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	sub := hub.Subscribe(Filter{Table: "jobs"})
	defer sub.Unsubscribe()

	bridge := NewRedisBridge(hub, unreachableRedis(t), "", nil)
	bridge.Publish(Event{Table: "jobs", Key: "j1"})

	select {
	case ev := <-sub.Events():
		if ev.Origin == "" || ev.Key != "j1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected local delivery")
	}
}

func TestRedisBridgeRelaySkipsOwnEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	sub := hub.Subscribe(Filter{})
	defer sub.Unsubscribe()

	bridge := NewRedisBridge(hub, unreachableRedis(t), "test", nil)

	own, _ := json.Marshal(Event{ID: "1", Table: "jobs", Origin: bridge.origin})
	bridge.relay(string(own))
	remote, _ := json.Marshal(Event{ID: "2", Table: "jobs", Origin: "other-process"})
	bridge.relay(string(remote))
	bridge.relay("not json")

	select {
	case ev := <-sub.Events():
		if ev.ID != "2" {
			t.Fatalf("expected remote event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected relayed event")
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
}
