package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// 取消 ctx 后服务器被优雅关闭，调度与 Redis 转发都收到取消。
func TestRunServerShutdownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newFakeServer()
	var sched, relay cancelCounter

	result := make(chan error, 1)
	go func() {
		result <- runServer(ctx, srv, 500*time.Millisecond, nil, sched.run, relay.run)
	}()

	waitFor(t, srv.listening, "server start")
	cancel()
	waitFor(t, srv.stopped, "server shutdown")

	if err := waitResult(t, result); err != nil {
		t.Fatalf("runServer returned error: %v", err)
	}
	if sched.n.Load() != 1 || relay.n.Load() != 1 {
		t.Fatalf("background tasks saw cancel %d/%d times", sched.n.Load(), relay.n.Load())
	}
}

// 后台任务异常退出时服务器同样被关闭，错误向上返回。
func TestRunServerTaskFailureStopsServer(t *testing.T) {
	srv := newFakeServer()
	boom := errors.New("redis subscription closed")

	result := make(chan error, 1)
	go func() {
		result <- runServer(context.Background(), srv, 500*time.Millisecond, nil, func(ctx context.Context) error {
			<-srv.listening
			return boom
		})
	}()

	waitFor(t, srv.stopped, "server shutdown")
	if err := waitResult(t, result); !errors.Is(err, boom) {
		t.Fatalf("expected task error, got %v", err)
	}
}

// fakeServer 在 Shutdown 之前阻塞 ListenAndServe，模拟 http.Server。
type fakeServer struct {
	listening chan struct{}
	stopped   chan struct{}
	stopOnce  sync.Once
}

func newFakeServer() *fakeServer {
	return &fakeServer{listening: make(chan struct{}), stopped: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	close(f.listening)
	<-f.stopped
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

type cancelCounter struct {
	n atomic.Int32
}

func (c *cancelCounter) run(ctx context.Context) error {
	<-ctx.Done()
	c.n.Add(1)
	return ctx.Err()
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("runServer did not return")
	}
	return nil
}
