package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// backgroundTask 与 HTTP 服务同生命周期运行的后台任务。
type backgroundTask func(ctx context.Context) error

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic job sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			deps, cleanup, err := newAppBuilder(log)(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{Addr: cfg.Server.Addr, Handler: deps.handler}
			tasks := []backgroundTask{deps.sched.Start}
			if deps.bridge != nil {
				tasks = append(tasks, deps.bridge.Run)
			}
			log.Info("listening", zap.String("addr", cfg.Server.Addr))
			return runServer(ctx, srv, cfg.Server.shutdownTimeout(), log, tasks...)
		},
	}
}

// runServer 运行 HTTP 服务与后台任务，ctx 取消时优雅关闭。
// 任一组件异常退出都会取消其他组件。
func runServer(ctx context.Context, srv httpServer, shutdownTimeout time.Duration, log *zap.Logger, tasks ...backgroundTask) error {
	if log == nil {
		log = zap.NewNop()
	}
	g, ctx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		g.Go(func() error {
			if err := task(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("background task stopped", zap.Error(err))
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
