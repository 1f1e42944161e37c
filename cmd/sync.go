package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"talent-mirror/internal/scheduler"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var companies []string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one job mirror sync pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			report, err := runOnceManual(cmd.Context(), cfg, companies, newAppBuilder(log))
			if err != nil {
				return err
			}
			log.Info("manual sync finished",
				zap.Int("companies", report.Companies),
				zap.Int("created", report.Created),
				zap.Int("upserted", report.Upserted),
				zap.Int("partial", report.Partial),
				zap.Any("failed", report.Failed))
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d companies failed to sync", len(report.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&companies, "company", nil, "sync only these company ids")
	return cmd
}

// runOnceManual 组装依赖并执行一次同步，companies 为空时同步全部公司。
func runOnceManual(ctx context.Context, cfg AppConfig, companies []string, build appBuilder) (scheduler.Report, error) {
	deps, cleanup, err := build(cfg)
	if err != nil {
		return scheduler.Report{}, err
	}
	defer cleanup()

	if len(companies) > 0 {
		return deps.sched.RunCompanies(ctx, companies)
	}
	return deps.sched.RunOnce(ctx)
}
