package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"talent-mirror/internal/logger"
)

const app = "talent-mirror"

type rootOptions struct {
	configFile string
	debug      bool
	json       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          app,
		Short:        "talent-mirror mirrors candidate and job data from the parsing and matching service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is config.yaml or $CONFIG_FILE)")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolVarP(&opts.json, "json", "j", false, "json format for logging")

	root.AddCommand(newServeCmd(opts), newSyncCmd(opts))
	return root
}

// setup 加载配置并创建 logger，供各子命令共用。
func (o *rootOptions) setup() (AppConfig, *zap.Logger, error) {
	log, err := logger.New(o.json, o.debug)
	if err != nil {
		return AppConfig{}, nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := loadConfig(o.configFile)
	if err != nil {
		return AppConfig{}, nil, err
	}
	return cfg, log, nil
}
