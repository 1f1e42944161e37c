package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"talent-mirror/internal/company"
	"talent-mirror/internal/matching"
	"talent-mirror/internal/mirror"
	"talent-mirror/internal/scheduler"
	"talent-mirror/internal/storage"
)

const defaultConfigFile = "config.yaml"

// AppConfig 应用配置。
type AppConfig struct {
	Server    ServerConfig     `yaml:"server"`
	Database  storage.Config   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	Matching  matching.Config  `yaml:"matching"`
	Mirror    mirror.Config    `yaml:"mirror"`
	Scheduler scheduler.Config `yaml:"scheduler"`
	Notifier  NotifierConfig   `yaml:"notifier"`
	Company   company.Config   `yaml:"company"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// RedisConfig 为空地址时使用进程内缓存与事件分发。
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	Prefix   string `yaml:"prefix"`
	TTL      string `yaml:"ttl"`
}

type NotifierConfig struct {
	Match    bool    `yaml:"match"`
	TopN     int     `yaml:"top_n"`
	MinScore float64 `yaml:"min_score"`
}

// loadConfig 先加载 .env，再读取 YAML 并展开 ${ENV} 引用。
// 未显式指定且默认文件不存在时返回默认配置。
func loadConfig(path string) (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case os.IsNotExist(err) && !explicit:
		return withDefaults(AppConfig{}), nil
	default:
		return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return AppConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return AppConfig{}, err
	}
	return withDefaults(cfg), nil
}

func withDefaults(cfg AppConfig) AppConfig {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = storage.DriverSQLite
	}
	if cfg.Database.DSN == "" && strings.EqualFold(cfg.Database.Driver, storage.DriverSQLite) {
		cfg.Database.DSN = "data/talent-mirror.db"
	}
	return cfg
}

func (c ServerConfig) shutdownTimeout() time.Duration {
	if d, err := time.ParseDuration(c.ShutdownTimeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}

func (c RedisConfig) ttl() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}
