package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"talent-mirror/internal/apperr"
	"talent-mirror/internal/logger"
	"talent-mirror/internal/mirror"
	"talent-mirror/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config 用于调度配置。
type Config struct {
	Interval    string `yaml:"interval" json:"interval"`
	Timeout     string `yaml:"timeout" json:"timeout"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
	RunOnStart  bool   `yaml:"run_on_start" json:"run_on_start"`
}

// Syncer 同步单个公司的职位列表。
type Syncer interface {
	SyncCompany(ctx context.Context, companyID string) (mirror.SyncResult, error)
}

// Companies 列出需要同步的公司。
type Companies interface {
	ListCompanyIDs(ctx context.Context) ([]string, error)
}

// Notifier 用于发送新增职位通知。
type Notifier interface {
	Notify(ctx context.Context, companyID string, jobs []model.Job) error
}

// Report 一轮同步的汇总。部分行被拒绝的公司在 Warnings/Rejected 中按公司 id 列出。
type Report struct {
	Companies int                          `json:"companies"`
	Created   int                          `json:"created"`
	Upserted  int                          `json:"upserted"`
	Partial   int                          `json:"partial"`
	Warnings  map[string]*apperr.Warning   `json:"warnings,omitempty"`
	Rejected  map[string][]mirror.RowError `json:"rejected,omitempty"`
	Failed    map[string]string            `json:"failed,omitempty"`
	Skipped   bool                         `json:"skipped,omitempty"`
}

// Scheduler 周期性地为每个公司同步职位镜像。
type Scheduler struct {
	syncer      Syncer
	companies   Companies
	notif       Notifier
	interval    time.Duration
	timeout     time.Duration
	concurrency int
	runOnStart  bool
	running     atomic.Bool
	newTicker   func(time.Duration) ticker
	log         *zap.Logger
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewScheduler 创建 Scheduler，解析配置的间隔与超时。
func NewScheduler(s Syncer, c Companies, n Notifier, cfg Config, log *zap.Logger) *Scheduler {
	interval := 2 * time.Hour
	if d, err := time.ParseDuration(cfg.Interval); err == nil && d > 0 {
		interval = d
	}
	timeout := 5 * time.Minute
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		syncer:      s,
		companies:   c,
		notif:       n,
		interval:    interval,
		timeout:     timeout,
		concurrency: concurrency,
		runOnStart:  cfg.RunOnStart,
		newTicker:   defaultTicker,
		log:         log,
	}
}

// Start 启动调度循环，直到上下文取消。单轮失败只记录日志，不退出循环。
func (s *Scheduler) Start(ctx context.Context) error {
	if s.syncer == nil || s.companies == nil {
		return fmt.Errorf("scheduler missing dependencies")
	}

	if s.runOnStart {
		s.tick(ctx)
	}

	tick := s.newTicker(s.interval)
	defer tick.Stop()
	ch := tick.C()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			s.tick(ctx)
		drain:
			for {
				select {
				case <-ch:
					continue
				default:
					break drain
				}
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("sync round failed", zap.Error(err))
		return
	}
	if report.Skipped {
		return
	}
	s.log.Info("sync round finished",
		zap.Int("companies", report.Companies),
		zap.Int("created", report.Created),
		zap.Int("upserted", report.Upserted),
		zap.Int("partial", report.Partial),
		zap.Int("failed", len(report.Failed)))
}

// RunOnce 对外暴露单次同步接口，便于手动刷新。上一轮尚未结束时直接跳过。
// 单个公司失败记入 Report.Failed，不影响其他公司。
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	if s.running.Swap(true) {
		return Report{Skipped: true}, nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.companies.ListCompanyIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list companies: %w", err)
	}
	return s.syncAll(ctx, ids), nil
}

// RunCompanies 只同步指定公司，供手动触发使用。不受周期轮次的互斥限制，
// 同一公司的并发同步由 mirror 按公司串行化。
func (s *Scheduler) RunCompanies(ctx context.Context, ids []string) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.syncAll(ctx, ids), nil
}

func (s *Scheduler) syncAll(ctx context.Context, ids []string) Report {
	report := Report{
		Companies: len(ids),
		Warnings:  map[string]*apperr.Warning{},
		Rejected:  map[string][]mirror.RowError{},
		Failed:    map[string]string{},
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			res, err := s.syncer.SyncCompany(gctx, id)
			if err != nil {
				s.log.Warn("company sync failed", logger.Owner(id), zap.Error(err))
				mu.Lock()
				report.Failed[id] = err.Error()
				mu.Unlock()
				return nil
			}
			if s.notif != nil && len(res.NewJobs) > 0 {
				if err := s.notif.Notify(gctx, id, res.NewJobs); err != nil {
					s.log.Warn("notify new jobs failed", logger.Owner(id), zap.Error(err))
				}
			}
			mu.Lock()
			report.Created += res.Created
			report.Upserted += res.Upserted
			if res.Warning != nil {
				report.Partial++
				report.Warnings[id] = res.Warning
			}
			if len(res.Rejected) > 0 {
				report.Rejected[id] = res.Rejected
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(report.Failed) == 0 {
		report.Failed = nil
	}
	if len(report.Warnings) == 0 {
		report.Warnings = nil
	}
	if len(report.Rejected) == 0 {
		report.Rejected = nil
	}
	return report
}

func defaultTicker(d time.Duration) ticker {
	t := time.NewTicker(d)
	return tickerWrapper{t}
}

type tickerWrapper struct {
	*time.Ticker
}

func (t tickerWrapper) C() <-chan time.Time { return t.Ticker.C }
func (t tickerWrapper) Stop()               { t.Ticker.Stop() }
