package notifier

import (
	"context"
	"errors"

	"talent-mirror/internal/logger"
	"talent-mirror/internal/matching"
	"talent-mirror/internal/model"

	"go.uber.org/zap"
)

// Notifier 接收某个公司新镜像的职位。
type Notifier interface {
	Notify(ctx context.Context, companyID string, jobs []model.Job) error
}

// LogNotifier 仅记录新增职位，适合开发阶段使用。
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier 创建日志通知器，未提供 logger 时不输出。
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

// Notify 逐条记录新增职位信息。
func (n *LogNotifier) Notify(ctx context.Context, companyID string, jobs []model.Job) error {
	for _, job := range jobs {
		n.log.Info("new job",
			logger.Owner(companyID),
			zap.String("job_id", job.ID),
			zap.String("title", job.Title),
			zap.Bool("remote", job.RemoteOption))
	}
	return nil
}

// Matcher 为职位查找匹配的候选人。
type Matcher interface {
	MatchJobToCandidates(ctx context.Context, jobHash string, topN int) ([]matching.CandidateMatch, error)
}

// MatchNotifier 为每个新职位查询匹配候选人，并记录分数达到阈值的结果。
// 没有 text_hash 的职位无法匹配，直接跳过。
type MatchNotifier struct {
	matcher  Matcher
	topN     int
	minScore float64
	log      *zap.Logger
}

// NewMatchNotifier 创建 MatchNotifier，topN 不大于 0 时取 5。
func NewMatchNotifier(m Matcher, topN int, minScore float64, log *zap.Logger) *MatchNotifier {
	if topN <= 0 {
		topN = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MatchNotifier{matcher: m, topN: topN, minScore: minScore, log: log}
}

// Notify 单个职位匹配失败不影响其他职位，所有错误合并返回。
func (n *MatchNotifier) Notify(ctx context.Context, companyID string, jobs []model.Job) error {
	var errs []error
	for _, job := range jobs {
		if job.TextHash == nil || *job.TextHash == "" {
			continue
		}
		matches, err := n.matcher.MatchJobToCandidates(ctx, *job.TextHash, n.topN)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, m := range matches {
			if m.Combined < n.minScore {
				continue
			}
			n.log.Info("candidate match for new job",
				logger.Owner(companyID),
				zap.String("job_id", job.ID),
				zap.String("candidate_id", m.CandidateID),
				zap.Float64("score", m.Combined))
		}
	}
	return errors.Join(errs...)
}

// Multi 依次调用多个通知器。
type Multi []Notifier

// Notify 调用全部通知器并合并错误。
func (m Multi) Notify(ctx context.Context, companyID string, jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, companyID, jobs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
