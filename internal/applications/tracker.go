package applications

import (
	"context"
	"strings"
	"time"

	"talent-mirror/internal/apperr"
	"talent-mirror/internal/cache"
	"talent-mirror/internal/matching"
	"talent-mirror/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ApplyOutcome 申请结果。重复申请是结果而不是错误。
type ApplyOutcome int

const (
	Applied ApplyOutcome = iota + 1
	AlreadyApplied
)

func (o ApplyOutcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case AlreadyApplied:
		return "already_applied"
	default:
		return "unknown"
	}
}

// WithdrawOutcome 撤回结果。
type WithdrawOutcome int

const (
	Withdrawn WithdrawOutcome = iota + 1
	NotFound
)

func (o WithdrawOutcome) String() string {
	switch o {
	case Withdrawn:
		return "withdrawn"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Remote 申请状态的权威来源。
type Remote interface {
	Apply(ctx context.Context, candidateID, jobID string) (matching.ApplyStatus, error)
	Withdraw(ctx context.Context, candidateID, jobID string) (bool, error)
}

// Store 本地申请记录。
type Store interface {
	UpsertApplication(ctx context.Context, app *model.Application) error
	DeleteApplication(ctx context.Context, candidateID, jobID string) (bool, error)
	AppliedJobIDs(ctx context.Context, candidateID string) ([]string, error)
}

// remoteTimeout 合并后的远程调用不跟随任一调用方取消，只受此超时限制。
const remoteTimeout = 30 * time.Second

// Tracker 通过远程服务申请/撤回职位，并维护候选人的已申请集合。
// 同一 (候选人, 职位) 上并发的相同操作合并为一次远程调用。
type Tracker struct {
	remote Remote
	store  Store
	set    cache.AppliedSet
	group  singleflight.Group
	now    func() time.Time
	log    *zap.Logger
}

// NewTracker 创建 Tracker，set 为 nil 时使用进程内缓存。
func NewTracker(remote Remote, store Store, set cache.AppliedSet, log *zap.Logger) *Tracker {
	if set == nil {
		set = cache.NewMemorySet()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{remote: remote, store: store, set: set, now: time.Now, log: log}
}

// Apply 提交申请。远程返回已存在时报告 AlreadyApplied，本地仍标记为已申请。
func (t *Tracker) Apply(ctx context.Context, candidateID, jobID string) (ApplyOutcome, error) {
	candidateID, jobID, err := pair("applications.Apply", candidateID, jobID)
	if err != nil {
		return 0, err
	}
	v, err, shared := t.do(ctx, "apply:"+candidateID+"/"+jobID, func(ctx context.Context) (any, error) {
		status, err := t.remote.Apply(ctx, candidateID, jobID)
		if err != nil {
			return nil, err
		}
		outcome := Applied
		if status == matching.ApplyExists {
			outcome = AlreadyApplied
		}
		t.markApplied(ctx, candidateID, jobID)
		return outcome, nil
	})
	if err != nil {
		return 0, err
	}
	outcome := v.(ApplyOutcome)
	t.log.Info("apply",
		zap.String("candidate_id", candidateID),
		zap.String("job_id", jobID),
		zap.Stringer("outcome", outcome),
		zap.Bool("shared", shared))
	return outcome, nil
}

// Withdraw 撤回申请。远程不存在该申请时返回 NotFound，本地集合不变。
func (t *Tracker) Withdraw(ctx context.Context, candidateID, jobID string) (WithdrawOutcome, error) {
	candidateID, jobID, err := pair("applications.Withdraw", candidateID, jobID)
	if err != nil {
		return 0, err
	}
	v, err, _ := t.do(ctx, "withdraw:"+candidateID+"/"+jobID, func(ctx context.Context) (any, error) {
		found, err := t.remote.Withdraw(ctx, candidateID, jobID)
		if err != nil {
			return nil, err
		}
		if !found {
			return NotFound, nil
		}
		if _, err := t.store.DeleteApplication(ctx, candidateID, jobID); err != nil {
			t.log.Warn("delete local application failed", zap.String("candidate_id", candidateID), zap.String("job_id", jobID), zap.Error(err))
		}
		if err := t.set.Remove(ctx, candidateID, jobID); err != nil {
			t.log.Warn("applied cache remove failed, invalidating", zap.String("candidate_id", candidateID), zap.Error(err))
			_ = t.set.Invalidate(ctx, candidateID)
		}
		return Withdrawn, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(WithdrawOutcome), nil
}

// do 合并同 key 的并发调用。共享调用使用脱离调用方取消的 ctx，
// 每个调用方仍可在自己的 ctx 结束时提前返回。
func (t *Tracker) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	ch := t.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), remoteTimeout)
		defer cancel()
		return fn(callCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		return nil, ctx.Err(), false
	}
}

// AppliedJobs 返回候选人已申请的职位 id，缓存未命中时回源本地库。
func (t *Tracker) AppliedJobs(ctx context.Context, candidateID string) ([]string, error) {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return nil, apperr.Validation("applications.AppliedJobs", "candidate id required")
	}
	ids, ok, err := t.set.Get(ctx, candidateID)
	if err != nil {
		t.log.Warn("applied cache read failed", zap.String("candidate_id", candidateID), zap.Error(err))
	}
	if err == nil && ok {
		return ids, nil
	}

	v, err, _ := t.group.Do("load:"+candidateID, func() (any, error) {
		ids, err := t.store.AppliedJobIDs(ctx, candidateID)
		if err != nil {
			return nil, apperr.E(apperr.CodeInternal, "applications.AppliedJobs", "load applied jobs", err)
		}
		if err := t.set.Set(ctx, candidateID, ids); err != nil {
			t.log.Warn("applied cache fill failed", zap.String("candidate_id", candidateID), zap.Error(err))
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Annotate 为匹配结果标记是否已申请。
func (t *Tracker) Annotate(ctx context.Context, candidateID string, matches []matching.JobMatch) ([]matching.JobMatch, error) {
	ids, err := t.AppliedJobs(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		applied[id] = struct{}{}
	}
	out := make([]matching.JobMatch, len(matches))
	for i, m := range matches {
		_, m.Applied = applied[m.JobID]
		out[i] = m
	}
	return out, nil
}

// markApplied 把权威结果写回本地记录和缓存，失败只记日志。
func (t *Tracker) markApplied(ctx context.Context, candidateID, jobID string) {
	app := &model.Application{
		ID:          uuid.NewString(),
		CandidateID: candidateID,
		JobID:       jobID,
		Status:      model.ApplicationStatusPending,
		AppliedAt:   t.now(),
	}
	if err := t.store.UpsertApplication(ctx, app); err != nil {
		t.log.Warn("record local application failed", zap.String("candidate_id", candidateID), zap.String("job_id", jobID), zap.Error(err))
	}
	if err := t.set.Add(ctx, candidateID, jobID); err != nil {
		t.log.Warn("applied cache add failed, invalidating", zap.String("candidate_id", candidateID), zap.Error(err))
		_ = t.set.Invalidate(ctx, candidateID)
	}
}

func pair(op, candidateID, jobID string) (string, string, error) {
	candidateID = strings.TrimSpace(candidateID)
	jobID = strings.TrimSpace(jobID)
	if candidateID == "" || jobID == "" {
		return "", "", apperr.Validation(op, "candidate id and job id required")
	}
	return candidateID, jobID, nil
}
