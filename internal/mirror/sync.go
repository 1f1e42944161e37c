package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"talent-mirror/internal/apperr"
	"talent-mirror/internal/logger"
	"talent-mirror/internal/matching"
	"talent-mirror/internal/model"
	"talent-mirror/internal/opt"
	"talent-mirror/internal/storage"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultPageSize = 50
	defaultMaxPages = 20
)

// Remote 外部服务上的职位操作。
type Remote interface {
	ListJobsForCompany(ctx context.Context, companyID string, limit, offset int) (matching.JobPage, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// Store 镜像写入接口。
type Store interface {
	UpsertJobs(ctx context.Context, jobs []model.Job) (storage.UpsertResult, error)
	UpsertJob(ctx context.Context, job model.Job) (bool, error)
	DeleteJob(ctx context.Context, id string) error
}

// Config 同步分页配置。
type Config struct {
	PageSize int `yaml:"page_size" json:"page_size"`
	MaxPages int `yaml:"max_pages" json:"max_pages"`
}

// RowError 单行被拒绝的原因。
type RowError struct {
	Index   int    `json:"index"`
	JobID   string `json:"job_id,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// SyncResult 一次同步的结果。Warning 非空表示部分行失败，但成功的行已写入。
type SyncResult struct {
	OwnerID  string          `json:"owner_id"`
	Received int             `json:"received"`
	Upserted int             `json:"upserted"`
	Created  int             `json:"created"`
	NewJobs  []model.Job     `json:"-"`
	Rejected []RowError      `json:"rejected,omitempty"`
	Warning  *apperr.Warning `json:"warning,omitempty"`
}

// Synchronizer 把外部职位列表写入本地镜像。
type Synchronizer struct {
	remote   Remote
	store    Store
	log      *zap.Logger
	locks    keyedMutex
	pageSize int
	maxPages int
}

// New 创建 Synchronizer。
func New(remote Remote, store Store, cfg Config, log *zap.Logger) *Synchronizer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	return &Synchronizer{
		remote:   remote,
		store:    store,
		log:      logger.Named(log, "mirror"),
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
	}
}

// Sync 写入一批外部职位。同一 owner 的同步串行执行；
// 整批写入被拒绝时逐行重试，失败行记入 Rejected，不回滚成功行。
func (s *Synchronizer) Sync(ctx context.Context, ownerID string, records []matching.ExternalJob) (SyncResult, error) {
	const op = "mirror.Sync"
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return SyncResult{}, apperr.Validation(op, "owner id is required")
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	res := SyncResult{OwnerID: ownerID, Received: len(records)}
	rows := make([]model.Job, 0, len(records))
	indexOf := make(map[string]int, len(records))
	rowIndex := make([]int, 0, len(records))
	for i, rec := range records {
		row, err := toRow(ownerID, rec)
		if err != nil {
			res.Rejected = append(res.Rejected, rowError(i, rec.ID, err))
			continue
		}
		// 同一批内重复 id 以最后一条为准
		if pos, dup := indexOf[row.ID]; dup {
			rows[pos] = row
			rowIndex[pos] = i
			continue
		}
		indexOf[row.ID] = len(rows)
		rows = append(rows, row)
		rowIndex = append(rowIndex, i)
	}

	if len(rows) > 0 {
		batch, err := s.store.UpsertJobs(ctx, rows)
		if err == nil {
			res.Upserted = len(rows)
			res.Created = batch.Created
			res.NewJobs = batch.NewJobs
		} else {
			if ctx.Err() != nil {
				return res, fmt.Errorf("%s: %w", op, err)
			}
			s.log.Warn("batch upsert rejected, falling back to per-row", logger.Owner(ownerID), zap.Int("rows", len(rows)), zap.Error(err))
			for pos, row := range rows {
				created, err := s.store.UpsertJob(ctx, row)
				if err != nil {
					res.Rejected = append(res.Rejected, rowError(rowIndex[pos], row.ID, err))
					continue
				}
				res.Upserted++
				if created {
					res.Created++
					res.NewJobs = append(res.NewJobs, row)
				}
			}
		}
	}

	if len(res.Rejected) > 0 {
		res.Warning = apperr.Warn(apperr.WarnSyncPartial,
			fmt.Sprintf("%d of %d records rejected", len(res.Rejected), len(records)),
			errors.Join(rowErrs(res.Rejected)...))
		s.log.Warn("sync finished with rejected rows", logger.Owner(ownerID), zap.Int("rejected", len(res.Rejected)), zap.Int("upserted", res.Upserted))
	} else {
		s.log.Info("sync finished", logger.Owner(ownerID), zap.Int("upserted", res.Upserted), zap.Int("created", res.Created))
	}
	return res, nil
}

// SyncCompany 分页拉取公司的全部职位并同步。
func (s *Synchronizer) SyncCompany(ctx context.Context, companyID string) (SyncResult, error) {
	const op = "mirror.SyncCompany"
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return SyncResult{}, apperr.Validation(op, "company id is required")
	}

	var records []matching.ExternalJob
	for page := 0; page < s.maxPages; page++ {
		offset := page * s.pageSize
		res, err := s.remote.ListJobsForCompany(ctx, companyID, s.pageSize, offset)
		if err != nil {
			return SyncResult{}, err
		}
		records = append(records, res.Jobs...)
		if len(res.Jobs) < s.pageSize || (res.Count > 0 && offset+len(res.Jobs) >= res.Count) {
			break
		}
	}
	return s.Sync(ctx, companyID, records)
}

// DeleteJob 先删除外部职位，成功后再删除本地镜像；任一步失败即整体失败，不自动重试。
// 本地已不存在视为成功。
func (s *Synchronizer) DeleteJob(ctx context.Context, ownerID, jobID string) error {
	const op = "mirror.DeleteJob"
	if strings.TrimSpace(jobID) == "" {
		return apperr.Validation(op, "job id is required")
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	if err := s.remote.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	if err := s.store.DeleteJob(ctx, jobID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Error("remote job deleted but local delete failed", logger.Owner(ownerID), zap.String("job_id", jobID), zap.Error(err))
		return apperr.E(apperr.CodeInternal, op, "local delete failed after remote delete", err)
	}
	return nil
}

func toRow(ownerID string, rec matching.ExternalJob) (model.Job, error) {
	if err := validateRecord(rec.Raw); err != nil {
		return model.Job{}, err
	}
	id := strings.TrimSpace(rec.ID)
	if opt.IsSentinel(id) {
		return model.Job{}, errors.New("record has no external id")
	}
	companyID := strings.TrimSpace(rec.CompanyID)
	if companyID == "" {
		companyID = ownerID
	}
	if companyID != ownerID {
		return model.Job{}, fmt.Errorf("record belongs to company %q", companyID)
	}

	description := PlainText(rec.Description.OrElse(""))
	if description == "" {
		description = model.DescriptionPlaceholder
	}
	skills := rec.SkillsRequired
	if skills == nil {
		skills = []string{}
	}
	responsibilities := rec.Responsibilities
	if responsibilities == nil {
		responsibilities = []string{}
	}
	status := model.JobStatusActive
	if strings.EqualFold(rec.Status.OrElse(""), string(model.JobStatusInactive)) {
		status = model.JobStatusInactive
	}

	return model.Job{
		ID:               id,
		CompanyID:        companyID,
		Title:            rec.Title.OrElse(""),
		Description:      description,
		SkillsRequired:   datatypes.JSONSlice[string](skills),
		Responsibilities: datatypes.JSONSlice[string](responsibilities),
		Location:         rec.Location.Ptr(),
		RemoteOption:     IsRemote(rec.Location),
		TextHash:         rec.TextHash.Ptr(),
		Status:           status,
	}, nil
}

// IsRemote 位置文本包含 "remote"（忽略大小写）即视为远程。
func IsRemote(location opt.Value[string]) bool {
	loc, ok := location.Get()
	return ok && strings.Contains(strings.ToLower(loc), "remote")
}

func rowError(index int, id string, err error) RowError {
	return RowError{Index: index, JobID: id, Err: err, Message: err.Error()}
}

func rowErrs(rows []RowError) []error {
	out := make([]error, 0, len(rows))
	for _, r := range rows {
		out = append(out, fmt.Errorf("row %d (%s): %w", r.Index, r.JobID, r.Err))
	}
	return out
}
