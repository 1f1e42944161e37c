package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"talent-mirror/internal/feed"
	"talent-mirror/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("record not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 数据库配置。
type Config struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// Publisher 接收已提交写入的变更事件。
type Publisher interface {
	Publish(ev feed.Event)
}

// Store 封装镜像数据库访问：候选人、职位、申请、公司与去重台账。
// 每次成功提交后通过 Publisher 发出变更事件。
type Store struct {
	db  *gorm.DB
	pub Publisher
	log *zap.Logger
}

// Option 配置 Store。
type Option func(*Store)

// WithPublisher 设置变更事件发布者。
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.pub = p }
}

// WithLogger 设置日志，gorm 的查询错误与慢查询也写入该 logger。
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// UpsertResult 表示职位写入结果。
type UpsertResult struct {
	Created int
	NewJobs []model.Job
}

// JobQueryOptions 提供职位查询过滤条件。
type JobQueryOptions struct {
	CompanyID string
	Status    model.JobStatus
	Limit     int
	Offset    int
}

// NewStore 打开 SQLite 数据库并自动迁移数据表。
func NewStore(dbPath string, opts ...Option) (*Store, error) {
	return Open(Config{Driver: DriverSQLite, DSN: dbPath}, opts...)
}

// Open 按驱动打开数据库并自动迁移数据表。
func Open(cfg Config, opts ...Option) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite:
		if dir := filepath.Dir(cfg.DSN); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	s := &Store{log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(s.log)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}

	if err := db.AutoMigrate(
		&model.CandidateProfile{},
		&model.Job{},
		&model.Application{},
		&model.Account{},
		&model.Company{},
		&model.DocumentRecord{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	s.db = db
	return s, nil
}

// SetPublisher 在创建后挂载发布者（hub 往往晚于 store 构建）。
func (s *Store) SetPublisher(p Publisher) {
	s.pub = p
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

func (s *Store) publish(table string, op feed.Op, key, owner string) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(feed.Event{Table: table, Op: op, Key: key, OwnerID: owner, At: time.Now().UTC()})
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

var jobColumns = []string{
	"company_id",
	"title",
	"description",
	"skills_required",
	"responsibilities",
	"location",
	"remote_option",
	"parsed_job_data",
	"job_text",
	"text_hash",
	"job_embeddings",
	"status",
	"updated_at",
}

// syncColumns 是列表同步可写的职位列，不覆盖解析结果与原文。
var syncColumns = []string{
	"company_id",
	"title",
	"description",
	"skills_required",
	"responsibilities",
	"location",
	"remote_option",
	"status",
	"updated_at",
}

// UpsertJobs 在一个事务内批量写入职位，已有主键则更新同步列，返回新增数量与新增记录。
// 任意一行失败整批回滚。
func (s *Store) UpsertJobs(ctx context.Context, jobs []model.Job) (UpsertResult, error) {
	res := UpsertResult{}
	if len(jobs) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&model.Job{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return fmt.Errorf("query existing ids: %w", err)
		}
		existingSet := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			existingSet[id] = struct{}{}
		}
		for i, id := range ids {
			if _, ok := existingSet[id]; !ok {
				res.Created++
				res.NewJobs = append(res.NewJobs, jobs[i])
				existingSet[id] = struct{}{}
			}
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(syncColumns),
		}).Create(&jobs).Error; err != nil {
			return fmt.Errorf("upsert jobs: %w", err)
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}

	for _, job := range jobs {
		s.publish("jobs", feed.OpUpsert, job.ID, job.CompanyID)
	}
	return res, nil
}

// UpsertJob 写入单个职位，created 表示是否为新行。
func (s *Store) UpsertJob(ctx context.Context, job model.Job) (bool, error) {
	res, err := s.UpsertJobs(ctx, []model.Job{job})
	if err != nil {
		return false, err
	}
	return res.Created == 1, nil
}

// SaveJobParse 在一个事务内写入职位解析结果与去重台账。
func (s *Store) SaveJobParse(ctx context.Context, job model.Job, doc *model.DocumentRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(jobColumns),
		}).Create(&job).Error; err != nil {
			return fmt.Errorf("upsert job: %w", err)
		}
		return recordDocument(tx, doc)
	})
	if err != nil {
		return err
	}
	s.publish("jobs", feed.OpUpsert, job.ID, job.CompanyID)
	return nil
}

// ListJobs 返回按创建时间倒序的职位列表。
func (s *Store) ListJobs(ctx context.Context, opts JobQueryOptions) ([]model.Job, error) {
	var jobs []model.Job
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := applyJobFilters(s.db.WithContext(ctx).Model(&model.Job{}), opts).Order("created_at DESC").Order("id ASC")
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// CountJobs 返回满足过滤条件的职位数量。
func (s *Store) CountJobs(ctx context.Context, opts JobQueryOptions) (int64, error) {
	var total int64
	query := applyJobFilters(s.db.WithContext(ctx).Model(&model.Job{}), opts)
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return total, nil
}

// GetJob 根据 ID 获取职位。
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// DeleteJob 删除本地职位及其申请记录。
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	var job model.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			if notFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("load job: %w", err)
		}
		if err := tx.Where("job_id = ?", id).Delete(&model.Application{}).Error; err != nil {
			return fmt.Errorf("delete job applications: %w", err)
		}
		if err := tx.Delete(&model.Job{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish("jobs", feed.OpDelete, id, job.CompanyID)
	return nil
}

func applyJobFilters(db *gorm.DB, opts JobQueryOptions) *gorm.DB {
	if opts.CompanyID != "" {
		db = db.Where("company_id = ?", opts.CompanyID)
	}
	if opts.Status != "" {
		db = db.Where("status = ?", opts.Status)
	}
	return db
}

// GetCandidate 根据 ID 获取候选人档案。
func (s *Store) GetCandidate(ctx context.Context, id string) (*model.CandidateProfile, error) {
	var profile model.CandidateProfile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return &profile, nil
}

// FindCandidateByCVHash 根据远程 cv hash 查找候选人。
func (s *Store) FindCandidateByCVHash(ctx context.Context, hash string) (*model.CandidateProfile, error) {
	var profile model.CandidateProfile
	if err := s.db.WithContext(ctx).First(&profile, "cv_hash = ?", hash).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find candidate by cv hash: %w", err)
	}
	return &profile, nil
}

// SaveCandidateParse 在一个事务内写入候选人解析字段与去重台账。
// 冲突时只更新解析器拥有的列，bio 不受影响。
func (s *Store) SaveCandidateParse(ctx context.Context, profile model.CandidateProfile, doc *model.DocumentRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(model.ParserOwnedColumns),
		}).Create(&profile).Error; err != nil {
			return fmt.Errorf("upsert candidate: %w", err)
		}
		return recordDocument(tx, doc)
	})
	if err != nil {
		return err
	}
	s.publish("candidates", feed.OpUpsert, profile.ID, profile.ID)
	return nil
}

// UpdateBio 只写 bio 列，档案不存在时创建。
func (s *Store) UpdateBio(ctx context.Context, id string, bio *string) error {
	profile := model.CandidateProfile{ID: id, Bio: bio}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"bio", "updated_at"}),
	}).Create(&profile).Error; err != nil {
		return fmt.Errorf("update bio: %w", err)
	}
	s.publish("candidates", feed.OpUpsert, id, id)
	return nil
}

func recordDocument(tx *gorm.DB, doc *model.DocumentRecord) error {
	if doc == nil {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "kind"}, {Name: "content_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"remote_hash", "document_id", "response"}),
	}).Create(doc).Error; err != nil {
		return fmt.Errorf("record document: %w", err)
	}
	return nil
}

// FindDocument 查询去重台账。
func (s *Store) FindDocument(ctx context.Context, ownerID string, kind model.DocumentKind, contentHash string) (*model.DocumentRecord, error) {
	var doc model.DocumentRecord
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND kind = ? AND content_hash = ?", ownerID, kind, contentHash).
		First(&doc).Error
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// GetAccount 获取账户资料。
func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// CreateAccount 写入账户资料，供引导数据与测试使用。
func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// UpsertCompany 按 id 写入公司资料。
func (s *Store) UpsertCompany(ctx context.Context, company *model.Company) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"company_description",
			"website_url",
			"company_size",
			"industry",
			"founded_year",
			"updated_at",
		}),
	}).Create(company).Error; err != nil {
		return fmt.Errorf("upsert company: %w", err)
	}
	s.publish("companies", feed.OpUpsert, company.ID, company.ID)
	return nil
}

// GetCompany 获取公司资料。
func (s *Store) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var company model.Company
	if err := s.db.WithContext(ctx).First(&company, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &company, nil
}

// ListCompanyIDs 返回所有公司 id，供定时同步使用。
func (s *Store) ListCompanyIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.Company{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list company ids: %w", err)
	}
	return ids, nil
}

// UpsertApplication 写入申请，(candidate_id, job_id) 冲突时更新状态与分数。
func (s *Store) UpsertApplication(ctx context.Context, app *model.Application) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "candidate_id"}, {Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "match_score"}),
	}).Create(app).Error; err != nil {
		return fmt.Errorf("upsert application: %w", err)
	}
	s.publish("applications", feed.OpUpsert, app.JobID, app.CandidateID)
	return nil
}

// DeleteApplication 删除申请，返回是否删除了记录。
func (s *Store) DeleteApplication(ctx context.Context, candidateID, jobID string) (bool, error) {
	tx := s.db.WithContext(ctx).
		Where("candidate_id = ? AND job_id = ?", candidateID, jobID).
		Delete(&model.Application{})
	if tx.Error != nil {
		return false, fmt.Errorf("delete application: %w", tx.Error)
	}
	if tx.RowsAffected > 0 {
		s.publish("applications", feed.OpDelete, jobID, candidateID)
	}
	return tx.RowsAffected > 0, nil
}

// AppliedJobIDs 返回候选人已申请的职位 id。
func (s *Store) AppliedJobIDs(ctx context.Context, candidateID string) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.Application{}).
		Where("candidate_id = ? AND status <> ?", candidateID, model.ApplicationStatusWithdrawn).
		Order("applied_at ASC").
		Pluck("job_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("applied job ids: %w", err)
	}
	return ids, nil
}
