package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"talent-mirror/internal/apperr"
	"talent-mirror/internal/dedup"
	"talent-mirror/internal/logger"
	"talent-mirror/internal/matching"
	"talent-mirror/internal/model"
	"talent-mirror/internal/opt"
	"talent-mirror/internal/resolver"
	"talent-mirror/internal/storage"

	"go.uber.org/zap"
)

var (
	cvExtensions  = []string{".pdf", ".docx"}
	jobExtensions = []string{".pdf", ".docx", ".txt"}
)

// Parser 调用外部解析服务。
type Parser interface {
	ParseCV(ctx context.Context, ownerID, fileName string, content []byte) (*matching.ParseResult, error)
	ParseJob(ctx context.Context, companyID, fileName string, content []byte) (*matching.ParseResult, error)
}

// Store 档案合并需要的持久化操作。
type Store interface {
	GetCandidate(ctx context.Context, id string) (*model.CandidateProfile, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	SaveCandidateParse(ctx context.Context, profile model.CandidateProfile, doc *model.DocumentRecord) error
	SaveJobParse(ctx context.Context, job model.Job, doc *model.DocumentRecord) error
	UpdateBio(ctx context.Context, id string, bio *string) error
}

// Gate 判断上传是否重复。
type Gate interface {
	Classify(ctx context.Context, q dedup.Query) (dedup.Verdict, *dedup.Prior, error)
}

// Upload 一次文件上传。
type Upload struct {
	FileName    string
	ContentType string
	Content     []byte
}

// UploadResult 上传处理结果。重复上传不是错误，IsDuplicate 为 true 且 Response
// 为首次解析的原始响应。Warning 非空表示解析成功但本地写入失败。
type UploadResult struct {
	OwnerID     string                    `json:"owner_id"`
	DocumentID  string                    `json:"document_id"`
	Hash        string                    `json:"hash"`
	IsDuplicate bool                      `json:"is_duplicate"`
	Response    json.RawMessage           `json:"response"`
	Profile     *resolver.ResolvedProfile `json:"profile,omitempty"`
	Job         *model.Job                `json:"job,omitempty"`
	Warning     *apperr.Warning           `json:"warning,omitempty"`
}

// Service 处理简历和职位上传：去重、调用解析服务、合并写入镜像。
type Service struct {
	parser Parser
	store  Store
	gate   Gate
	log    *zap.Logger
}

// NewService 创建 Service。
func NewService(parser Parser, store Store, gate Gate, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{parser: parser, store: store, gate: gate, log: log}
}

// UploadCV 处理候选人简历上传。
func (s *Service) UploadCV(ctx context.Context, ownerID string, up Upload) (*UploadResult, error) {
	const op = "profile.UploadCV"
	ownerID = strings.TrimSpace(ownerID)
	if err := validateUpload(op, ownerID, up, cvExtensions); err != nil {
		return nil, err
	}

	contentHash, prior, err := s.check(ctx, op, ownerID, model.DocumentCV, up.Content)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return s.duplicateCV(ctx, ownerID, prior), nil
	}

	res, err := s.parser.ParseCV(ctx, ownerID, up.FileName, up.Content)
	if err != nil {
		return nil, err
	}
	if res.CV == nil {
		return nil, apperr.E(apperr.CodeRemote, op, "parse response has no parsed_cv", nil)
	}

	duplicate := s.remoteDuplicate(ctx, ownerID, model.DocumentCV, contentHash, res.IsDuplicate)
	existing := s.existingCandidate(ctx, ownerID)
	merged := Merge(existing, ownerID, res)
	merged.CVFileName = opt.Text(filepath.Base(up.FileName)).Ptr()
	merged.CVFileType = opt.Text(up.ContentType).Ptr()

	result := &UploadResult{
		OwnerID:     ownerID,
		DocumentID:  res.DocumentID,
		Hash:        res.Hash,
		IsDuplicate: duplicate,
		Response:    res.Raw,
	}
	doc := &model.DocumentRecord{
		OwnerID:     ownerID,
		Kind:        model.DocumentCV,
		ContentHash: contentHash,
		RemoteHash:  res.Hash,
		DocumentID:  res.DocumentID,
		Response:    []byte(res.Raw),
	}
	if err := s.store.SaveCandidateParse(ctx, merged, doc); err != nil {
		s.log.Error("persist parsed cv failed", logger.Owner(ownerID), zap.Error(err))
		result.Warning = apperr.Warn(apperr.WarnPersistence, "parsed cv not saved", err)
	}

	view := resolver.ResolveProfile(res.CV, &merged, s.account(ctx, ownerID))
	view.ID = ownerID
	result.Profile = &view
	s.log.Info("cv uploaded",
		logger.Owner(ownerID),
		zap.String("cv_id", res.DocumentID),
		zap.Bool("duplicate", duplicate))
	return result, nil
}

// UploadJob 处理公司职位描述上传。
func (s *Service) UploadJob(ctx context.Context, companyID string, up Upload) (*UploadResult, error) {
	const op = "profile.UploadJob"
	companyID = strings.TrimSpace(companyID)
	if err := validateUpload(op, companyID, up, jobExtensions); err != nil {
		return nil, err
	}

	contentHash, prior, err := s.check(ctx, op, companyID, model.DocumentJob, up.Content)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		result := duplicateResult(companyID, prior)
		if prior.DocumentID != "" {
			if job, err := s.store.GetJob(ctx, prior.DocumentID); err == nil {
				result.Job = job
			}
		}
		return result, nil
	}

	res, err := s.parser.ParseJob(ctx, companyID, up.FileName, up.Content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.DocumentID) == "" {
		return nil, apperr.E(apperr.CodeRemote, op, "parse response has no job id", nil)
	}

	duplicate := s.remoteDuplicate(ctx, companyID, model.DocumentJob, contentHash, res.IsDuplicate)
	var existing *model.Job
	if job, err := s.store.GetJob(ctx, res.DocumentID); err == nil {
		existing = job
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("load existing job failed", logger.Owner(companyID), zap.String("job_id", res.DocumentID), zap.Error(err))
	}
	merged := MergeJob(existing, companyID, res)

	result := &UploadResult{
		OwnerID:     companyID,
		DocumentID:  res.DocumentID,
		Hash:        res.Hash,
		IsDuplicate: duplicate,
		Response:    res.Raw,
		Job:         &merged,
	}
	doc := &model.DocumentRecord{
		OwnerID:     companyID,
		Kind:        model.DocumentJob,
		ContentHash: contentHash,
		RemoteHash:  res.Hash,
		DocumentID:  res.DocumentID,
		Response:    []byte(res.Raw),
	}
	if err := s.store.SaveJobParse(ctx, merged, doc); err != nil {
		s.log.Error("persist parsed job failed", logger.Owner(companyID), zap.Error(err))
		result.Warning = apperr.Warn(apperr.WarnPersistence, "parsed job not saved", err)
	}
	s.log.Info("job uploaded",
		logger.Owner(companyID),
		zap.String("job_id", res.DocumentID),
		zap.Bool("duplicate", duplicate))
	return result, nil
}

// UpdateBio 写入用户自己填写的简介，空白内容清空简介。
func (s *Service) UpdateBio(ctx context.Context, ownerID, bio string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return apperr.Validation("profile.UpdateBio", "owner id required")
	}
	var value *string
	if trimmed := strings.TrimSpace(bio); trimmed != "" {
		value = &trimmed
	}
	return s.store.UpdateBio(ctx, ownerID, value)
}

// Resolved 读取档案并计算每个字段的展示值。
// 解析来源取自落库的 parsed_cv_data，档案与账户都不存在时返回 NOT_FOUND。
func (s *Service) Resolved(ctx context.Context, ownerID string) (resolver.ResolvedProfile, error) {
	const op = "profile.Resolved"
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return resolver.ResolvedProfile{}, apperr.Validation(op, "owner id required")
	}

	stored, err := s.store.GetCandidate(ctx, ownerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return resolver.ResolvedProfile{}, apperr.E(apperr.CodeInternal, op, "load candidate", err)
	}
	account, err := s.store.GetAccount(ctx, ownerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return resolver.ResolvedProfile{}, apperr.E(apperr.CodeInternal, op, "load account", err)
	}
	if stored == nil && account == nil {
		return resolver.ResolvedProfile{}, apperr.E(apperr.CodeNotFound, op, "profile not found", nil)
	}

	var parsed *matching.ParsedCV
	if stored != nil {
		parsed, err = matching.DecodeParsedCV(stored.ParsedCVData)
		if err != nil {
			s.log.Warn("stored parsed cv unreadable", logger.Owner(ownerID), zap.Error(err))
			parsed = nil
		}
	}
	view := resolver.ResolveProfile(parsed, stored, account)
	view.ID = ownerID
	return view, nil
}

// check 计算内容哈希并查询去重台账，命中时返回之前的结果。
func (s *Service) check(ctx context.Context, op, ownerID string, kind model.DocumentKind, content []byte) (string, *dedup.Prior, error) {
	contentHash, err := dedup.HashContent(bytes.NewReader(content))
	if err != nil {
		return "", nil, apperr.E(apperr.CodeInternal, op, "hash upload", err)
	}
	verdict, prior, err := s.gate.Classify(ctx, dedup.Query{
		OwnerID:     ownerID,
		Kind:        kind,
		ContentHash: contentHash,
	})
	if err != nil {
		return "", nil, apperr.E(apperr.CodeInternal, op, "classify upload", err)
	}
	if verdict == dedup.DuplicateDocument && prior != nil {
		s.log.Info("duplicate upload, returning prior result",
			logger.Owner(ownerID),
			zap.String("kind", string(kind)),
			zap.String("document_id", prior.DocumentID))
		return contentHash, prior, nil
	}
	return contentHash, nil, nil
}

// remoteDuplicate 把解析服务的重复判定交给去重台账复核。台账不可用时沿用上游判定。
func (s *Service) remoteDuplicate(ctx context.Context, ownerID string, kind model.DocumentKind, contentHash string, remote bool) bool {
	verdict, _, err := s.gate.Classify(ctx, dedup.Query{
		OwnerID:         ownerID,
		Kind:            kind,
		ContentHash:     contentHash,
		RemoteDuplicate: remote,
	})
	if err != nil {
		s.log.Warn("classify parsed upload failed", logger.Owner(ownerID), zap.String("kind", string(kind)), zap.Error(err))
		return remote
	}
	return verdict == dedup.DuplicateDocument
}

func (s *Service) duplicateCV(ctx context.Context, ownerID string, prior *dedup.Prior) *UploadResult {
	result := duplicateResult(ownerID, prior)
	var parsed *matching.ParsedCV
	if res, err := matching.DecodeParseResult(prior.Response); err == nil {
		parsed = res.CV
	} else {
		s.log.Warn("prior response unreadable", logger.Owner(ownerID), zap.Error(err))
	}
	stored := s.existingCandidate(ctx, ownerID)
	view := resolver.ResolveProfile(parsed, stored, s.account(ctx, ownerID))
	view.ID = ownerID
	result.Profile = &view
	return result
}

func duplicateResult(ownerID string, prior *dedup.Prior) *UploadResult {
	return &UploadResult{
		OwnerID:     ownerID,
		DocumentID:  prior.DocumentID,
		Hash:        prior.RemoteHash,
		IsDuplicate: true,
		Response:    prior.Response,
	}
}

func (s *Service) existingCandidate(ctx context.Context, ownerID string) *model.CandidateProfile {
	existing, err := s.store.GetCandidate(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("load existing candidate failed", logger.Owner(ownerID), zap.Error(err))
		}
		return nil
	}
	return existing
}

func (s *Service) account(ctx context.Context, ownerID string) *model.Account {
	account, err := s.store.GetAccount(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("load account failed", logger.Owner(ownerID), zap.Error(err))
		}
		return nil
	}
	return account
}

func validateUpload(op, ownerID string, up Upload, allowed []string) error {
	if ownerID == "" {
		return apperr.Validation(op, "owner id required")
	}
	if len(up.Content) == 0 {
		return apperr.Validation(op, "file is empty")
	}
	ext := strings.ToLower(filepath.Ext(up.FileName))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return apperr.Validation(op, "unsupported file type, expected one of "+strings.Join(allowed, ", "))
}
