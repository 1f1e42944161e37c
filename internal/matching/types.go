package matching

import (
	"encoding/json"

	"talent-mirror/internal/model"
	"talent-mirror/internal/opt"
)

// ParseResult 是 parse_cv / parse_job 的规范化结果。
// Raw 保留上游原始响应体，重复上传时原样返回给调用方。
type ParseResult struct {
	DocumentID  string
	Hash        string
	IsDuplicate bool
	CV          *ParsedCV
	Job         *ParsedJob
	JobText     opt.Value[string]
	ParsedData  json.RawMessage
	Embeddings  json.RawMessage
	Raw         json.RawMessage
}

// ParsedCV 解析服务返回的简历字段，哨兵值已折叠为缺失。
// 列表字段 nil 表示未提供，空切片表示解析器明确给出空列表。
type ParsedCV struct {
	Name            opt.Value[string]
	Email           opt.Value[string]
	Phone           opt.Value[string]
	Address         opt.Value[string]
	Github          opt.Value[string]
	Linkedin        opt.Value[string]
	Portfolio       opt.Value[string]
	Skills          []string
	Education       []model.Education
	WorkExperience  []model.WorkEntry
	Certifications  []string
	ExperienceYears opt.Value[int]
}

// ParsedJob 解析服务返回的职位字段。
type ParsedJob struct {
	Title            opt.Value[string]
	Company          opt.Value[string]
	Location         opt.Value[string]
	Description      opt.Value[string]
	Website          opt.Value[string]
	RequiredSkills   []string
	Responsibilities []string
}

// ExternalJob 是 jobs/company 列表中的一条记录。
// Raw 保留原始 map，供镜像同步做结构校验。
type ExternalJob struct {
	ID               string
	CompanyID        string
	Title            opt.Value[string]
	Description      opt.Value[string]
	Location         opt.Value[string]
	SkillsRequired   []string
	Responsibilities []string
	TextHash         opt.Value[string]
	Status           opt.Value[string]
	Raw              map[string]any
}

// JobPage 一页公司职位。
type JobPage struct {
	Jobs  []ExternalJob
	Count int
}

// Scores 匹配分数。
type Scores struct {
	Combined   float64 `json:"combined_score"`
	Document   float64 `json:"doc_score"`
	Skill      float64 `json:"skill_score"`
	Experience float64 `json:"exp_score"`
}

// JobMatch 候选人匹配到的职位。
type JobMatch struct {
	JobID    string `json:"job_id"`
	JobTitle string `json:"job_title,omitempty"`
	Scores
	Applied bool `json:"applied"`
}

// CandidateMatch 职位匹配到的候选人。
type CandidateMatch struct {
	CVID        string `json:"cv_id"`
	CandidateID string `json:"candidate_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Scores
}

// ApplyStatus 远程申请结果。
type ApplyStatus int

const (
	ApplyCreated ApplyStatus = iota + 1
	ApplyExists
)
