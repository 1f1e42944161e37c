package model

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus 职位生命周期状态。
type JobStatus string

const (
	JobStatusActive   JobStatus = "active"
	JobStatusInactive JobStatus = "inactive"
)

// DescriptionPlaceholder 上游缺少描述时写入的占位文本，description 列永不为空。
const DescriptionPlaceholder = "No description provided"

// Job 是解析/匹配服务中职位的本地镜像。
// - ID: 外部服务分配的职位 id，本地从不生成
// - RemoteOption: 由 Location 文本推导（包含 "remote"，忽略大小写）
// - ParsedJobData/JobText: 上游原始解析结果与原文
// - CreatedAt/UpdatedAt: 由 GORM 自动维护
type Job struct {
	ID               string                      `gorm:"column:id;primaryKey" json:"id"`
	CompanyID        string                      `gorm:"column:company_id;index" json:"company_id"`
	Title            string                      `gorm:"column:title" json:"title"`
	Description      string                      `gorm:"column:description;not null" json:"description"`
	SkillsRequired   datatypes.JSONSlice[string] `gorm:"column:skills_required" json:"skills_required"`
	Responsibilities datatypes.JSONSlice[string] `gorm:"column:responsibilities" json:"responsibilities"`
	Location         *string                     `gorm:"column:location" json:"location"`
	RemoteOption     bool                        `gorm:"column:remote_option" json:"remote_option"`
	ParsedJobData    datatypes.JSON              `gorm:"column:parsed_job_data" json:"parsed_job_data,omitempty"`
	JobText          *string                     `gorm:"column:job_text" json:"job_text,omitempty"`
	TextHash         *string                     `gorm:"column:text_hash" json:"text_hash,omitempty"`
	JobEmbeddings    datatypes.JSON              `gorm:"column:job_embeddings" json:"-"`
	Status           JobStatus                   `gorm:"column:status" json:"status"`
	CreatedAt        time.Time                   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }
