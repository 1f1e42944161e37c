package model

import (
	"time"

	"gorm.io/datatypes"
)

// Education 教育经历。
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree"`
	Field  string `json:"field"`
}

// WorkEntry 工作经历。
type WorkEntry struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	Period      string `json:"period"`
	Description string `json:"description"`
}

// CandidateProfile 候选人档案，主键与账户 id 一一对应。
// Bio 归用户所有，解析合并永不改写；其余解析字段以最近一次解析为准。
type CandidateProfile struct {
	ID  string  `gorm:"column:id;primaryKey" json:"id"`
	Bio *string `gorm:"column:bio" json:"bio"`

	Address      *string `gorm:"column:address" json:"address"`
	EmailFromCV  *string `gorm:"column:email_from_cv" json:"email_from_cv"`
	PhoneNumber  *string `gorm:"column:phone_number" json:"phone_number"`
	GithubURL    *string `gorm:"column:github_url" json:"github_url"`
	LinkedinURL  *string `gorm:"column:linkedin_url" json:"linkedin_url"`
	PortfolioURL *string `gorm:"column:portfolio_url" json:"portfolio_url"`

	Skills          datatypes.JSONSlice[string]    `gorm:"column:skills" json:"skills"`
	Education       datatypes.JSONSlice[Education] `gorm:"column:education" json:"education"`
	WorkExperience  datatypes.JSONSlice[WorkEntry] `gorm:"column:work_experience" json:"work_experience"`
	Certifications  datatypes.JSONSlice[string]    `gorm:"column:certifications" json:"certifications"`
	ExperienceYears *int                           `gorm:"column:experience_years" json:"experience_years"`

	CVHash       *string        `gorm:"column:cv_hash;index" json:"cv_hash"`
	CVID         *string        `gorm:"column:cv_id" json:"cv_id"`
	CVFileName   *string        `gorm:"column:cv_file_name" json:"cv_file_name"`
	CVFileType   *string        `gorm:"column:cv_file_type" json:"cv_file_type"`
	ParsedCVData datatypes.JSON `gorm:"column:parsed_cv_data" json:"parsed_cv_data,omitempty"`
	CVEmbeddings datatypes.JSON `gorm:"column:cv_embeddings" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (CandidateProfile) TableName() string { return "candidates" }

// ParserOwnedColumns 是解析合并允许写入的列，bio 不在其中。
var ParserOwnedColumns = []string{
	"address",
	"email_from_cv",
	"phone_number",
	"github_url",
	"linkedin_url",
	"portfolio_url",
	"skills",
	"education",
	"work_experience",
	"certifications",
	"experience_years",
	"cv_hash",
	"cv_id",
	"cv_file_name",
	"cv_file_type",
	"parsed_cv_data",
	"cv_embeddings",
	"updated_at",
}
