package model

import "time"

const (
	ApplicationStatusPending   = "pending"
	ApplicationStatusWithdrawn = "withdrawn"
)

// Application 候选人对职位的申请，(CandidateID, JobID) 唯一。
type Application struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	CandidateID string    `gorm:"column:candidate_id;uniqueIndex:idx_applications_pair" json:"candidate_id"`
	JobID       string    `gorm:"column:job_id;uniqueIndex:idx_applications_pair" json:"job_id"`
	MatchScore  *float64  `gorm:"column:match_score" json:"match_score"`
	Status      string    `gorm:"column:status" json:"status"`
	AppliedAt   time.Time `gorm:"column:applied_at" json:"applied_at"`
}

func (Application) TableName() string { return "applications" }
