package models

import "gorm.io/gorm"

// Application statuses
const (
	ApplicationSubmitted = "submitted"
	ApplicationReviewed  = "reviewed"
	ApplicationRejected  = "rejected"
)

// Application links a seeker to a job posting. One application per
// seeker per job, enforced by the composite unique index.
type Application struct {
	gorm.Model

	JobID    uint   `json:"job_id" gorm:"not null;uniqueIndex:idx_app_job_seeker"`
	SeekerID uint   `json:"seeker_id" gorm:"not null;index;uniqueIndex:idx_app_job_seeker"`
	Note     string `json:"note"`
	Status   string `json:"status" gorm:"default:'submitted'"`
}
