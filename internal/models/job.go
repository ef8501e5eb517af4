package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Job posting statuses
const (
	JobStatusOpen   = "open"
	JobStatusClosed = "closed"
)

// Job represents a posting created by a recruiter
type Job struct {
	gorm.Model

	// JobID is the public business identifier
	JobID string `json:"job_id" gorm:"uniqueIndex"`

	RecruiterID uint   `json:"recruiter_id" gorm:"not null;index"`
	Title       string `json:"title" gorm:"not null"`
	Company     string `json:"company"`
	City        string `json:"city" gorm:"index"`
	Description string `json:"description"`
	SalaryMin   int64  `json:"salary_min"`
	SalaryMax   int64  `json:"salary_max"`
	Status      string `json:"status" gorm:"default:'open'"`
}

// BeforeCreate hook to auto-generate JobID and normalize data
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.JobID == "" {
		j.JobID = fmt.Sprintf("JB%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}

	j.City = strings.TrimSpace(j.City)
	if j.Status == "" {
		j.Status = JobStatusOpen
	}

	return nil
}

// IsOpen reports whether the posting still accepts applications.
func (j *Job) IsOpen() bool {
	return j.Status == JobStatusOpen
}

// JobPosting is used for new job creation
type JobPosting struct {
	Title       string `json:"title" validate:"required"`
	Company     string `json:"company"`
	City        string `json:"city"`
	Description string `json:"description"`
	SalaryMin   int64  `json:"salary_min"`
	SalaryMax   int64  `json:"salary_max"`
}

// JobSearch carries list/search filters
type JobSearch struct {
	City    string `query:"city"`
	Keyword string `query:"q"`
}
