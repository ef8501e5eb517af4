package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/kariyab/kariyab-backend/internal/apperrors"
	"github.com/kariyab/kariyab-backend/internal/middleware"
	"github.com/kariyab/kariyab-backend/internal/models"
	"github.com/kariyab/kariyab-backend/internal/storage"
)

// JobHandler handles job posting and application requests
type JobHandler struct {
	store storage.Store
}

// NewJobHandler creates a new job handler
func NewJobHandler(store storage.Store) *JobHandler {
	return &JobHandler{store: store}
}

// Create handles POST /jobs (recruiter only)
func (h *JobHandler) Create(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)

	var posting models.JobPosting
	if err := c.BodyParser(&posting); err != nil {
		return apperrors.Validation("INVALID_BODY", "invalid request body")
	}
	if posting.Title == "" {
		return apperrors.Validation("TITLE_REQUIRED", "title is required")
	}

	job, err := h.store.CreateJob(&models.Job{
		RecruiterID: identity.ID,
		Title:       posting.Title,
		Company:     posting.Company,
		City:        posting.City,
		Description: posting.Description,
		SalaryMin:   posting.SalaryMin,
		SalaryMax:   posting.SalaryMax,
	})
	if err != nil {
		return apperrors.Internal("failed to create job")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "job posted",
		"job":     job,
	})
}

// List handles GET /jobs with optional city and q filters
func (h *JobHandler) List(c *fiber.Ctx) error {
	search := &models.JobSearch{
		City:    c.Query("city"),
		Keyword: c.Query("q"),
	}

	jobs, err := h.store.SearchJobs(search)
	if err != nil {
		return apperrors.Internal("failed to search jobs")
	}

	return c.JSON(fiber.Map{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// Get handles GET /jobs/:id
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, err := h.store.GetJobByJobID(c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("JOB_NOT_FOUND", "job not found")
		}
		return apperrors.Internal("failed to load job")
	}
	return c.JSON(job)
}

// Close handles POST /jobs/:id/close (recruiter only, own jobs)
func (h *JobHandler) Close(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)

	job, err := h.store.GetJobByJobID(c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("JOB_NOT_FOUND", "job not found")
		}
		return apperrors.Internal("failed to load job")
	}
	if job.RecruiterID != identity.ID {
		return &apperrors.Error{
			Kind:    apperrors.KindUnauthorized,
			Status:  fiber.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "not your job posting",
		}
	}

	job.Status = models.JobStatusClosed
	if err := h.store.UpdateJob(job); err != nil {
		return apperrors.Internal("failed to close job")
	}

	return c.JSON(fiber.Map{
		"message": "job closed",
		"job":     job,
	})
}

type applyBody struct {
	Note string `json:"note"`
}

// Apply handles POST /jobs/:id/apply (authenticated seekers)
func (h *JobHandler) Apply(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)

	job, err := h.store.GetJobByJobID(c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("JOB_NOT_FOUND", "job not found")
		}
		return apperrors.Internal("failed to load job")
	}
	if !job.IsOpen() {
		return apperrors.Conflict("JOB_CLOSED", "job is no longer accepting applications")
	}

	var body applyBody
	_ = c.BodyParser(&body)

	app, err := h.store.CreateApplication(&models.Application{
		JobID:    job.ID,
		SeekerID: identity.ID,
		Note:     body.Note,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return apperrors.Conflict("ALREADY_APPLIED", "you already applied to this job")
		}
		return apperrors.Internal("failed to create application")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "application submitted",
		"application": app,
	})
}

// Applications handles GET /jobs/:id/applications (recruiter only, own jobs)
func (h *JobHandler) Applications(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)

	job, err := h.store.GetJobByJobID(c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("JOB_NOT_FOUND", "job not found")
		}
		return apperrors.Internal("failed to load job")
	}
	if job.RecruiterID != identity.ID {
		return &apperrors.Error{
			Kind:    apperrors.KindUnauthorized,
			Status:  fiber.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "not your job posting",
		}
	}

	apps, err := h.store.GetApplicationsByJob(job.ID)
	if err != nil {
		return apperrors.Internal("failed to load applications")
	}

	return c.JSON(fiber.Map{
		"applications": apps,
		"count":        len(apps),
	})
}

// MyApplications handles GET /applications (authenticated seekers)
func (h *JobHandler) MyApplications(c *fiber.Ctx) error {
	identity := middleware.IdentityFromCtx(c)

	apps, err := h.store.GetApplicationsBySeeker(identity.ID)
	if err != nil {
		return apperrors.Internal("failed to load applications")
	}

	return c.JSON(fiber.Map{
		"applications": apps,
		"count":        len(apps),
	})
}
