package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/kariyab/kariyab-backend/internal/models"
)

// HealthHandler handles health check requests. DB is optional; when set the
// status endpoints report connectivity and record counts.
type HealthHandler struct {
	Version  string
	Storage  string
	DB       *gorm.DB
	SMSReady bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		Version: version,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "OK",
		"service": "Kariyab Backend",
		"version": h.Version,
	})
}

// Status handles GET / with storage details and record counts
func (h *HealthHandler) Status(c *fiber.Ctx) error {
	response := fiber.Map{
		"service": "Kariyab Backend API",
		"version": h.Version,
		"status":  "healthy",
		"storage": h.Storage,
	}

	if h.DB != nil {
		dbStatus := "connected"
		sqlDB, err := h.DB.DB()
		if err != nil {
			dbStatus = "error: " + err.Error()
		} else if err := sqlDB.Ping(); err != nil {
			dbStatus = "error: " + err.Error()
		}

		var identityCount, jobCount, applicationCount, otpCount int64
		h.DB.Model(&models.Identity{}).Count(&identityCount)
		h.DB.Model(&models.Job{}).Count(&jobCount)
		h.DB.Model(&models.Application{}).Count(&applicationCount)
		h.DB.Model(&models.OtpRequest{}).Count(&otpCount)

		response["database"] = fiber.Map{
			"status":       dbStatus,
			"identities":   identityCount,
			"jobs":         jobCount,
			"applications": applicationCount,
			"otps":         otpCount,
		}
	}

	return c.JSON(response)
}

// Live handles GET /health for monitoring: 503 when the database is down
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	status := "healthy"
	statusCode := fiber.StatusOK

	if h.DB != nil {
		sqlDB, err := h.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status": status,
		"services": fiber.Map{
			"database": status == "healthy",
			"sms":      h.SMSReady,
		},
	})
}
