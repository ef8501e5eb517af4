package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kariyab/kariyab-backend/internal/handlers"
	"github.com/kariyab/kariyab-backend/internal/middleware"
	"github.com/kariyab/kariyab-backend/internal/models"
	"github.com/kariyab/kariyab-backend/internal/services"
	"github.com/kariyab/kariyab-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, authService *services.AuthService, refreshCookieTTL time.Duration) {

	authHandler := handlers.NewAuthHandler(authService, refreshCookieTTL)
	jobHandler := handlers.NewJobHandler(store)
	healthHandler := handlers.NewHealthHandler("1.0.0")
	requireAuth := middleware.RequireAuth(authService)

	api := app.Group("/api")
	api.Get("/health", healthHandler.Check)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/otp/request", authHandler.RequestOtp)
	auth.Post("/otp/verify", authHandler.VerifyOtp)
	auth.Post("/password/login", authHandler.PasswordLogin)
	auth.Post("/password/set", requireAuth, authHandler.SetPassword)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/logout-all", requireAuth, authHandler.LogoutAll)
	auth.Get("/me", requireAuth, authHandler.Me)

	// Job routes
	jobs := api.Group("/jobs")
	jobs.Get("/", jobHandler.List)
	jobs.Get("/:id", jobHandler.Get)
	jobs.Post("/", requireAuth, middleware.RequireRole(models.RoleRecruiter), jobHandler.Create)
	jobs.Post("/:id/close", requireAuth, middleware.RequireRole(models.RoleRecruiter), jobHandler.Close)
	jobs.Get("/:id/applications", requireAuth, middleware.RequireRole(models.RoleRecruiter), jobHandler.Applications)
	jobs.Post("/:id/apply", requireAuth, jobHandler.Apply)

	// Application routes
	api.Get("/applications", requireAuth, jobHandler.MyApplications)
}
