package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/kariyab/kariyab-backend/database"
	"github.com/kariyab/kariyab-backend/internal/apperrors"
	"github.com/kariyab/kariyab-backend/internal/config"
	"github.com/kariyab/kariyab-backend/internal/handlers"
	"github.com/kariyab/kariyab-backend/internal/jobs"
	"github.com/kariyab/kariyab-backend/internal/models"
	"github.com/kariyab/kariyab-backend/internal/routes"
	"github.com/kariyab/kariyab-backend/internal/services"
	"github.com/kariyab/kariyab-backend/internal/storage"
	"github.com/kariyab/kariyab-backend/internal/utils"
)

func main() {
	// Load .env file for local development
	if err := godotenv.Load(".env"); err != nil {
		if err = godotenv.Load("environments/.env.development"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Identity{},
			&models.OtpRequest{},
			&models.RefreshToken{},
			&models.Job{},
			&models.Application{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Initialize SMS channel: Twilio in production, log sender when
	// credentials are absent
	var sms services.SMSSender
	twilioService, err := services.NewTwilioService()
	if err != nil {
		log.Printf("⚠️  Twilio not configured (%v) - OTP codes go to the log", err)
		sms = services.LogSMSSender{}
	} else {
		log.Println("✅ Twilio service initialized")
		sms = twilioService
	}

	// Initialize auth core
	jitter := utils.CryptoJitter{}
	otpService := services.NewOTPService(store, sms, jitter, cfg.OTPMaxAttempts, cfg.OTPResendCooldown)
	tokenService := services.NewTokenService(store, cfg.JWTSecret, cfg.AccessTokenTTL,
		cfg.RefreshTokenMinDays, cfg.RefreshTokenMaxDays, jitter)
	authService := services.NewAuthService(store, otpService, tokenService)

	// Start ledger cleanup
	cleanupJob := jobs.NewCleanupJob(store, time.Hour)
	cleanupJob.Start()

	log.Println("✅ All services initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Kariyab Backend v1.0.0",
		ErrorHandler: apperrors.ErrorHandler,
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health and status endpoints
	healthHandler := handlers.NewHealthHandler("1.0.0")
	healthHandler.Storage = getStorageType()
	healthHandler.SMSReady = twilioService != nil
	if os.Getenv("USE_MEMORY_STORE") != "true" {
		healthHandler.DB = database.DB
	}
	app.Get("/", healthHandler.Status)
	app.Get("/health", healthHandler.Live)

	// Setup routes
	refreshCookieTTL := time.Duration(cfg.RefreshTokenMaxDays) * 24 * time.Hour
	routes.SetupRoutes(app, store, authService, refreshCookieTTL)

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping cleanup job...")
		cleanupJob.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 Kariyab Backend starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Printf("📱 SMS: %s", getSMSStatus(twilioService))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + cfg.Port))
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func getSMSStatus(twilioService *services.TwilioService) string {
	if twilioService == nil {
		return "Log sender (dev)"
	}
	return "Twilio"
}
