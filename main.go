package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/carlink/carlink-backend/database"
	"github.com/carlink/carlink-backend/internal/handlers"
	"github.com/carlink/carlink-backend/internal/jobs"
	"github.com/carlink/carlink-backend/internal/models"
	"github.com/carlink/carlink-backend/internal/routes"
	"github.com/carlink/carlink-backend/internal/services"
	"github.com/carlink/carlink-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		// Try multiple locations for .env file
		err := godotenv.Load(".env")
		if err != nil {
			err = godotenv.Load("environments/.env.development")
			if err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	// Initialize storage
	var store storage.Store

	// Check if we should use memory store (for testing)
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		// Connect to database
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		// Run migrations
		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Car{},
			&models.OTPSession{},
			&models.ScanRecord{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		// Use database store
		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}
	storage.SetStore(store)

	// Pick the passcode delivery channel. Without Twilio credentials the
	// service falls back to the console channel so local development and
	// demos work out of the box.
	var delivery services.DeliveryChannel
	twilioService, err := services.NewTwilioService()
	if err != nil {
		log.Printf("⚠️  Twilio not configured (%v) - passcodes go to the console", err)
		delivery = services.NewConsoleDelivery()
	} else {
		log.Println("✅ Twilio delivery channel initialized")
		delivery = services.NewTwilioDelivery(twilioService)
	}

	demoMode := os.Getenv("OTP_DEMO_MODE") == "true"
	if demoMode {
		log.Println("⚠️  OTP demo mode enabled - passcodes are echoed in responses!")
	}

	// Initialize services
	otpService := services.NewOTPService(store, delivery)
	qrService := services.NewQRImageService()

	// Start the expired-session sweeper
	sweeper := jobs.NewSweeperJob(store)
	sweeper.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "CarLink Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
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

	// Root endpoint with service and database status
	app.Get("/", func(c *fiber.Ctx) error {
		response := fiber.Map{
			"service":     "CarLink Backend API",
			"version":     "1.0.0",
			"status":      "healthy",
			"environment": getEnvironment(),
			"storage":     getStorageType(),
			"endpoints": fiber.Map{
				"challenge":  "POST /challenge",
				"verify":     "POST /verify",
				"scans":      "GET /scans/:carId",
				"register":   "POST /api/cars/register",
				"car":        "GET /api/cars/:carId",
				"scan_logs":  "GET /api/scan-logs/:ownerPhone",
				"scan_stats": "GET /api/scan-stats/:ownerPhone",
			},
		}

		// Add database status if using database
		if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
			sqlDB, err := database.DB.DB()
			dbStatus := "connected"
			if err != nil {
				dbStatus = "error: " + err.Error()
			} else if err := sqlDB.Ping(); err != nil {
				dbStatus = "error: " + err.Error()
			}

			// Get counts
			var carCount, sessionCount, scanCount int64
			database.DB.Model(&models.Car{}).Count(&carCount)
			database.DB.Model(&models.OTPSession{}).Count(&sessionCount)
			database.DB.Model(&models.ScanRecord{}).Count(&scanCount)

			response["database"] = fiber.Map{
				"status":   dbStatus,
				"cars":     carCount,
				"sessions": sessionCount,
				"scans":    scanCount,
			}
		}

		return c.JSON(response)
	})

	// Health check endpoint for monitoring. database.DB stays nil in
	// memory-store mode, so the handler skips the ping there.
	app.Get("/health", handlers.NewHealthHandler(database.DB, "1.0.0").Check)

	// Setup routes
	routes.SetupRoutes(app, store, otpService, qrService, demoMode)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping session sweeper...")
		sweeper.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 CarLink Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Printf("🌍 Environment: %s", getEnvironment())
	log.Printf("📱 Passcode delivery: %s", getDeliveryType(demoMode))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func getEnvironment() string {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return "Production (Cloud Run)"
	}
	return "Development (Local)"
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func getDeliveryType(demoMode bool) string {
	if demoMode {
		return "Demo (echoed in responses)"
	}
	if os.Getenv("TWILIO_ACCOUNT_SID") != "" {
		return "Twilio SMS"
	}
	return "Console"
}
