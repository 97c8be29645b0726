package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carlink/carlink-backend/internal/handlers"
	"github.com/carlink/carlink-backend/internal/services"
	"github.com/carlink/carlink-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, otpService *services.OTPService, qrService services.QRImageService, demoMode bool) {
	contactHandler := handlers.NewContactHandler(store, otpService, demoMode)
	carHandler := handlers.NewCarHandler(store, qrService)

	// ========== CONTACT-DISCLOSURE WORKFLOW ==========
	// A scanner requests a challenge, then proves possession of the
	// passcode to get the owner's contact details.
	app.Post("/challenge", contactHandler.RequestChallenge)
	app.Post("/verify", contactHandler.VerifyPasscode)
	app.Get("/scans/:carId", contactHandler.GetScans)

	// ========== CAR REGISTRY ==========
	api := app.Group("/api")

	cars := api.Group("/cars")
	cars.Post("/register", carHandler.Register)
	cars.Get("/:carId", carHandler.GetCar)

	// ========== OWNER VIEWS ==========
	api.Get("/scan-logs/:ownerPhone", carHandler.GetOwnerScanLogs)
	api.Get("/scan-stats/:ownerPhone", carHandler.GetOwnerScanStats)
}
