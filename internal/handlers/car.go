package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/carlink/carlink-backend/internal/models"
	"github.com/carlink/carlink-backend/internal/services"
	"github.com/carlink/carlink-backend/internal/storage"
)

// CarHandler handles car registration and owner-facing queries
type CarHandler struct {
	store storage.Store
	qr    services.QRImageService
}

// NewCarHandler creates a new car handler
func NewCarHandler(store storage.Store, qr services.QRImageService) *CarHandler {
	return &CarHandler{
		store: store,
		qr:    qr,
	}
}

// Register handles POST /api/cars/register
func (h *CarHandler) Register(c *fiber.Ctx) error {
	var reg models.CarRegistration

	if err := c.BodyParser(&reg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if reg.OwnerName == "" || reg.OwnerPhone == "" || reg.PlateNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Owner name, phone, and plate number are required",
		})
	}

	car := &models.Car{
		PlateNumber: reg.PlateNumber,
		OwnerName:   reg.OwnerName,
		OwnerPhone:  reg.OwnerPhone,
		OwnerEmail:  reg.OwnerEmail,
	}

	car, err := h.store.CreateCar(car)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicatePlate) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Car with this plate number already registered",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to register car",
		})
	}

	// QR generation failure doesn't lose the registration; the QR can be
	// regenerated once the image service is back.
	qr, err := h.qr.Generate(car.CarID, car.PlateNumber)
	if err != nil {
		log.Printf("❌ QR generation failed for %s: %v", car.CarID, err)
	} else {
		car.QRBase64 = qr.Base64
		car.QRPayloadURL = qr.PayloadURL
		car.QRFileName = qr.FileName
		if err := h.store.UpdateCar(car); err != nil {
			log.Printf("❌ Failed to save QR data for %s: %v", car.CarID, err)
		}
	}

	log.Printf("✅ Car registered: %s", car.CarID)

	response := fiber.Map{
		"carId":   car.CarID,
		"message": "Car registered successfully",
	}
	if car.QRBase64 != "" {
		response["qrCode"] = car.QRBase64
		response["qrPayloadUrl"] = car.QRPayloadURL
	}

	return c.Status(fiber.StatusCreated).JSON(response)
}

// GetCar handles GET /api/cars/:carId — the safe car view shown to a
// scanner before verification. Owner phone is never in this response.
func (h *CarHandler) GetCar(c *fiber.Ctx) error {
	carID := c.Params("carId")
	if carID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Car ID is required",
		})
	}

	car, err := h.store.FindActiveCar(carID)
	if err != nil {
		if errors.Is(err, storage.ErrCarNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Car not found or inactive",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get car details",
		})
	}

	return c.JSON(fiber.Map{
		"car": car.Public(),
	})
}

// GetOwnerScanLogs handles GET /api/scan-logs/:ownerPhone
func (h *CarHandler) GetOwnerScanLogs(c *fiber.Ctx) error {
	ownerPhone := c.Params("ownerPhone")

	if !strings.HasPrefix(ownerPhone, "+") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Phone must include country code",
		})
	}

	cars, err := h.store.GetCarsByOwnerPhone(ownerPhone)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch scan logs",
		})
	}
	if len(cars) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No cars found for this phone number",
		})
	}

	scans, err := h.store.GetScansByOwnerPhone(ownerPhone)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch scan logs",
		})
	}

	return c.JSON(fiber.Map{
		"totalCars":  len(cars),
		"totalScans": len(scans),
		"scans":      scans,
	})
}

// GetOwnerScanStats handles GET /api/scan-stats/:ownerPhone
func (h *CarHandler) GetOwnerScanStats(c *fiber.Ctx) error {
	ownerPhone := c.Params("ownerPhone")

	if !strings.HasPrefix(ownerPhone, "+") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Phone must include country code",
		})
	}

	cars, err := h.store.GetCarsByOwnerPhone(ownerPhone)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch statistics",
		})
	}

	scans, err := h.store.GetScansByOwnerPhone(ownerPhone)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch statistics",
		})
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	stats := models.ScanStats{
		TotalCars:    len(cars),
		ScansByPlate: make(map[string]models.PlateScanStats),
	}
	for _, car := range cars {
		stats.ScansByPlate[car.PlateNumber] = models.PlateScanStats{}
	}

	for _, scan := range scans {
		stats.TotalScans++

		plate := stats.ScansByPlate[scan.CarPlate]
		plate.Total++
		if scan.Verified {
			stats.VerifiedScans++
			plate.Verified++
		}
		stats.ScansByPlate[scan.CarPlate] = plate

		if !scan.Timestamp.Before(today) {
			stats.TodayScans++
		}
		if !scan.Timestamp.Before(weekAgo) {
			stats.ThisWeekScans++
		}
	}

	return c.JSON(fiber.Map{
		"stats": stats,
	})
}
