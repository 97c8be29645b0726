package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/carlink/carlink-backend/internal/services"
	"github.com/carlink/carlink-backend/internal/storage"
)

// ContactHandler handles the contact-disclosure workflow: challenge
// issuing, passcode verification and the scan history endpoint
type ContactHandler struct {
	store    storage.Store
	otp      *services.OTPService
	demoMode bool
}

// NewContactHandler creates a new contact handler. With demoMode set the
// issued passcode is echoed in the challenge response; never enable it
// in production.
func NewContactHandler(store storage.Store, otp *services.OTPService, demoMode bool) *ContactHandler {
	return &ContactHandler{
		store:    store,
		otp:      otp,
		demoMode: demoMode,
	}
}

// RequestChallenge handles POST /challenge
func (h *ContactHandler) RequestChallenge(c *fiber.Ctx) error {
	var req struct {
		CarID        string `json:"carId"`
		ScannerName  string `json:"scannerName"`
		ScannerPhone string `json:"scannerPhone"`
		Reason       string `json:"reason"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.CarID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Car ID is required",
		})
	}

	challenge, err := h.otp.IssueChallenge(req.CarID, req.ScannerName, req.ScannerPhone, req.Reason)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Scanner name and phone are required",
			})
		}
		if errors.Is(err, storage.ErrCarNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Car not found or inactive",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create challenge",
		})
	}

	response := fiber.Map{
		"sessionId": challenge.SessionID,
		"message":   "Passcode sent to " + req.ScannerPhone,
	}
	if h.demoMode {
		response["demoOTP"] = challenge.Passcode
	}

	return c.Status(fiber.StatusCreated).JSON(response)
}

// VerifyPasscode handles POST /verify
func (h *ContactHandler) VerifyPasscode(c *fiber.Ctx) error {
	var req struct {
		CarID        string `json:"carId"`
		SessionID    string `json:"sessionId"`
		Passcode     string `json:"passcode"`
		ScannerName  string `json:"scannerName"`
		ScannerPhone string `json:"scannerPhone"`
		Reason       string `json:"reason"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	contact, err := h.otp.Verify(req.CarID, req.SessionID, req.Passcode,
		req.ScannerName, req.ScannerPhone, req.Reason, c.IP())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Passcode must be exactly 6 digits",
			})
		case errors.Is(err, storage.ErrCarNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Car not found or inactive",
			})
		case errors.Is(err, storage.ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		case errors.Is(err, services.ErrSessionExpired):
			return c.Status(fiber.StatusGone).JSON(fiber.Map{
				"error": "Session expired, request a new challenge",
			})
		case errors.Is(err, services.ErrAttemptsExceeded):
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many attempts, request a new challenge",
			})
		case errors.Is(err, services.ErrInvalidPasscode):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid passcode",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to verify passcode",
		})
	}

	return c.JSON(fiber.Map{
		"ownerName":  contact.Name,
		"ownerPhone": contact.Phone,
		"message":    "Contact information retrieved successfully",
	})
}

// GetScans handles GET /scans/:carId
func (h *ContactHandler) GetScans(c *fiber.Ctx) error {
	carID := c.Params("carId")
	if carID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Car ID is required",
		})
	}

	scans, err := h.store.GetScans(carID)
	if err != nil {
		if errors.Is(err, storage.ErrCarNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Car not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get scan logs",
		})
	}

	return c.JSON(fiber.Map{
		"scans": scans,
		"count": len(scans),
	})
}
