package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthHandler answers monitoring probes.
type HealthHandler struct {
	db      *gorm.DB
	version string
}

// NewHealthHandler creates a health handler. db may be nil when the
// service runs on in-memory storage; the database check is skipped then.
func NewHealthHandler(db *gorm.DB, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// Check pings the database when one is configured and reports 503 when
// it is unreachable.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbHealthy := true
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbHealthy = false
		}
	}

	status := "healthy"
	code := fiber.StatusOK
	if !dbHealthy {
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"service": "CarLink Backend",
		"version": h.version,
		"services": fiber.Map{
			"database": dbHealthy,
		},
	})
}
