package storage

import (
	"errors"
	"time"

	"github.com/carlink/carlink-backend/internal/models"
)

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Storage-level sentinel errors. Handlers and services match on these
// with errors.Is.
var (
	ErrCarNotFound     = errors.New("car not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrDuplicatePlate  = errors.New("plate number already registered")
)

// Store defines the interface for storage operations
type Store interface {
	// Car operations (vehicle directory)
	CreateCar(car *models.Car) (*models.Car, error)
	GetCar(carID string) (*models.Car, error)
	FindActiveCar(carID string) (*models.Car, error)
	GetCarByPlate(plateNumber string) (*models.Car, error)
	GetCarsByOwnerPhone(phone string) ([]*models.Car, error)
	UpdateCar(car *models.Car) error

	// OTP session operations
	CreateOTPSession(session *models.OTPSession) (*models.OTPSession, error)
	GetOTPSession(sessionID string) (*models.OTPSession, error)
	// MutateOTPSession runs fn against the current session record as one
	// atomic read-modify-write. Whatever fn changes is persisted; two
	// concurrent calls against the same session serialize.
	MutateOTPSession(sessionID string, fn func(*models.OTPSession)) (*models.OTPSession, error)
	// ExpirePendingSessions transitions every pending session for the
	// (carID, scannerPhone) pair to expired. Used by the issuer to
	// enforce one active session per pair.
	ExpirePendingSessions(carID, scannerPhone string) (int64, error)
	// ExpireOverdueSessions transitions pending sessions whose ExpiresAt
	// has passed. Called by the background sweeper.
	ExpireOverdueSessions(now time.Time) (int64, error)
	// DeleteTerminalSessionsBefore removes terminal sessions created
	// before the cutoff (storage hygiene, not correctness).
	DeleteTerminalSessionsBefore(cutoff time.Time) (int64, error)

	// Scan ledger operations (append-only)
	AppendScan(carID string, scan *models.ScanRecord) error
	GetScans(carID string) ([]*models.ScanRecord, error)
	GetScansByOwnerPhone(phone string) ([]*models.OwnerScan, error)
}
