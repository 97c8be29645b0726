package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/carlink/carlink-backend/internal/models"
)

// DatabaseStore persists everything through GORM
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store backed by the given GORM connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Car operations

func (d *DatabaseStore) CreateCar(car *models.Car) (*models.Car, error) {
	plate := strings.ToUpper(strings.ReplaceAll(car.PlateNumber, " ", ""))

	var count int64
	if err := d.db.Model(&models.Car{}).Where("plate_number = ?", plate).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDuplicatePlate
	}

	car.IsActive = true
	if err := d.db.Create(car).Error; err != nil {
		return nil, err
	}
	return car, nil
}

func (d *DatabaseStore) GetCar(carID string) (*models.Car, error) {
	var car models.Car
	err := d.db.Where("car_id = ?", carID).First(&car).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return &car, nil
}

func (d *DatabaseStore) FindActiveCar(carID string) (*models.Car, error) {
	var car models.Car
	err := d.db.Where("car_id = ? AND is_active = ?", carID, true).First(&car).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return &car, nil
}

func (d *DatabaseStore) GetCarByPlate(plateNumber string) (*models.Car, error) {
	plate := strings.ToUpper(strings.ReplaceAll(plateNumber, " ", ""))

	var car models.Car
	err := d.db.Where("plate_number = ?", plate).First(&car).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, err
	}
	return &car, nil
}

func (d *DatabaseStore) GetCarsByOwnerPhone(phone string) ([]*models.Car, error) {
	var cars []*models.Car
	err := d.db.Where("owner_phone = ? AND is_active = ?", phone, true).Find(&cars).Error
	if err != nil {
		return nil, err
	}
	return cars, nil
}

func (d *DatabaseStore) UpdateCar(car *models.Car) error {
	return d.db.Save(car).Error
}

// OTP session operations

func (d *DatabaseStore) CreateOTPSession(session *models.OTPSession) (*models.OTPSession, error) {
	if session.Status == "" {
		session.Status = models.OTPStatusPending
	}
	if err := d.db.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (d *DatabaseStore) GetOTPSession(sessionID string) (*models.OTPSession, error) {
	var session models.OTPSession
	err := d.db.Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// MutateOTPSession serializes concurrent mutations with a guarded update:
// the write only lands if attempts and status still match what fn saw.
// On a lost race it reloads and retries.
func (d *DatabaseStore) MutateOTPSession(sessionID string, fn func(*models.OTPSession)) (*models.OTPSession, error) {
	for retry := 0; retry < 3; retry++ {
		session, err := d.GetOTPSession(sessionID)
		if err != nil {
			return nil, err
		}

		prevAttempts := session.Attempts
		prevStatus := session.Status

		fn(session)

		res := d.db.Model(&models.OTPSession{}).
			Where("session_id = ? AND attempts = ? AND status = ?", sessionID, prevAttempts, prevStatus).
			Updates(map[string]interface{}{
				"attempts":    session.Attempts,
				"status":      session.Status,
				"verified_at": session.VerifiedAt,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return session, nil
		}
		// Lost the race against a concurrent verify, reload and retry
	}
	return nil, fmt.Errorf("session %s: too many concurrent updates", sessionID)
}

func (d *DatabaseStore) ExpirePendingSessions(carID, scannerPhone string) (int64, error) {
	res := d.db.Model(&models.OTPSession{}).
		Where("car_id = ? AND scanner_phone = ? AND status = ?", carID, scannerPhone, models.OTPStatusPending).
		Update("status", models.OTPStatusExpired)
	return res.RowsAffected, res.Error
}

func (d *DatabaseStore) ExpireOverdueSessions(now time.Time) (int64, error) {
	res := d.db.Model(&models.OTPSession{}).
		Where("status = ? AND expires_at < ?", models.OTPStatusPending, now).
		Update("status", models.OTPStatusExpired)
	return res.RowsAffected, res.Error
}

func (d *DatabaseStore) DeleteTerminalSessionsBefore(cutoff time.Time) (int64, error) {
	res := d.db.Unscoped().
		Where("status <> ? AND created_at < ?", models.OTPStatusPending, cutoff).
		Delete(&models.OTPSession{})
	return res.RowsAffected, res.Error
}

// Scan ledger operations

func (d *DatabaseStore) AppendScan(carID string, scan *models.ScanRecord) error {
	var count int64
	if err := d.db.Model(&models.Car{}).Where("car_id = ?", carID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrCarNotFound
	}

	scan.CarID = carID
	return d.db.Create(scan).Error
}

func (d *DatabaseStore) GetScans(carID string) ([]*models.ScanRecord, error) {
	if _, err := d.GetCar(carID); err != nil {
		return nil, err
	}

	var scans []*models.ScanRecord
	err := d.db.Where("car_id = ?", carID).Order("timestamp DESC").Find(&scans).Error
	if err != nil {
		return nil, err
	}
	return scans, nil
}

func (d *DatabaseStore) GetScansByOwnerPhone(phone string) ([]*models.OwnerScan, error) {
	cars, err := d.GetCarsByOwnerPhone(phone)
	if err != nil {
		return nil, err
	}

	var all []*models.OwnerScan
	for _, car := range cars {
		var scans []*models.ScanRecord
		err := d.db.Where("car_id = ?", car.CarID).Find(&scans).Error
		if err != nil {
			return nil, err
		}
		for _, scan := range scans {
			all = append(all, &models.OwnerScan{
				CarPlate:   car.PlateNumber,
				CarID:      car.CarID,
				ScanRecord: *scan,
			})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	return all, nil
}
