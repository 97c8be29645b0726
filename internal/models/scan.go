package models

import (
	"time"

	"gorm.io/gorm"
)

// ScanRecord is an append-only audit entry of one contact-request attempt
// against a car. Rows are never updated or soft-deleted after creation,
// so it does not use gorm.Model.
type ScanRecord struct {
	ID            uint      `json:"-" gorm:"primaryKey"`
	CarID         string    `json:"-" gorm:"index;not null"`
	ScannerName   string    `json:"scannerName"`
	ScannerPhone  string    `json:"scannerPhone"`
	Reason        string    `json:"reason"`
	Verified      bool      `json:"verified"`
	SourceAddress string    `json:"sourceAddress"`
	Timestamp     time.Time `json:"timestamp" gorm:"index;not null"`
}

func (s *ScanRecord) BeforeCreate(tx *gorm.DB) error {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	if s.Reason == "" {
		s.Reason = "Contact request"
	}
	return nil
}

func (ScanRecord) TableName() string {
	return "scan_records"
}

// ScanStats aggregates an owner's scan history across all their cars
type ScanStats struct {
	TotalCars     int                       `json:"totalCars"`
	TotalScans    int                       `json:"totalScans"`
	VerifiedScans int                       `json:"verifiedScans"`
	TodayScans    int                       `json:"todayScans"`
	ThisWeekScans int                       `json:"thisWeekScans"`
	ScansByPlate  map[string]PlateScanStats `json:"scansByPlate"`
}

// PlateScanStats is the per-plate breakdown inside ScanStats
type PlateScanStats struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
}

// OwnerScan is one row of the owner-facing scan log, annotated with
// which of the owner's cars it belongs to
type OwnerScan struct {
	CarPlate string `json:"carPlate"`
	CarID    string `json:"carId"`
	ScanRecord
}
