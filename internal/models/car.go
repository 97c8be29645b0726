package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Car represents a registered vehicle and its owner's contact details
type Car struct {
	// Using gorm.Model gives us ID (uint), CreatedAt, UpdatedAt, DeletedAt automatically
	gorm.Model

	CarID       string `json:"car_id" gorm:"uniqueIndex"`
	PlateNumber string `json:"plate_number" gorm:"uniqueIndex"` // Always stored uppercase
	OwnerName   string `json:"owner_name"`
	OwnerPhone  string `json:"owner_phone" gorm:"index"` // E.164 format, e.g. +919876543210
	OwnerEmail  string `json:"owner_email"`

	// QR code data, filled in at registration by the QR image service
	QRBase64     string `json:"qr_base64"`
	QRPayloadURL string `json:"qr_payload_url"`
	QRFileName   string `json:"qr_file_name"`

	// Inactive cars reject all workflow entry points
	IsActive bool `json:"is_active" gorm:"default:true"`
}

// BeforeCreate hook to auto-generate CarID and normalize data
func (c *Car) BeforeCreate(tx *gorm.DB) error {
	if c.CarID == "" {
		c.CarID = fmt.Sprintf("car_%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}

	// Normalize plate number (remove spaces, convert to uppercase)
	c.PlateNumber = strings.ToUpper(strings.ReplaceAll(c.PlateNumber, " ", ""))

	// Normalize phone number (ensure it has a country code)
	if c.OwnerPhone != "" && !strings.HasPrefix(c.OwnerPhone, "+") {
		c.OwnerPhone = "+" + c.OwnerPhone
	}

	c.OwnerEmail = strings.ToLower(strings.TrimSpace(c.OwnerEmail))

	return nil
}

// CarRegistration is the payload for registering a new car
type CarRegistration struct {
	PlateNumber string `json:"plateNumber" validate:"required"`
	OwnerName   string `json:"ownerName" validate:"required"`
	OwnerPhone  string `json:"ownerPhone" validate:"required"`
	OwnerEmail  string `json:"ownerEmail"`
}

// PublicCar is the safe view of a car returned to an anonymous scanner.
// Owner phone and email are deliberately absent.
type PublicCar struct {
	CarID       string `json:"carId"`
	PlateNumber string `json:"plateNumber"`
	OwnerName   string `json:"ownerName"`
}

// Public returns the scanner-safe view of the car
func (c *Car) Public() *PublicCar {
	return &PublicCar{
		CarID:       c.CarID,
		PlateNumber: c.PlateNumber,
		OwnerName:   c.OwnerName,
	}
}

// OwnerContact is the disclosed contact payload. It is only ever built
// inside the successful branch of OTP verification.
type OwnerContact struct {
	Name  string `json:"ownerName"`
	Phone string `json:"ownerPhone"`
}
