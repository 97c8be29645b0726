package models

import (
	"time"

	"gorm.io/gorm"
)

// Session TTL and attempt cap for the contact-disclosure workflow
const (
	OTPSessionTTL     = 5 * time.Minute
	OTPMaxAttempts    = 3
	OTPPasscodeLength = 6
)

// OTPSessionStatus is the explicit session state. Transitions are
// forward-only: pending -> verified | expired | exhausted.
type OTPSessionStatus string

const (
	OTPStatusPending   OTPSessionStatus = "pending"
	OTPStatusVerified  OTPSessionStatus = "verified"
	OTPStatusExpired   OTPSessionStatus = "expired"
	OTPStatusExhausted OTPSessionStatus = "exhausted"
)

// OTPSession is one challenge/verify lifecycle instance for a scanner
// requesting a car owner's contact details
type OTPSession struct {
	gorm.Model
	SessionID    string           `json:"session_id" gorm:"uniqueIndex"`
	CarID        string           `json:"car_id" gorm:"index;not null"`
	Passcode     string           `json:"-" gorm:"not null"` // 6-digit numeric, never serialized
	ScannerName  string           `json:"scanner_name"`
	ScannerPhone string           `json:"scanner_phone" gorm:"index"`
	Reason       string           `json:"reason"`
	ExpiresAt    time.Time        `json:"expires_at" gorm:"not null;index"`
	Attempts     int              `json:"attempts" gorm:"default:0"`
	Status       OTPSessionStatus `json:"status" gorm:"type:varchar(16);default:pending;index"`
	VerifiedAt   *time.Time       `json:"verified_at"`
}

// IsTerminal reports whether the session has left the pending state.
// Terminal sessions reject every further verify attempt.
func (s *OTPSession) IsTerminal() bool {
	return s.Status != OTPStatusPending
}

// IsExpired reports whether the session's hard expiry has passed
func (s *OTPSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
