package services

import (
	"fmt"
	"log"
	"time"

	"github.com/carlink/carlink-backend/internal/models"
	"github.com/carlink/carlink-backend/internal/storage"
	"github.com/carlink/carlink-backend/internal/utils"
)

// OTPService runs the contact-disclosure workflow: issuing passcode
// challenges and verifying submitted passcodes against their sessions.
type OTPService struct {
	store    storage.Store
	delivery DeliveryChannel
}

// NewOTPService creates a new OTP service using the given delivery channel
func NewOTPService(store storage.Store, delivery DeliveryChannel) *OTPService {
	return &OTPService{store: store, delivery: delivery}
}

// Challenge is the result of issuing a new OTP challenge. Passcode is
// only surfaced to HTTP callers in demo mode; production delivery goes
// through the delivery channel.
type Challenge struct {
	SessionID string
	Passcode  string
}

// IssueChallenge creates a pending OTP session for a scanner requesting
// the contact details of the car's owner. Older pending sessions for the
// same (car, scanner phone) pair are superseded, so at any moment only
// the newest passcode can succeed.
func (s *OTPService) IssueChallenge(carID, scannerName, scannerPhone, reason string) (*Challenge, error) {
	if scannerName == "" || scannerPhone == "" {
		return nil, fmt.Errorf("%w: scanner name and phone are required", ErrInvalidInput)
	}

	car, err := s.store.FindActiveCar(carID)
	if err != nil {
		return nil, err
	}

	passcode, err := utils.GenerateSecurePasscode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate passcode: %w", err)
	}

	superseded, err := s.store.ExpirePendingSessions(car.CarID, scannerPhone)
	if err != nil {
		return nil, err
	}
	if superseded > 0 {
		log.Printf("Superseded %d pending session(s) for car %s", superseded, car.CarID)
	}

	session := &models.OTPSession{
		SessionID:    utils.GenerateSessionID(),
		CarID:        car.CarID,
		Passcode:     passcode,
		ScannerName:  scannerName,
		ScannerPhone: scannerPhone,
		Reason:       reason,
		ExpiresAt:    time.Now().Add(models.OTPSessionTTL),
		Attempts:     0,
		Status:       models.OTPStatusPending,
	}

	if _, err := s.store.CreateOTPSession(session); err != nil {
		return nil, err
	}

	if err := s.delivery.Send(scannerPhone, passcode); err != nil {
		// The session stays valid; the scanner can request a new
		// challenge if the code never arrives.
		log.Printf("❌ Passcode delivery to %s failed: %v", scannerPhone, err)
	}

	return &Challenge{SessionID: session.SessionID, Passcode: passcode}, nil
}

// Verify checks a submitted passcode against its session. The session
// must belong to the given car. On success the session becomes verified
// (single use), a verified scan record is appended to the car's ledger,
// and the owner's contact is returned. The contact payload is built
// nowhere else.
func (s *OTPService) Verify(carID, sessionID, passcode, scannerName, scannerPhone, reason, sourceAddr string) (*models.OwnerContact, error) {
	if !isSixDigits(passcode) {
		return nil, fmt.Errorf("%w: passcode must be exactly 6 digits", ErrInvalidInput)
	}

	car, err := s.store.FindActiveCar(carID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var outcome error

	session, err := s.store.MutateOTPSession(sessionID, func(session *models.OTPSession) {
		// A session only ever unlocks the car it was issued for. A
		// mismatched car leaves the session untouched.
		if session.CarID != car.CarID {
			outcome = storage.ErrSessionNotFound
			return
		}
		// Terminal and expiry checks come before the attempt increment:
		// a dead session never consumes an attempt slot and never
		// transitions again.
		if session.IsTerminal() {
			outcome = ErrSessionExpired
			return
		}
		if session.IsExpired(now) {
			session.Status = models.OTPStatusExpired
			outcome = ErrSessionExpired
			return
		}

		session.Attempts++

		if session.Passcode == passcode {
			session.Status = models.OTPStatusVerified
			session.VerifiedAt = &now
			return
		}

		if session.Attempts >= models.OTPMaxAttempts {
			session.Status = models.OTPStatusExhausted
			outcome = ErrAttemptsExceeded
			return
		}
		outcome = ErrInvalidPasscode
	})
	if err != nil {
		return nil, err
	}

	verified := outcome == nil

	// Failed attempts are audited too, except attempts against sessions
	// that were already dead (those change nothing).
	if verified || outcome == ErrInvalidPasscode || outcome == ErrAttemptsExceeded {
		scan := &models.ScanRecord{
			ScannerName:   scannerName,
			ScannerPhone:  scannerPhone,
			Reason:        reason,
			Verified:      verified,
			SourceAddress: sourceAddr,
			Timestamp:     now.UTC(),
		}
		if err := s.store.AppendScan(car.CarID, scan); err != nil {
			if verified {
				return nil, err
			}
			log.Printf("❌ Failed to record scan attempt for car %s: %v", car.CarID, err)
		}
	}

	if outcome != nil {
		return nil, outcome
	}

	log.Printf("✅ Verified scan logged for %s (session %s)", car.PlateNumber, session.SessionID)

	return &models.OwnerContact{
		Name:  car.OwnerName,
		Phone: car.OwnerPhone,
	}, nil
}

func isSixDigits(s string) bool {
	if len(s) != models.OTPPasscodeLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
