package jobs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carlink/carlink-backend/internal/models"
	"github.com/carlink/carlink-backend/internal/storage"
)

func TestSweepReclaimsSessions(t *testing.T) {
	store := storage.NewMemoryStore()
	car, err := store.CreateCar(&models.Car{
		PlateNumber: "KA01AB1234",
		OwnerName:   "Priya",
		OwnerPhone:  "+919876543210",
	})
	if err != nil {
		t.Fatalf("failed creating car: %v", err)
	}

	mk := func(id string, expiresAt time.Time, status models.OTPSessionStatus) {
		t.Helper()
		_, err := store.CreateOTPSession(&models.OTPSession{
			SessionID: id,
			CarID:     car.CarID,
			Passcode:  "123456",
			ExpiresAt: expiresAt,
			Status:    status,
		})
		if err != nil {
			t.Fatalf("failed creating session %s: %v", id, err)
		}
	}

	mk("otp_live", time.Now().Add(4*time.Minute), models.OTPStatusPending)
	mk("otp_overdue", time.Now().Add(-time.Minute), models.OTPStatusPending)

	sweeper := NewSweeperJob(store)
	sweeper.sweep()

	live, _ := store.GetOTPSession("otp_live")
	if live.Status != models.OTPStatusPending {
		t.Fatalf("live session must stay pending, got %s", live.Status)
	}

	overdue, _ := store.GetOTPSession("otp_overdue")
	if overdue.Status != models.OTPStatusExpired {
		t.Fatalf("overdue session should be expired, got %s", overdue.Status)
	}
}

func TestSweepDeletesOldTerminalSessions(t *testing.T) {
	store := storage.NewMemoryStore()
	car, err := store.CreateCar(&models.Car{
		PlateNumber: "KA01AB1234",
		OwnerName:   "Priya",
		OwnerPhone:  "+919876543210",
	})
	if err != nil {
		t.Fatalf("failed creating car: %v", err)
	}

	session := &models.OTPSession{
		SessionID: "otp_old",
		CarID:     car.CarID,
		Passcode:  "123456",
		ExpiresAt: time.Now().Add(-2 * 24 * time.Hour),
		Status:    models.OTPStatusVerified,
	}
	if _, err := store.CreateOTPSession(session); err != nil {
		t.Fatalf("failed creating session: %v", err)
	}
	// Backdate creation past the retention window
	if _, err := store.MutateOTPSession("otp_old", func(s *models.OTPSession) {
		s.CreatedAt = time.Now().Add(-2 * 24 * time.Hour)
	}); err != nil {
		t.Fatalf("failed backdating session: %v", err)
	}

	sweeper := NewSweeperJob(store)
	sweeper.sweep()

	if _, err := store.GetOTPSession("otp_old"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Fatalf("expected old terminal session reclaimed, got %v", err)
	}
}

func TestSweeperStartStop(t *testing.T) {
	sweeper := NewSweeperJob(storage.NewMemoryStore())

	sweeper.Start()
	sweeper.Stop()

	// Stop again is a no-op, not a panic on a closed channel
	sweeper.Stop()
}

// Concurrent Start/Stop calls serialize; the stop channel is closed at
// most once. Run with -race.
func TestSweeperConcurrentStartStop(t *testing.T) {
	sweeper := NewSweeperJob(storage.NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sweeper.Start()
		}()
		go func() {
			defer wg.Done()
			sweeper.Stop()
		}()
	}
	wg.Wait()
	sweeper.Stop()
}
