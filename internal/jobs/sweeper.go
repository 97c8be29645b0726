package jobs

import (
	"log"
	"sync"
	"time"

	"github.com/carlink/carlink-backend/internal/storage"
)

// Sweep cadence and how long terminal sessions are kept for audit
// before deletion. The sweep is storage hygiene only; expiry is also
// enforced on every verify against wall-clock time.
const (
	sweepInterval     = time.Minute
	terminalRetention = 24 * time.Hour
)

// SweeperJob reclaims expired OTP sessions in the background
type SweeperJob struct {
	store     storage.Store
	stop      chan struct{}
	mu        sync.Mutex
	isRunning bool
}

// NewSweeperJob creates a new session sweeper
func NewSweeperJob(store storage.Store) *SweeperJob {
	return &SweeperJob{store: store}
}

// Start begins the background sweep loop
func (s *SweeperJob) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		log.Println("Session sweeper already running")
		return
	}

	s.isRunning = true
	s.stop = make(chan struct{})
	log.Println("Starting OTP session sweeper...")

	go s.run(s.stop)
}

// Stop halts the sweep loop
func (s *SweeperJob) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stop)
	log.Println("Stopping OTP session sweeper...")
}

func (s *SweeperJob) run(stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-stop:
			return
		}
	}
}

// sweep expires overdue pending sessions and deletes terminal sessions
// past their retention window
func (s *SweeperJob) sweep() {
	now := time.Now()

	expired, err := s.store.ExpireOverdueSessions(now)
	if err != nil {
		log.Printf("Error expiring overdue sessions: %v", err)
	} else if expired > 0 {
		log.Printf("Expired %d overdue OTP session(s)", expired)
	}

	deleted, err := s.store.DeleteTerminalSessionsBefore(now.Add(-terminalRetention))
	if err != nil {
		log.Printf("Error deleting old sessions: %v", err)
	} else if deleted > 0 {
		log.Printf("Deleted %d old OTP session(s)", deleted)
	}
}
