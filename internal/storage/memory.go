package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carlink/carlink-backend/internal/models"
)

// MemoryStore holds all data in memory for testing and demo deployments
type MemoryStore struct {
	cars     map[string]*models.Car        // keyed by CarID
	sessions map[string]*models.OTPSession // keyed by SessionID
	scans    map[string][]*models.ScanRecord

	// Mutexes for thread safety
	carMu     sync.RWMutex
	sessionMu sync.RWMutex
	scanMu    sync.RWMutex

	// Counters for ID generation
	carCounter  int
	scanCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cars:     make(map[string]*models.Car),
		sessions: make(map[string]*models.OTPSession),
		scans:    make(map[string][]*models.ScanRecord),
	}
}

// Car operations

func (m *MemoryStore) CreateCar(car *models.Car) (*models.Car, error) {
	m.carMu.Lock()
	defer m.carMu.Unlock()

	// Normalization the database layer does in the BeforeCreate hook
	car.PlateNumber = strings.ToUpper(strings.ReplaceAll(car.PlateNumber, " ", ""))
	if car.OwnerPhone != "" && !strings.HasPrefix(car.OwnerPhone, "+") {
		car.OwnerPhone = "+" + car.OwnerPhone
	}
	car.OwnerEmail = strings.ToLower(strings.TrimSpace(car.OwnerEmail))

	for _, existing := range m.cars {
		if existing.PlateNumber == car.PlateNumber {
			return nil, ErrDuplicatePlate
		}
	}

	m.carCounter++
	if car.CarID == "" {
		car.CarID = fmt.Sprintf("car_%d%03d", time.Now().Unix(), m.carCounter%1000)
	}
	car.IsActive = true
	car.CreatedAt = time.Now()
	car.UpdatedAt = time.Now()

	m.cars[car.CarID] = car
	return car, nil
}

func (m *MemoryStore) GetCar(carID string) (*models.Car, error) {
	m.carMu.RLock()
	defer m.carMu.RUnlock()

	car, exists := m.cars[carID]
	if !exists {
		return nil, ErrCarNotFound
	}
	return car, nil
}

func (m *MemoryStore) FindActiveCar(carID string) (*models.Car, error) {
	m.carMu.RLock()
	defer m.carMu.RUnlock()

	car, exists := m.cars[carID]
	if !exists || !car.IsActive {
		return nil, ErrCarNotFound
	}
	return car, nil
}

func (m *MemoryStore) GetCarByPlate(plateNumber string) (*models.Car, error) {
	m.carMu.RLock()
	defer m.carMu.RUnlock()

	plate := strings.ToUpper(strings.ReplaceAll(plateNumber, " ", ""))
	for _, car := range m.cars {
		if car.PlateNumber == plate {
			return car, nil
		}
	}
	return nil, ErrCarNotFound
}

func (m *MemoryStore) GetCarsByOwnerPhone(phone string) ([]*models.Car, error) {
	m.carMu.RLock()
	defer m.carMu.RUnlock()

	var cars []*models.Car
	for _, car := range m.cars {
		if car.OwnerPhone == phone && car.IsActive {
			cars = append(cars, car)
		}
	}
	return cars, nil
}

func (m *MemoryStore) UpdateCar(car *models.Car) error {
	m.carMu.Lock()
	defer m.carMu.Unlock()

	if _, exists := m.cars[car.CarID]; !exists {
		return ErrCarNotFound
	}
	car.UpdatedAt = time.Now()
	m.cars[car.CarID] = car
	return nil
}

// OTP session operations

func (m *MemoryStore) CreateOTPSession(session *models.OTPSession) (*models.OTPSession, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if session.Status == "" {
		session.Status = models.OTPStatusPending
	}
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt

	m.sessions[session.SessionID] = session
	return session, nil
}

func (m *MemoryStore) GetOTPSession(sessionID string) (*models.OTPSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	snapshot := *session
	return &snapshot, nil
}

func (m *MemoryStore) MutateOTPSession(sessionID string, fn func(*models.OTPSession)) (*models.OTPSession, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	fn(session)
	session.UpdatedAt = time.Now()

	snapshot := *session
	return &snapshot, nil
}

func (m *MemoryStore) ExpirePendingSessions(carID, scannerPhone string) (int64, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var expired int64
	for _, session := range m.sessions {
		if session.CarID == carID && session.ScannerPhone == scannerPhone &&
			session.Status == models.OTPStatusPending {
			session.Status = models.OTPStatusExpired
			session.UpdatedAt = time.Now()
			expired++
		}
	}
	return expired, nil
}

func (m *MemoryStore) ExpireOverdueSessions(now time.Time) (int64, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var expired int64
	for _, session := range m.sessions {
		if session.Status == models.OTPStatusPending && now.After(session.ExpiresAt) {
			session.Status = models.OTPStatusExpired
			session.UpdatedAt = now
			expired++
		}
	}
	return expired, nil
}

func (m *MemoryStore) DeleteTerminalSessionsBefore(cutoff time.Time) (int64, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var deleted int64
	for id, session := range m.sessions {
		if session.Status != models.OTPStatusPending && session.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Scan ledger operations

func (m *MemoryStore) AppendScan(carID string, scan *models.ScanRecord) error {
	m.carMu.RLock()
	_, exists := m.cars[carID]
	m.carMu.RUnlock()
	if !exists {
		return ErrCarNotFound
	}

	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	m.scanCounter++
	scan.ID = m.scanCounter
	scan.CarID = carID
	if scan.Timestamp.IsZero() {
		scan.Timestamp = time.Now().UTC()
	}
	if scan.Reason == "" {
		scan.Reason = "Contact request"
	}

	m.scans[carID] = append(m.scans[carID], scan)
	return nil
}

func (m *MemoryStore) GetScans(carID string) ([]*models.ScanRecord, error) {
	m.carMu.RLock()
	_, exists := m.cars[carID]
	m.carMu.RUnlock()
	if !exists {
		return nil, ErrCarNotFound
	}

	m.scanMu.RLock()
	defer m.scanMu.RUnlock()

	scans := make([]*models.ScanRecord, len(m.scans[carID]))
	copy(scans, m.scans[carID])

	// Most recent first
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].Timestamp.After(scans[j].Timestamp)
	})
	return scans, nil
}

func (m *MemoryStore) GetScansByOwnerPhone(phone string) ([]*models.OwnerScan, error) {
	cars, err := m.GetCarsByOwnerPhone(phone)
	if err != nil {
		return nil, err
	}

	m.scanMu.RLock()
	defer m.scanMu.RUnlock()

	var all []*models.OwnerScan
	for _, car := range cars {
		for _, scan := range m.scans[car.CarID] {
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
