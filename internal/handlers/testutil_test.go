package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/carlink/carlink-backend/internal/models"
	"github.com/carlink/carlink-backend/internal/services"
	"github.com/carlink/carlink-backend/internal/storage"
)

type testEnv struct {
	app   *fiber.App
	store storage.Store
	db    *gorm.DB
}

// stubQRService avoids the external QR renderer in tests
type stubQRService struct{}

func (stubQRService) Generate(carID, plateNumber string) (*services.QRImage, error) {
	return &services.QRImage{
		Base64:     "data:image/png;base64,c3R1Yg==",
		PayloadURL: "http://localhost:3000?car=" + carID,
		FileName:   "qr-" + plateNumber + ".png",
	}, nil
}

// noopDelivery keeps passcodes out of tests; handlers get them from
// the demo-mode response instead
type noopDelivery struct{}

func (noopDelivery) Send(phone, code string) error { return nil }

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.Car{},
		&models.OTPSession{},
		&models.ScanRecord{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	store := storage.NewDatabaseStore(db)
	otpService := services.NewOTPService(store, noopDelivery{})

	app := fiber.New()
	app.Use(recover.New())

	contactHandler := NewContactHandler(store, otpService, true) // demo mode: responses carry the passcode
	carHandler := NewCarHandler(store, stubQRService{})

	app.Get("/health", NewHealthHandler(db, "test").Check)
	app.Post("/challenge", contactHandler.RequestChallenge)
	app.Post("/verify", contactHandler.VerifyPasscode)
	app.Get("/scans/:carId", contactHandler.GetScans)

	api := app.Group("/api")
	api.Post("/cars/register", carHandler.Register)
	api.Get("/cars/:carId", carHandler.GetCar)
	api.Get("/scan-logs/:ownerPhone", carHandler.GetOwnerScanLogs)
	api.Get("/scan-stats/:ownerPhone", carHandler.GetOwnerScanStats)

	return &testEnv{app: app, store: store, db: db}
}

func createTestCar(t *testing.T, store storage.Store, plate, ownerName, ownerPhone string) *models.Car {
	t.Helper()

	car, err := store.CreateCar(&models.Car{
		PlateNumber: plate,
		OwnerName:   ownerName,
		OwnerPhone:  ownerPhone,
	})
	if err != nil {
		t.Fatalf("failed creating test car: %v", err)
	}
	return car
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	return performRequest(t, app, method, path, body)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed decoding response body: %v", err)
	}
	return body
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()

	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}
