package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/carlink/carlink-backend/internal/models"
)

func challengePayload(carID string) map[string]interface{} {
	return map[string]interface{}{
		"carId":        carID,
		"scannerName":  "Rahul",
		"scannerPhone": "+15550001111",
		"reason":       "Car blocking exit",
	}
}

func verifyPayload(carID, sessionID, passcode string) map[string]interface{} {
	return map[string]interface{}{
		"carId":        carID,
		"sessionId":    sessionID,
		"passcode":     passcode,
		"scannerName":  "Rahul",
		"scannerPhone": "+15550001111",
		"reason":       "Car blocking exit",
	}
}

// issueChallenge runs POST /challenge and returns (sessionID, passcode)
// from the demo-mode response
func issueChallenge(t *testing.T, env *testEnv, carID string) (string, string) {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/challenge", challengePayload(carID))
	assertStatus(t, resp, http.StatusCreated)

	body := decodeJSONMap(t, resp)
	sessionID, _ := body["sessionId"].(string)
	passcode, _ := body["demoOTP"].(string)
	if sessionID == "" || passcode == "" {
		t.Fatalf("challenge response missing session or passcode: %v", body)
	}
	return sessionID, passcode
}

func wrongPasscode(code string) string {
	if code == "111111" {
		return "222222"
	}
	return "111111"
}

func TestChallengeUnknownCar(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/challenge", challengePayload("car_missing"))
	assertStatus(t, resp, http.StatusNotFound)
}

func TestChallengeMissingScannerInfo(t *testing.T) {
	env := setupTestEnv(t)
	car := createTestCar(t, env.store, "KA01AB1234", "Priya", "+919876543210")

	payload := challengePayload(car.CarID)
	payload["scannerPhone"] = ""

	resp := performJSONRequest(t, env.app, http.MethodPost, "/challenge", payload)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestVerifyFullFlow(t *testing.T) {
	env := setupTestEnv(t)
	car := createTestCar(t, env.store, "KA01AB1234", "Priya Sharma", "+919876543210")

	sessionID, passcode := issueChallenge(t, env, car.CarID)

	// Two wrong submissions are recoverable
	for i := 0; i < 2; i++ {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/verify",
			verifyPayload(car.CarID, sessionID, wrongPasscode(passcode)))
		assertStatus(t, resp, http.StatusUnauthorized)
	}

	// Correct passcode discloses the owner contact
	resp := performJSONRequest(t, env.app, http.MethodPost, "/verify",
		verifyPayload(car.CarID, sessionID, passcode))
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	if body["ownerName"] != "Priya Sharma" {
		t.Fatalf("wrong owner name: %v", body["ownerName"])
	}
	if body["ownerPhone"] != "+919876543210" {
		t.Fatalf("wrong owner phone: %v", body["ownerPhone"])
	}

	// Replay is rejected as gone
	resp = performJSONRequest(t, env.app, http.MethodPost, "/verify",
		verifyPayload(car.CarID, sessionID, passcode))
	assertStatus(t, resp, http.StatusGone)

	// Exactly one verified scan record was appended
	scans, err := env.store.GetScans(car.CarID)
	if err != nil {
		t.Fatalf("failed reading scans: %v", err)
	}
	verified := 0
	for _, scan := range scans {
		if scan.Verified {
			verified++
		}
	}
	if verified != 1 {
		t.Fatalf("expected one verified scan, got %d", verified)
	}
}

func TestVerifyAttemptsExceeded(t *testing.T) {
	env := setupTestEnv(t)
	car := createTestCar(t, env.store, "KA01AB1234", "Priya", "+919876543210")

	sessionID, passcode := issueChallenge(t, env, car.CarID)

	for i := 0; i < 2; i++ {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/verify",
			verifyPayload(car.CarID, sessionID, wrongPasscode(passcode)))
		assertStatus(t, resp, http.StatusUnauthorized)
	}

	resp := performJSONRequest(t, env.app, http.MethodPost, "/verify",
		verifyPayload(car.CarID, sessionID, wrongPasscode(passcode)))
	assertStatus(t, resp, http.StatusTooManyRequests)

	// Correct passcode after exhaustion is gone, not unauthorized
	resp = performJSONRequest(t, env.app, http.MethodPost, "/verify",
		verifyPayload(car.CarID, sessionID, passcode))
	assertStatus(t, resp, http.StatusGone)
}

func TestVerifyExpiredSession(t *testing.T) {
	env := setupTestEnv(t)
	car := createTestCar(t, env.store, "KA01AB1234", "Priya", "+919876543210")

	sessionID, passcode := issueChallenge(t, env, car.CarID)

	err := env.db.Model(&models.OTPSession{}).
		Where("session_id = ?", sessionID).
		Update("expires_at", time.Now().Add(-time.Second)).Error
	if err != nil {
		t.Fatalf("failed backdating session: %v", err)
	}

	resp := performJSONRequest(t, env.app, http.MethodPost, "/verify",
		verifyPayload(car.CarID, sessionID, passcode))
	assertStatus(t, resp, http.StatusGone)

	session, err := env.store.GetOTPSession(sessionID)
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if session.Attempts != 0 {
		t.Fatalf("expired attempt consumed a slot: %d", session.Attempts)
	}
}

func TestVerifyValidation(t *testing.T) {
	env := setupTestEnv(t)
	car := createTestCar(t, env.store, "KA01AB1234", "Priya", "+919876543210")
	sessionID, _ := issueChallenge(t, env, car.CarID)

	// Malformed passcode
	resp := performJSONRequest(t, env.app, http.MethodPost, "/verify",
		verifyPayload(car.CarID, sessionID, "12345"))
	assertStatus(t, resp, http.StatusBadRequest)

	// Unknown session
	resp = performJSONRequest(t, env.app, http.MethodPost, "/verify",
		verifyPayload(car.CarID, "otp_missing", "123456"))
	assertStatus(t, resp, http.StatusNotFound)

	// Unknown car
	resp = performJSONRequest(t, env.app, http.MethodPost, "/verify",
		verifyPayload("car_missing", sessionID, "123456"))
	assertStatus(t, resp, http.StatusNotFound)
}

func TestGetScansOrdering(t *testing.T) {
	env := setupTestEnv(t)
	car := createTestCar(t, env.store, "KA01AB1234", "Priya", "+919876543210")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		err := env.store.AppendScan(car.CarID, &models.ScanRecord{
			ScannerName: "Rahul",
			Verified:    i == 1,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	resp := performRequest(t, env.app, http.MethodGet, "/scans/"+car.CarID, nil)
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	scans := body["scans"].([]interface{})
	if len(scans) != 3 {
		t.Fatalf("expected 3 scans, got %d", len(scans))
	}

	var prev time.Time
	for i, raw := range scans {
		entry := raw.(map[string]interface{})
		ts, err := time.Parse(time.RFC3339Nano, entry["timestamp"].(string))
		if err != nil {
			t.Fatalf("bad timestamp in scan %d: %v", i, err)
		}
		if i > 0 && ts.After(prev) {
			t.Fatal("scans not ordered newest first")
		}
		prev = ts
	}
}

func TestGetScansUnknownCar(t *testing.T) {
	env := setupTestEnv(t)

	resp := performRequest(t, env.app, http.MethodGet, "/scans/car_missing", nil)
	assertStatus(t, resp, http.StatusNotFound)
}
