package services

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// QRImage is what the external QR image service returns for a car:
// an encoded image plus the URL the QR code points at.
type QRImage struct {
	Base64     string `json:"base64"`
	PayloadURL string `json:"payloadUrl"`
	FileName   string `json:"fileName"`
}

// QRImageService renders the QR code for a car at registration time.
// Rendering itself happens in an external service.
type QRImageService interface {
	Generate(carID, plateNumber string) (*QRImage, error)
}

// HTTPQRImageService calls an external QR rendering endpoint that takes
// the payload as a query parameter and responds with a PNG body.
type HTTPQRImageService struct {
	client     *http.Client
	serviceURL string
	baseURL    string
}

// NewQRImageService builds the client from environment configuration.
// QR_SERVICE_URL points at the rendering service; PUBLIC_BASE_URL is the
// site the QR payload links to.
func NewQRImageService() *HTTPQRImageService {
	serviceURL := os.Getenv("QR_SERVICE_URL")
	if serviceURL == "" {
		serviceURL = "http://localhost:9100/generate"
	}

	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}

	return &HTTPQRImageService{
		client:     &http.Client{Timeout: 10 * time.Second},
		serviceURL: serviceURL,
		baseURL:    baseURL,
	}
}

func (q *HTTPQRImageService) Generate(carID, plateNumber string) (*QRImage, error) {
	payload := fmt.Sprintf("%s?car=%s", q.baseURL, carID)

	reqURL := fmt.Sprintf("%s?data=%s&size=300", q.serviceURL, url.QueryEscape(payload))
	resp, err := q.client.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("qr service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qr service returned status %d", resp.StatusCode)
	}

	png, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read qr image: %w", err)
	}

	return &QRImage{
		Base64:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		PayloadURL: payload,
		FileName:   fmt.Sprintf("qr-%s-%d.png", plateNumber, time.Now().Unix()),
	}, nil
}
