// Package scanner wraps the identity-document OCR pipeline. The pipeline is
// a collaborator: it receives a captured document image and returns the
// structured fields it could read. How the OCR works is not our concern.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"intake-gateway/pkg/platform/sentinel"
)

// ScanResult carries whatever fields the OCR could extract. Missing fields
// stay empty; the wizard leaves those for manual entry.
type ScanResult struct {
	CURP           string `json:"curp"`
	GivenNames     string `json:"nombres"`
	PaternalName   string `json:"primerApellido"`
	MaternalName   string `json:"segundoApellido"`
	BirthDate      string `json:"fechaNacimiento"`
	BirthState     string `json:"estadoNacimiento"`
	DocumentNumber string `json:"numeroDocumento"`
}

// Scanner extracts structured fields from a document image.
type Scanner interface {
	Scan(ctx context.Context, image []byte) (*ScanResult, error)
}

// HTTPScanner calls the hosted OCR service.
type HTTPScanner struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTP(baseURL, apiKey string, timeout time.Duration) *HTTPScanner {
	return &HTTPScanner{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPScanner) Scan(ctx context.Context, image []byte) (*ScanResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/scan", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document scan: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("document scan: read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("document scan: %w: status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document scan: unexpected status %d", resp.StatusCode)
	}

	var result ScanResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("document scan: malformed response: %w", err)
	}
	return &result, nil
}

// Fake returns a canned result; tests and local development use it so the
// wizard flow can run without the OCR service.
type Fake struct {
	Result *ScanResult
	Err    error
}

func (f *Fake) Scan(ctx context.Context, image []byte) (*ScanResult, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Result != nil {
		return f.Result, nil
	}
	return &ScanResult{}, nil
}
