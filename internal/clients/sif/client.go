// Package sif is the client for the case-management backend (SIF), the
// system of record for submitted cases. It exposes the read-only existence
// prechecks and the authoritative case-creation call.
package sif

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

// Codes the precheck endpoint returns. Only CodeNotFoundLocal clears a
// uniqueness check; every other code blocks.
const (
	CodeNotFoundLocal = "not_found_local"
	CodeFound         = "found"
)

// PrecheckResult is the normalized outcome of an existence check.
type PrecheckResult struct {
	// Registered is true when the identifier already has a case.
	Registered bool
	// Code is the raw backend code, kept for logging and messages.
	Code string
	// Folio identifies the conflicting case when the backend names one.
	Folio string
}

// CaseRecord is the authoritative record SIF returns on creation.
type CaseRecord struct {
	CaseID string `json:"caseId"`
	Folio  string `json:"folio"`
}

// Client talks to the SIF HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New builds a SIF client. The timeout bounds every call; SIF has no
// streaming endpoints.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PrecheckCURP asks whether a case already exists for the CURP.
func (c *Client) PrecheckCURP(ctx context.Context, curp string) (*PrecheckResult, error) {
	return c.precheck(ctx, "curp", curp)
}

// PrecheckPhone asks whether a case already exists for the phone number.
func (c *Client) PrecheckPhone(ctx context.Context, phone string) (*PrecheckResult, error) {
	return c.precheck(ctx, "telefono", phone)
}

func (c *Client) precheck(ctx context.Context, field, value string) (*PrecheckResult, error) {
	body, err := json.Marshal(map[string]string{field: value})
	if err != nil {
		return nil, fmt.Errorf("marshal precheck request: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/api/casos/precheck", body)
	if err != nil {
		return nil, fmt.Errorf("sif precheck: %w: %w", sentinel.ErrUnavailable, err)
	}
	return parsePrecheckResponse(status, respBody)
}

// CreateCase submits the composite payload and returns the created record.
// The payload is a flat map of validated field values plus attachment URLs.
func (c *Client) CreateCase(ctx context.Context, payload map[string]any) (*CaseRecord, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal case payload: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/api/casos", body)
	if err != nil {
		return nil, fmt.Errorf("sif create case: %w: %w", sentinel.ErrUnavailable, err)
	}
	return parseCreateResponse(status, respBody)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// parsePrecheckResponse normalizes the precheck wire format:
//
//	{"success": true,  "code": "not_found_local"}            → clear
//	{"success": true,  "code": "found", "folio": "SIF-123"}  → registered
//	{"success": false, "mensaje": "..."}                     → registered
//
// Split out from the HTTP call so the interpretation rules are unit-testable.
func parsePrecheckResponse(status int, body []byte) (*PrecheckResult, error) {
	if status >= 500 {
		return nil, fmt.Errorf("sif precheck: %w: status %d", sentinel.ErrUnavailable, status)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("sif precheck: unexpected status %d", status)
	}

	var raw struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Folio   string `json:"folio"`
		Mensaje string `json:"mensaje"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("sif precheck: malformed response: %w", err)
	}

	if raw.Success && raw.Code == CodeNotFoundLocal {
		return &PrecheckResult{Registered: false, Code: raw.Code}, nil
	}
	code := raw.Code
	if code == "" {
		code = CodeFound
	}
	return &PrecheckResult{Registered: true, Code: code, Folio: raw.Folio}, nil
}

func parseCreateResponse(status int, body []byte) (*CaseRecord, error) {
	if status >= 500 {
		return nil, fmt.Errorf("sif create case: %w: status %d", sentinel.ErrUnavailable, status)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("sif create case: unexpected status %d: %s", status, truncate(body, 200))
	}

	var rec CaseRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("sif create case: malformed response: %w", err)
	}
	if rec.CaseID == "" {
		return nil, fmt.Errorf("sif create case: response missing caseId")
	}
	return &rec, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
