// Package renapo is the client for the national population registry lookup
// that verifies a CURP and returns the person's registered data.
package renapo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intake-gateway/pkg/platform/sentinel"
)

// Person is the authoritative record a successful verification returns.
// BirthDate comes off the wire as DD/MM/YYYY; BirthState is the full state
// name resolved from the registry's two-letter code.
type Person struct {
	CURP           string
	GivenNames     string
	PaternalName   string
	MaternalName   string
	BirthDate      time.Time
	BirthStateCode string
	BirthState     string
}

// Client talks to the RENAPO consultation endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Verify looks up a CURP. Transport failures wrap sentinel.ErrUnavailable;
// registry rejections and malformed responses return plain errors. Either
// way the caller treats the verification as failed and may offer the manual
// bypass.
func (c *Client) Verify(ctx context.Context, curp string) (*Person, error) {
	url := fmt.Sprintf("%s/v1/curp/%s", c.baseURL, strings.ToUpper(strings.TrimSpace(curp)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build renapo request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("renapo verify: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("renapo verify: read response: %w", err)
	}
	return parseVerifyResponse(resp.StatusCode, body)
}

// parseVerifyResponse interprets the registry's wire format:
//
//	{"codigo":"ok","datos":{"curp":"...","nombres":"...","primerApellido":"...",
//	 "segundoApellido":"...","fechaNacimiento":"15/03/1985","claveEntidad":"TC"}}
//
// Any codigo other than "ok" is a registry rejection.
func parseVerifyResponse(status int, body []byte) (*Person, error) {
	if status >= 500 {
		return nil, fmt.Errorf("renapo verify: %w: status %d", sentinel.ErrUnavailable, status)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("renapo verify: unexpected status %d", status)
	}

	var raw struct {
		Codigo  string `json:"codigo"`
		Mensaje string `json:"mensaje"`
		Datos   struct {
			CURP            string `json:"curp"`
			Nombres         string `json:"nombres"`
			PrimerApellido  string `json:"primerApellido"`
			SegundoApellido string `json:"segundoApellido"`
			FechaNacimiento string `json:"fechaNacimiento"`
			ClaveEntidad    string `json:"claveEntidad"`
		} `json:"datos"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("renapo verify: malformed response: %w", err)
	}
	if raw.Codigo != "ok" {
		return nil, fmt.Errorf("renapo verify: registry rejected curp: %s", raw.Mensaje)
	}

	birthDate, err := time.Parse("02/01/2006", raw.Datos.FechaNacimiento)
	if err != nil {
		return nil, fmt.Errorf("renapo verify: bad birth date %q: %w", raw.Datos.FechaNacimiento, err)
	}

	stateName, ok := StateName(raw.Datos.ClaveEntidad)
	if !ok {
		return nil, fmt.Errorf("renapo verify: unknown birth state code %q", raw.Datos.ClaveEntidad)
	}

	return &Person{
		CURP:           raw.Datos.CURP,
		GivenNames:     raw.Datos.Nombres,
		PaternalName:   raw.Datos.PrimerApellido,
		MaternalName:   raw.Datos.SegundoApellido,
		BirthDate:      birthDate,
		BirthStateCode: raw.Datos.ClaveEntidad,
		BirthState:     stateName,
	}, nil
}
