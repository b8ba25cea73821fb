// Package refdata serves the municipality and locality catalogs that feed
// the cascading address selectors.
package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"intake-gateway/pkg/platform/sentinel"
)

// Item is one catalog entry.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"nombre"`
}

// Client fetches catalogs from the state geographic service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Municipalities lists every municipality in the state.
func (c *Client) Municipalities(ctx context.Context) ([]Item, error) {
	return c.fetch(ctx, c.baseURL+"/api/catalogos/municipios")
}

// Localities lists the localities of one municipality. An unknown
// municipality yields an empty list, not an error; callers decide what an
// empty catalog means.
func (c *Client) Localities(ctx context.Context, municipalityID string) ([]Item, error) {
	return c.fetch(ctx, c.baseURL+"/api/catalogos/municipios/"+url.PathEscape(municipalityID)+"/localidades")
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read catalog response: %w", err)
	}
	return parseCatalogResponse(resp.StatusCode, body)
}

// parseCatalogResponse interprets a catalog payload. Split from the HTTP
// round trip so the wire contract is testable on its own.
func parseCatalogResponse(status int, body []byte) ([]Item, error) {
	switch {
	case status == http.StatusOK:
		var wire struct {
			Datos []Item `json:"datos"`
		}
		if err := json.Unmarshal(body, &wire); err != nil {
			return nil, fmt.Errorf("decode catalog response: %w", err)
		}
		if wire.Datos == nil {
			return []Item{}, nil
		}
		return wire.Datos, nil
	case status == http.StatusNotFound:
		return []Item{}, nil
	case status >= 500:
		return nil, fmt.Errorf("catalog service status %d: %w", status, sentinel.ErrUnavailable)
	default:
		return nil, fmt.Errorf("catalog service status %d", status)
	}
}
