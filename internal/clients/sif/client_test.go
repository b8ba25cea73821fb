package sif

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-gateway/pkg/platform/sentinel"
)

func TestParsePrecheckResponse(t *testing.T) {
	t.Run("not_found_local clears", func(t *testing.T) {
		res, err := parsePrecheckResponse(200, []byte(`{"success":true,"code":"not_found_local"}`))
		require.NoError(t, err)
		assert.False(t, res.Registered)
	})

	t.Run("found blocks with folio", func(t *testing.T) {
		res, err := parsePrecheckResponse(200, []byte(`{"success":true,"code":"found","folio":"SIF-2023-0144"}`))
		require.NoError(t, err)
		assert.True(t, res.Registered)
		assert.Equal(t, "SIF-2023-0144", res.Folio)
	})

	t.Run("success false blocks", func(t *testing.T) {
		res, err := parsePrecheckResponse(200, []byte(`{"success":false,"mensaje":"registro existente"}`))
		require.NoError(t, err)
		assert.True(t, res.Registered)
	})

	t.Run("any other success code blocks", func(t *testing.T) {
		res, err := parsePrecheckResponse(200, []byte(`{"success":true,"code":"pending_review"}`))
		require.NoError(t, err)
		assert.True(t, res.Registered)
		assert.Equal(t, "pending_review", res.Code)
	})

	t.Run("5xx is unavailable", func(t *testing.T) {
		_, err := parsePrecheckResponse(503, nil)
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	})

	t.Run("malformed body errors", func(t *testing.T) {
		_, err := parsePrecheckResponse(200, []byte(`{invalid`))
		assert.Error(t, err)
	})
}

func TestParseCreateResponse(t *testing.T) {
	t.Run("returns record", func(t *testing.T) {
		rec, err := parseCreateResponse(201, []byte(`{"caseId":"7bd8c271-6e9e-4f2e-9e6b-0c9f35a40f11","folio":"SIF-2024-0021"}`))
		require.NoError(t, err)
		assert.Equal(t, "SIF-2024-0021", rec.Folio)
	})

	t.Run("missing caseId errors", func(t *testing.T) {
		_, err := parseCreateResponse(200, []byte(`{"folio":"SIF-2024-0021"}`))
		assert.Error(t, err)
	})

	t.Run("4xx surfaces verbatim-ish", func(t *testing.T) {
		_, err := parseCreateResponse(422, []byte(`{"mensaje":"curp invalida"}`))
		require.Error(t, err)
		assert.False(t, errors.Is(err, sentinel.ErrUnavailable))
	})
}

func TestClientAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/casos/precheck":
			w.Write([]byte(`{"success":true,"code":"not_found_local"}`))
		case "/api/casos":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"caseId":"7bd8c271-6e9e-4f2e-9e6b-0c9f35a40f11","folio":"SIF-2024-0001"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 2*time.Second)

	res, err := c.PrecheckPhone(context.Background(), "9931234567")
	require.NoError(t, err)
	assert.False(t, res.Registered)

	rec, err := c.CreateCase(context.Background(), map[string]any{"curp": "PEGJ850315HTCRRN07"})
	require.NoError(t, err)
	assert.Equal(t, "SIF-2024-0001", rec.Folio)
}

func TestClientConnectionFailureIsUnavailable(t *testing.T) {
	c := New("http://127.0.0.1:1", "key", 200*time.Millisecond)
	_, err := c.PrecheckPhone(context.Background(), "9931234567")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
}
