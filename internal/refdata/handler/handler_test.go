package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-gateway/internal/refdata"
	dErrors "intake-gateway/pkg/domain-errors"
)

type fakeRefdata struct {
	items []refdata.Item
	err   error

	parentAsked string
}

func (f *fakeRefdata) Municipalities(context.Context) ([]refdata.Item, error) {
	return f.items, f.err
}

func (f *fakeRefdata) Localities(_ context.Context, municipalityID string) ([]refdata.Item, error) {
	f.parentAsked = municipalityID
	return f.items, f.err
}

func newRouter(fake *fakeRefdata) http.Handler {
	r := chi.NewRouter()
	New(fake, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestMunicipalities(t *testing.T) {
	fake := &fakeRefdata{items: []refdata.Item{{ID: "004", Name: "Centro"}}}
	router := newRouter(fake)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/refdata/municipalities", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var items []refdata.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Centro", items[0].Name)
}

func TestLocalities_ForwardsParent(t *testing.T) {
	fake := &fakeRefdata{items: []refdata.Item{}}
	router := newRouter(fake)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/refdata/municipalities/004/localities", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "004", fake.parentAsked)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestLocalities_Outage(t *testing.T) {
	fake := &fakeRefdata{err: dErrors.New(dErrors.CodeUnavailable, "el catálogo no está disponible")}
	router := newRouter(fake)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/refdata/municipalities/004/localities", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}
