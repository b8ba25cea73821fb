package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake-gateway/internal/blob"
	"intake-gateway/internal/forms"
	"intake-gateway/internal/precheck"
	"intake-gateway/internal/session/models"
	"intake-gateway/internal/session/service"
	id "intake-gateway/pkg/domain"
	dErrors "intake-gateway/pkg/domain-errors"
)

func testNow(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeService records calls and returns canned snapshots.
type fakeService struct {
	snapshot *service.Snapshot
	err      error

	setFieldName string
	setFieldRaw  json.RawMessage
	advanceOver  bool
	attached     []models.Photo
	detachedIdx  int
	abandoned    bool
}

func (f *fakeService) Create(_ context.Context, formID string) (*service.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeService) Get(_ context.Context, _ id.SessionID) (*service.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeService) SetField(_ context.Context, _ id.SessionID, name string, raw json.RawMessage) (*service.Snapshot, error) {
	f.setFieldName = name
	f.setFieldRaw = raw
	return f.snapshot, f.err
}

func (f *fakeService) Advance(_ context.Context, _ id.SessionID, override bool) (*service.AdvanceOutcome, error) {
	f.advanceOver = override
	if f.err != nil {
		return nil, f.err
	}
	return &service.AdvanceOutcome{Snapshot: f.snapshot, Advanced: true}, nil
}

func (f *fakeService) Retreat(_ context.Context, _ id.SessionID) (*service.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeService) VerifyIdentity(_ context.Context, _ id.SessionID) (*service.VerifyOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.VerifyOutcome{Snapshot: f.snapshot, Status: precheck.StatusCleared}, nil
}

func (f *fakeService) BypassIdentity(_ context.Context, _ id.SessionID) (*service.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeService) ApplyScan(_ context.Context, _ id.SessionID, _ []byte) (*service.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeService) AttachPhoto(_ context.Context, _ id.SessionID, photo models.Photo) (*service.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.attached = append(f.attached, photo)
	return f.snapshot, nil
}

func (f *fakeService) DetachPhoto(_ context.Context, _ id.SessionID, index int) (*service.Snapshot, error) {
	f.detachedIdx = index
	return f.snapshot, f.err
}

func (f *fakeService) Abandon(_ context.Context, _ id.SessionID) error {
	f.abandoned = true
	return f.err
}

func newFixture(t *testing.T) (*fakeService, *blob.Stage, http.Handler) {
	t.Helper()
	def, ok := forms.NewCatalog().Get("apertura-empresas")
	require.True(t, ok)
	session := models.NewSession(id.NewSessionID(), id.NewUserID(), def, testNow(t))
	fake := &fakeService{snapshot: &service.Snapshot{Session: session}}
	stage := blob.NewStage()
	r := chi.NewRouter()
	New(fake, forms.NewCatalog(), stage, testLogger()).Register(r)
	return fake, stage, r
}

func TestListForms(t *testing.T) {
	_, _, router := newFixture(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/forms", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var out []formView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out, 6)
	ids := make([]string, 0, len(out))
	for _, fv := range out {
		ids = append(ids, fv.ID)
		assert.NotEmpty(t, fv.Steps)
	}
	assert.Contains(t, ids, "apertura-empresas")
	assert.Contains(t, ids, "tanda-solidaria")
}

func TestCreateSession(t *testing.T) {
	_, _, router := newFixture(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/forms/apertura-empresas/sessions", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"stepGates"`)
}

func TestCreateSession_UnknownForm(t *testing.T) {
	fake, _, router := newFixture(t)
	fake.snapshot = nil
	fake.err = dErrors.New(dErrors.CodeNotFound, "el formulario no existe")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/forms/nope/sessions", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestSetField(t *testing.T) {
	fake, _, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	body := strings.NewReader(`{"value": "JUAN"}`)
	req := httptest.NewRequest(http.MethodPut, "/sessions/"+sid+"/fields/nombre", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nombre", fake.setFieldName)
	assert.JSONEq(t, `"JUAN"`, string(fake.setFieldRaw))
}

func TestSetField_BadBody(t *testing.T) {
	fake, _, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	req := httptest.NewRequest(http.MethodPut, "/sessions/"+sid+"/fields/nombre", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.setFieldName)
}

func TestSetField_BadSessionID(t *testing.T) {
	_, _, router := newFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/sessions/not-a-uuid/fields/nombre", strings.NewReader(`{"value": 1}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_input")
}

func TestAdvance_OverrideFlag(t *testing.T) {
	fake, _, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	body := strings.NewReader(`{"override_unreachable": true}`)
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sid+"/advance", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, fake.advanceOver)
}

func TestAdvance_EmptyBody(t *testing.T) {
	fake, _, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sid+"/advance", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, fake.advanceOver)
}

func TestAttachPhoto_StagesBytes(t *testing.T) {
	fake, stage, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("foto", "fachada.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("descripcion", "fachada del local"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sid+"/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, fake.attached, 1)
	photo := fake.attached[0]
	assert.Equal(t, "fachada del local", photo.Description)
	require.True(t, strings.HasPrefix(photo.URI, blob.StageScheme))

	key := strings.TrimPrefix(photo.URI, blob.StageScheme)
	staged, ok := stage.Get(sid, key)
	require.True(t, ok)
	assert.Equal(t, []byte("jpeg-bytes"), staged.Data)
}

func TestAttachPhoto_ServiceRejectsFreesStage(t *testing.T) {
	fake, stage, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()
	fake.err = dErrors.New(dErrors.CodeInvariantViolation, "la sesión ya tiene el máximo de fotografías")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("foto", "extra.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sid+"/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, fake.attached)
	// rejected upload must not leak staged bytes
	assert.Equal(t, 0, stage.Count(sid))
}

func TestAttachPhoto_MissingFile(t *testing.T) {
	fake, _, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("descripcion", "sin archivo"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sid+"/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "foto")
}

func TestDetachPhoto_FreesStagedBytes(t *testing.T) {
	fake, stage, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	key := stage.Put(sid, "image/jpeg", []byte("jpeg-bytes"))
	fake.snapshot.Session.Photos = []models.Photo{{URI: blob.StageScheme + key, Description: "fachada"}}

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+sid+"/photos/0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, fake.detachedIdx)
	_, ok := stage.Get(sid, key)
	assert.False(t, ok)
}

func TestDetachPhoto_BadIndex(t *testing.T) {
	fake, _, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+sid+"/photos/primera", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScan_EmptyBodyRejected(t *testing.T) {
	fake, _, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sid+"/scan", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScan_ForwardsImage(t *testing.T) {
	fake, _, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sid+"/scan", bytes.NewReader([]byte("ine-front")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAbandon(t *testing.T) {
	fake, _, router := newFixture(t)
	sid := fake.snapshot.Session.ID.String()

	req := httptest.NewRequest(http.MethodDelete, "/sessions/"+sid, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, fake.abandoned)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "no existe"), http.StatusNotFound},
		{"conflict", dErrors.New(dErrors.CodeConflict, "ya registrado"), http.StatusConflict},
		{"unavailable", dErrors.New(dErrors.CodeUnavailable, "sin conexión"), http.StatusServiceUnavailable},
		{"validation", dErrors.New(dErrors.CodeValidation, "campos incompletos"), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, _, router := newFixture(t)
			sid := fake.snapshot.Session.ID.String()
			fake.snapshot = nil
			fake.err = tt.err

			req := httptest.NewRequest(http.MethodPost, "/sessions/"+sid+"/retreat", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
