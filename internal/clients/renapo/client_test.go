package renapo

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

const okBody = `{
	"codigo": "ok",
	"datos": {
		"curp": "PEGJ850315HTCRRN07",
		"nombres": "JUAN",
		"primerApellido": "PEREZ",
		"segundoApellido": "GOMEZ",
		"fechaNacimiento": "15/03/1985",
		"claveEntidad": "TC"
	}
}`

func TestParseVerifyResponse(t *testing.T) {
	t.Run("parses a valid record", func(t *testing.T) {
		p, err := parseVerifyResponse(200, []byte(okBody))
		require.NoError(t, err)
		assert.Equal(t, "JUAN", p.GivenNames)
		assert.Equal(t, "PEREZ", p.PaternalName)
		assert.Equal(t, "GOMEZ", p.MaternalName)
		assert.Equal(t, time.Date(1985, time.March, 15, 0, 0, 0, 0, time.UTC), p.BirthDate)
		assert.Equal(t, "Tabasco", p.BirthState)
	})

	t.Run("registry rejection is a plain failure", func(t *testing.T) {
		body := []byte(`{"codigo":"no_encontrado","mensaje":"CURP no registrada"}`)
		_, err := parseVerifyResponse(200, body)
		require.Error(t, err)
		assert.False(t, errors.Is(err, sentinel.ErrUnavailable))
		assert.Contains(t, err.Error(), "CURP no registrada")
	})

	t.Run("bad birth date fails", func(t *testing.T) {
		body := []byte(`{"codigo":"ok","datos":{"curp":"X","nombres":"A","primerApellido":"B","fechaNacimiento":"1985-03-15","claveEntidad":"TC"}}`)
		_, err := parseVerifyResponse(200, body)
		assert.Error(t, err)
	})

	t.Run("unknown state code fails", func(t *testing.T) {
		body := []byte(`{"codigo":"ok","datos":{"curp":"X","nombres":"A","primerApellido":"B","fechaNacimiento":"15/03/1985","claveEntidad":"XX"}}`)
		_, err := parseVerifyResponse(200, body)
		assert.Error(t, err)
	})

	t.Run("5xx is unavailable", func(t *testing.T) {
		_, err := parseVerifyResponse(502, nil)
		assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	})

	t.Run("malformed JSON fails", func(t *testing.T) {
		_, err := parseVerifyResponse(200, []byte(`{invalid`))
		assert.Error(t, err)
	})
}

func TestVerifyAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/curp/PEGJ850315HTCRRN07", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", 2*time.Second)
	p, err := c.Verify(context.Background(), " pegj850315htcrrn07 ")
	require.NoError(t, err)
	assert.Equal(t, "PEGJ850315HTCRRN07", p.CURP)
}

func TestVerifyConnectionFailureIsUnavailable(t *testing.T) {
	c := New("http://127.0.0.1:1", "key", 200*time.Millisecond)
	_, err := c.Verify(context.Background(), "PEGJ850315HTCRRN07")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
}

func TestStateName(t *testing.T) {
	name, ok := StateName("TC")
	require.True(t, ok)
	assert.Equal(t, "Tabasco", name)

	_, ok = StateName("ZZ")
	assert.False(t, ok)
}
