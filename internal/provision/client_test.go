package provision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientFor(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return NewClient(u.Hostname(), port, nil)
}

func writeCert(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.pem")
	pem := "-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n"
	require.NoError(t, os.WriteFile(path, []byte(pem), 0o600))
	return path
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tenant@thingsboard.org", body["username"])
		assert.Equal(t, "tenant", body["password"])

		json.NewEncoder(w).Encode(map[string]string{"token": "jwt-token"})
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	require.NoError(t, c.Login(context.Background(), "tenant@thingsboard.org", "tenant"))
	assert.Equal(t, "jwt-token", c.token)
}

func TestLoginRejectedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid username or password"})
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	err := c.Login(context.Background(), "tenant@thingsboard.org", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid username or password")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoginWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	err := c.Login(context.Background(), "u", "p")
	assert.ErrorContains(t, err, "no token")
}

func TestCreateDeviceWithCertificate(t *testing.T) {
	const deviceID = "3aa14c10-0000-11ec-a2e8-1b7d4d6c6e56"

	var credentialsBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			json.NewEncoder(w).Encode(map[string]string{"token": "jwt-token"})
		case "/api/device":
			assert.Equal(t, "Bearer jwt-token", r.Header.Get("X-Authorization"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "bench-device", body["name"])
			json.NewEncoder(w).Encode(map[string]any{
				"id": map[string]string{"entityType": "DEVICE", "id": deviceID},
			})
		case "/api/device/credentials":
			assert.Equal(t, "Bearer jwt-token", r.Header.Get("X-Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&credentialsBody))
			w.Write([]byte("{}"))
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	require.NoError(t, c.Login(context.Background(), "u", "p"))

	id, err := c.CreateDeviceWithCertificate(context.Background(), "bench-device", writeCert(t))
	require.NoError(t, err)
	assert.Equal(t, deviceID, id)

	require.NotNil(t, credentialsBody)
	assert.Equal(t, "X509_CERTIFICATE", credentialsBody["credentialsType"])
	assert.Contains(t, credentialsBody["credentialsValue"], "BEGIN CERTIFICATE")
	ref, ok := credentialsBody["deviceId"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, deviceID, ref["id"])
}

func TestCreateDeviceRequiresLogin(t *testing.T) {
	c := NewClient("localhost", 8081, nil)
	_, err := c.CreateDeviceWithCertificate(context.Background(), "d", writeCert(t))
	assert.ErrorContains(t, err, "not logged in")
}

func TestCreateDeviceMissingCertificate(t *testing.T) {
	c := NewClient("localhost", 8081, nil)
	c.token = "jwt-token"
	_, err := c.CreateDeviceWithCertificate(context.Background(), "d", filepath.Join(t.TempDir(), "absent.pem"))
	assert.ErrorContains(t, err, "reading certificate")
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "jwt-token"})
	}))
	defer srv.Close()

	c := clientFor(t, srv)
	require.NoError(t, c.Login(context.Background(), "u", "p"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}
