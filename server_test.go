package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &Config{
		Addr:           "127.0.0.1:0",
		HTTPAddr:       "127.0.0.1:0",
		MaxConnections: 10,
		RateLimit:      5,
		RateWindow:     10 * time.Second,
		MaxMessageSize: 1024,
		Rooms:          "General,Help",
		LogLevel:       "error",
		LogFormat:      "json",
	}
	s, err := NewServer(cfg, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestHandleUsersReturnsSnapshot(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleUsers(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Status      string              `json:"status"`
		UsersOnline []string            `json:"users_online"`
		Rooms       map[string][]string `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Empty(t, body.UsersOnline)
	assert.Len(t, body.Rooms, 2)
}

func TestHandleUsersUnknownPath(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleUsers(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["active_sessions"])
	assert.EqualValues(t, 10, body["max_connections"])
}
