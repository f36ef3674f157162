package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/guessroom/go/internal/config"
)

func TestSetupServerRoutes(t *testing.T) {
	cfg := config.Config{Port: "0", Game: config.DefaultGameConfig()}
	services, err := setupServices(cfg)
	require.NoError(t, err)
	t.Cleanup(services.Close)
	assert.Nil(t, services.Mirror)

	server := httptest.NewServer(setupServer(cfg, services).Handler)
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(server.URL + "/api/sessions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/sessions/session_missing/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	setLogLevel("warn", false)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	setLogLevel("warn", true)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	setLogLevel("loud", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
