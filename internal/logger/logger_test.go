package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONOutputCarriesCallAndError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Environment: "production", Level: "info", Output: &buf})

	log.WithCall("CA123").WithError(errors.New("boom")).Warn("pipeline failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "CA123", line["call_id"])
	require.Equal(t, "boom", line["error"])
	require.Equal(t, "warning", line["level"])
}

func TestWithRequestKeepsIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Environment: "production", Output: &buf})

	req := httptest.NewRequest("POST", "/voice", nil)
	req.Header.Set("X-Request-ID", "req-1")
	log.WithRequest(req).Info("received")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "req-1", line["req_id"])
	require.Equal(t, "/voice", line["path"])
}

func TestWithRequestGeneratesRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Environment: "production", Output: &buf})

	log.WithRequest(httptest.NewRequest("GET", "/health", nil)).Info("health")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.NotEmpty(t, line["req_id"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Environment: "production", Level: "warn", Output: &buf})

	log.Info("hidden")
	require.Zero(t, buf.Len())
}
