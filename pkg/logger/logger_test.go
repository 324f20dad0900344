package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/billsafe/pkg/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var lines []map[string]any
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal(raw, &line))
		lines = append(lines, line)
	}
	return lines
}

func TestLoggerMasksSensitiveAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.LoggerConfig{Level: "info", Format: "json"}, false, &buf)

	log.With(slog.String("push_token", "abc")).Info("sending reminder",
		slog.String("token", "secret-token"),
		slog.String("bill_id", "b1"),
		slog.Group("user", slog.String("password", "hunter2"), slog.String("id", "u1")),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]

	assert.Equal(t, "***", line["push_token"])
	assert.Equal(t, "***", line["token"])
	assert.Equal(t, "b1", line["bill_id"])

	user, ok := line["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "***", user["password"])
	assert.Equal(t, "u1", user["id"])
}

func TestLoggerSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.LoggerConfig{Level: "warn", Format: "json"}, false, &buf)

	log.Info("hidden")
	assert.Empty(t, decodeLines(t, &buf))

	require.NoError(t, log.SetLevel("debug"))
	assert.Equal(t, slog.LevelDebug, log.Level())
	log.Debug("visible")
	assert.Len(t, decodeLines(t, &buf), 1)

	assert.Error(t, log.SetLevel("loud"))
}

func TestLoggerWritesRotatedFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "billsafe.log")
	log := newLogger(config.LoggerConfig{Level: "info", Format: "text", File: path, MaxSizeMB: 1}, false, &buf)
	defer log.Close()

	log.Info("sweep finished")
	assert.Contains(t, buf.String(), "sweep finished")
	assert.FileExists(t, path)
}

func TestCorrelationMiddleware(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(CorrelationIDHeader, "req-42")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "lb-7")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "lb-7", seen)
	assert.Equal(t, "lb-7", rec.Header().Get(CorrelationIDHeader))

	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}
