package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/chapterq/internal/config"
	"github.com/phrazzld/chapterq/internal/platform/migrations"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 64)...)

const testSecret = "integration-secret-that-is-long-enough"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a valid config rooted in a fresh temp directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "error",
			ShutdownTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			URL:    filepath.Join(dir, "chapterq.db"),
		},
		Download: config.DownloadConfig{
			OutputDir:    filepath.Join(dir, "downloads"),
			Timeout:      5 * time.Second,
			UserAgent:    "chapterq-test",
			MaxPageBytes: 1 << 20,
		},
		Auth: config.AuthConfig{TokenLifetimeMinutes: 60},
	}
}

// newTestApp opens and migrates a temp SQLite database and wires an
// application around it. The processor is shut down on cleanup.
func newTestApp(t *testing.T, cfg *config.Config) *application {
	t.Helper()
	ctx := context.Background()

	db, err := setupAppDatabase(ctx, cfg.Database, testLogger())
	require.NoError(t, err)
	require.NoError(t, migrations.Run(ctx, db, cfg.Database.Driver, migrations.CommandUp, testLogger()))

	app, err := newApplication(cfg, testLogger(), db, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.shutdown(ctx)
	})
	return app
}

// newPageServer serves one PNG page at /png and a 503 at /broken.
func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func apiRequest(t *testing.T, base, method, path, token string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, base+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// waitForChapterStatus polls GET /api/chapters/{chapter} until it reports want.
func waitForChapterStatus(t *testing.T, base, token, chapter, want string) map[string]any {
	t.Helper()
	var last map[string]any
	require.Eventually(t, func() bool {
		req, err := http.NewRequest(http.MethodGet, base+"/api/chapters/"+chapter, nil)
		if err != nil {
			return false
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var state map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			return false
		}
		last = state
		return state["status"] == want
	}, 5*time.Second, 20*time.Millisecond, "chapter %s never reached %s", chapter, want)
	return last
}

func writeConfigFile(t *testing.T, cfg *config.Config) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("server:\n  log_level: error\n")
	b.WriteString("database:\n  driver: " + cfg.Database.Driver + "\n  url: " + cfg.Database.URL + "\n")
	b.WriteString("download:\n  output_dir: " + cfg.Download.OutputDir + "\n")
	if cfg.Auth.JWTSecret != "" {
		b.WriteString("auth:\n  jwt_secret: " + cfg.Auth.JWTSecret + "\n")
	}
	path := filepath.Join(t.TempDir(), "chapterq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}
