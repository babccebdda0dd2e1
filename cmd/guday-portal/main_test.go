// ABOUTME: Tests for the guday-portal CLI: logging, init, import and audit commands
// ABOUTME: Commands run through the cobra tree against temp dirs and an in-memory fake API

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/guday-portal/internal/backend"
	"github.com/2389/guday-portal/internal/config"
	"github.com/2389/guday-portal/internal/store"
)

func init() {
	color.NoColor = true
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "parseLevel(%q)", in)
	}
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "server").WithGroup("req").Info("request completed", "status", 200, "path", "/a b")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF request completed")
	assert.Contains(t, out, "component=server")
	assert.Contains(t, out, "req.status=200")
	assert.Contains(t, out, `req.path="/a b"`)
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("skipped")
	logger.Warn("kept", "n", 1)

	assert.NotContains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}

func TestLocalURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080/health"},
		{":8080", "http://127.0.0.1:8080/health"},
		{"0.0.0.0:9000", "http://127.0.0.1:9000/health"},
		{"portal.local:80", "http://portal.local:80/health"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, localURL(tt.addr, "/health"), tt.addr)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "guday-portal dev\n", out)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guday", "portal.yaml")

	out, err := execute(t, "", "--config", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Config written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultYAML, string(data))

	_, err = execute(t, "", "--config", path, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInit_Interactive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.yaml")
	answers := strings.Join([]string{
		"0.0.0.0:9090",             // HTTP address
		"",                         // public base URL
		"yes",                      // secure cookies
		"https://api.example.test", // API base URL
		"/var/lib/guday/portal.db", // database
		"Services NSW",             // site name
		"debug",                    // log level
		"json",                     // log format
	}, "\n") + "\n"

	_, err := execute(t, answers, "--config", path, "init", "--interactive")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.HTTPAddr)
	assert.True(t, cfg.Session.SecureCookies)
	assert.Equal(t, "https://api.example.test", cfg.Backend.BaseURL)
	assert.Equal(t, "/var/lib/guday/portal.db", cfg.Database.Path)
	assert.Equal(t, "Services NSW", cfg.Portal.SiteName)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GUDAY_TEST_ENV=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("GUDAY_TEST_ENV") })

	c := &cli{envFile: envFile}
	require.NoError(t, c.loadEnv())
	assert.Equal(t, "loaded", os.Getenv("GUDAY_TEST_ENV"))

	c.envFile = filepath.Join(dir, "missing.env")
	assert.NoError(t, c.loadEnv())
}

type fakeImportAPI struct {
	auth  string
	items []backend.ServiceRequest
	fail  error
}

func (f *fakeImportAPI) AdminLogin(ctx context.Context, creds backend.Credentials) (backend.LoginResult, error) {
	return backend.LoginResult{Token: "tok-" + creds.Username, TokenType: "bearer", Username: creds.Username}, nil
}

func (f *fakeImportAPI) BulkImportServices(ctx context.Context, auth string, items []backend.ServiceRequest) (backend.BulkImportResult, error) {
	f.auth = auth
	f.items = items
	if f.fail != nil {
		return backend.BulkImportResult{}, f.fail
	}
	return backend.BulkImportResult{Imported: len(items) - 1, Failed: 1, Errors: []string{"duplicate slug"}}, nil
}

const importYAML = `items:
  - title: Renew a passport
    overview: Renew an adult passport online.
  - title: Register a birth
    overview: Register a newborn within 60 days.
`

func importConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "portal.db")
	file := filepath.Join(dir, "services.yaml")
	require.NoError(t, os.WriteFile(file, []byte(importYAML), 0o600))
	return cfg, file
}

func TestRunImport_DryRun(t *testing.T) {
	cfg, file := importConfig(t)
	api := &fakeImportAPI{}
	var out bytes.Buffer

	err := runImport(context.Background(), &out, cfg, api, file, importOptions{dryRun: true})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "2 services valid")
	assert.Nil(t, api.items)
}

func TestRunImport_InvalidFile(t *testing.T) {
	cfg, _ := importConfig(t)
	file := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"title": ""}]`), 0o600))
	var out bytes.Buffer

	err := runImport(context.Background(), &out, cfg, &fakeImportAPI{}, file, importOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid field")
	assert.Contains(t, out.String(), "Title is required.")
}

func TestRunImport_RequiresCredentials(t *testing.T) {
	cfg, file := importConfig(t)
	err := runImport(context.Background(), &bytes.Buffer{}, cfg, &fakeImportAPI{}, file, importOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin credentials required")
}

func TestRunImport_RecordsAudit(t *testing.T) {
	cfg, file := importConfig(t)
	api := &fakeImportAPI{}
	var out bytes.Buffer

	err := runImport(context.Background(), &out, cfg, api, file, importOptions{username: "ops", password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-ops", api.auth)
	require.Len(t, api.items, 2)
	assert.Equal(t, "renew-a-passport", api.items[0].Slug)
	assert.Contains(t, out.String(), "1 service imported, 1 failed")
	assert.Contains(t, out.String(), "duplicate slug")

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	require.NoError(t, err)
	defer st.Close()

	var audit bytes.Buffer
	require.NoError(t, printAudit(context.Background(), &audit, st, auditOptions{limit: 10}, time.Now()))
	assert.Contains(t, audit.String(), "ops")
	assert.Contains(t, audit.String(), string(store.AuditImportServices))
	assert.Contains(t, audit.String(), store.OutcomeOK)
}

func TestPrintAudit(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, printAudit(ctx, &out, st, auditOptions{limit: 10}, time.Now()))
	assert.Equal(t, "no audit entries\n", out.String())

	require.NoError(t, st.AppendAuditLog(ctx, &store.AuditEntry{
		Actor: "alice", Action: store.AuditDeleteService, TargetType: "service", TargetID: "svc-1",
		Outcome: store.OutcomeError,
	}))
	require.NoError(t, st.AppendAuditLog(ctx, &store.AuditEntry{
		Actor: "bob", Action: store.AuditCreateCategory, TargetType: "category", TargetID: "cat-1",
	}))

	out.Reset()
	require.NoError(t, printAudit(ctx, &out, st, auditOptions{limit: 10, actor: "alice"}, time.Now()))
	assert.Contains(t, out.String(), "service svc-1")
	assert.Contains(t, out.String(), store.OutcomeError)
	assert.NotContains(t, out.String(), "bob")

	err = printAudit(ctx, &out, st, auditOptions{limit: 10, action: "explode"}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action "explode"`)
}
