package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vodpipe/internal/config"
	"vodpipe/internal/queue"
	"vodpipe/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	backend    *testsupport.FakeBackend
	configPath string
}

// setupCLITestEnv writes a config whose api_bind points at a closed port, so
// every command runs without a daemon.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	fake := testsupport.NewFakeBackend(t)
	opts = append([]testsupport.ConfigOption{testsupport.WithBackendURL(fake.URL())}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Paths.APIBind = closedAPIBind(t)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "vodpipe.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		backend:    fake,
		configPath: configPath,
	}
}

func closedAPIBind(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	parsed, err := url.Parse(srv.URL)
	srv.Close()
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return parsed.Host
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	stdout, stderr, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("vodpipe %s: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return stdout
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
