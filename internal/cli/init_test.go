package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("BUDGETBUDDY_TEST_KEY=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BUDGETBUDDY_TEST_KEY", "")
	os.Unsetenv("BUDGETBUDDY_TEST_KEY")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("BUDGETBUDDY_TEST_KEY"); got != "from-file" {
		t.Errorf("env = %q", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}

func TestSetupLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "component=cli") {
		t.Errorf("missing component: %q", out)
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	logger := SetupLogger(&bytes.Buffer{}, "error")
	t.Setenv("TOKEN_BACKEND", "memory")
	t.Setenv("API_URL", "http://localhost:5000")
	t.Setenv("LOG_LEVEL", "info")

	cfg, err := LoadAndValidateConfig(logger)
	if err != nil {
		t.Fatalf("LoadAndValidateConfig: %v", err)
	}
	if cfg.TokenBackend != "memory" {
		t.Errorf("TokenBackend = %q", cfg.TokenBackend)
	}

	t.Setenv("TOKEN_BACKEND", "floppy")
	if _, err := LoadAndValidateConfig(logger); err == nil {
		t.Error("expected validation error")
	}
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(context.Background(), SetupLogger(&bytes.Buffer{}, "error"))
	cancel()
	<-ctx.Done()
}
