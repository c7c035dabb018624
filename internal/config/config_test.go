package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnvVarWithDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"server": {"port": ${HIVEMIND_PORT:8080}, "log_level": "info"},
		"engines": {"primary": {"cli_path": "${HIVEMIND_PRIMARY_CLI:claude}"}}
	}`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port substitution, got %d", cfg.Server.Port)
	}
	if cfg.Engines.Primary.CLIPath != "claude" {
		t.Fatalf("expected default cli path substitution, got %q", cfg.Engines.Primary.CLIPath)
	}
}

func TestLoadPrefersEnvironmentOverDefault(t *testing.T) {
	t.Setenv("HIVEMIND_CLAUDE_TIMEOUT", "90")
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"dialogue": {"consultant_timeout_seconds": ${HIVEMIND_CLAUDE_TIMEOUT:45}}
	}`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Dialogue.ConsultantTimeoutSeconds != 90 {
		t.Fatalf("expected env override to win, got %v", cfg.Dialogue.ConsultantTimeoutSeconds)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/config.json", "")
	if err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestDispatcherConfigDefaultTimeoutFallback(t *testing.T) {
	cfg := DispatcherConfig{}
	if cfg.DefaultTimeout().Seconds() != 300 {
		t.Fatalf("expected 300s fallback, got %v", cfg.DefaultTimeout())
	}
}

func TestDialogueConfigConsultantTimeoutFallback(t *testing.T) {
	cfg := DialogueConfig{}
	if cfg.ConsultantTimeout().Seconds() != 45 {
		t.Fatalf("expected 45s fallback, got %v", cfg.ConsultantTimeout())
	}
}

func TestSessionsConfigTTLFallback(t *testing.T) {
	cfg := SessionsConfig{}
	if cfg.TTL().Hours() != 1 {
		t.Fatalf("expected 1h fallback, got %v", cfg.TTL())
	}
}
