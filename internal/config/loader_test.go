package config

import (
	"os"
	"path/filepath"
	"testing"

	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, Dir, ConfigFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWithSources_Layering(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	userPath := writeConfig(t, home, "server:\n  port: 7000\nlog:\n  level: debug\n")

	root := t.TempDir()
	projectPath := writeConfig(t, root, "server:\n  port: 7100\n")

	tc, err := LoadWithSources(LoadOptions{Root: root})
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}

	if tc.Config.Server.Port != 7100 {
		t.Errorf("Server.Port = %d, want 7100 (project overrides user)", tc.Config.Server.Port)
	}
	if tc.Config.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug from user config", tc.Config.Log.Level)
	}

	if got := tc.GetTrackedSource("server.port"); got.Source != SourceProject || got.Path != projectPath {
		t.Errorf("server.port source = %v", got)
	}
	if got := tc.GetTrackedSource("log.level"); got.Source != SourceUser || got.Path != userPath {
		t.Errorf("log.level source = %v", got)
	}
	if got := tc.GetSource("database.driver"); got != SourceDefault {
		t.Errorf("database.driver source = %v, want default", got)
	}
}

func TestLoadWithSources_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	root := t.TempDir()
	writeConfig(t, root, "server:\n  port: 7100\n")

	t.Setenv("TASKQ_PORT", "7200")
	t.Setenv("TASKQ_RETRY_INITIAL_DELAY", "250ms")
	t.Setenv("TASKQ_DB_PORT", "not-a-number")

	tc, err := LoadWithSources(LoadOptions{Root: root})
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	if tc.Config.Server.Port != 7200 {
		t.Errorf("Server.Port = %d, want 7200", tc.Config.Server.Port)
	}
	if tc.GetSource("server.port") != SourceEnv {
		t.Errorf("server.port source = %v, want env", tc.GetSource("server.port"))
	}
	if tc.Config.Retry.InitialDelay.String() != "250ms" {
		t.Errorf("Retry.InitialDelay = %v", tc.Config.Retry.InitialDelay)
	}
	if tc.Config.Database.Postgres.Port != 5432 {
		t.Errorf("unparsable TASKQ_DB_PORT should be ignored, got %d", tc.Config.Database.Postgres.Port)
	}
	if tc.GetSource("database.postgres.port") != SourceDefault {
		t.Errorf("database.postgres.port source = %v", tc.GetSource("database.postgres.port"))
	}
}

func TestLoadWithSources_ExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: postgres\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tc, err := LoadWithSources(LoadOptions{ConfigFile: path})
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	if tc.Config.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q", tc.Config.Database.Driver)
	}

	if _, err := LoadWithSources(LoadOptions{ConfigFile: filepath.Join(dir, "missing.yaml")}); err == nil {
		t.Error("missing explicit config file should fail")
	}
}

func TestLoadWithSources_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	bad := t.TempDir()
	writeConfig(t, bad, "server: [unclosed\n")
	if _, err := LoadWithSources(LoadOptions{Root: bad}); err == nil {
		t.Error("malformed project config should fail")
	}

	invalid := t.TempDir()
	writeConfig(t, invalid, "database:\n  driver: oracle\n")
	_, err := LoadWithSources(LoadOptions{Root: invalid})
	if !tqerrors.HasCode(err, tqerrors.CodeConfigInvalid) {
		t.Errorf("err = %v, want CONFIG_INVALID", err)
	}
}

func TestLoadWithSources_BadUserConfigIgnored(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, "server: [unclosed\n")

	tc, err := LoadWithSources(LoadOptions{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("bad user config should only warn: %v", err)
	}
	if tc.Config.Server.Port != Default().Server.Port {
		t.Errorf("Server.Port = %d", tc.Config.Server.Port)
	}
}

func TestLeafKeys(t *testing.T) {
	t.Parallel()
	raw := map[string]any{
		"database": map[string]any{
			"driver":   "sqlite",
			"postgres": map[string]any{"host": "db"},
		},
		"log": map[string]any{"level": "info"},
	}
	got := leafKeys(raw, "")
	want := []string{"database.driver", "database.postgres.host", "log.level"}
	if len(got) != len(want) {
		t.Fatalf("leafKeys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("leafKeys[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOverride(t *testing.T) {
	t.Parallel()
	tc := NewTrackedConfig()

	if !tc.Override("server.port", "9100", SourceFlag) {
		t.Fatal("Override(server.port) = false")
	}
	if tc.Config.Server.Port != 9100 || tc.GetSource("server.port") != SourceFlag {
		t.Errorf("port = %d source = %v", tc.Config.Server.Port, tc.GetSource("server.port"))
	}
	if tc.Override("server.port", "high", SourceFlag) {
		t.Error("unparsable port should not apply")
	}
	if tc.Override("no.such.key", "x", SourceFlag) {
		t.Error("unknown key should not apply")
	}
}

func TestEverySettingHasAnEnvVar(t *testing.T) {
	t.Parallel()
	keys := make(map[string]bool)
	for _, s := range settings {
		keys[s.key] = true
	}
	for _, key := range AllConfigPaths() {
		if !keys[key] {
			t.Errorf("config key %s has no setting", key)
		}
	}
	if len(keys) != len(AllConfigPaths()) {
		t.Errorf("settings has %d keys, config has %d", len(keys), len(AllConfigPaths()))
	}
}
