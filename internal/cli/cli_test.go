package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeSettings(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	content := `
endpoint = "http://localhost:8080"
temperatures = [0.2]

[[providers]]
name = "openai"

[[providers.models]]
id = "gpt-4o"
priority = "high"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestModelsCommandPrintsFanOut(t *testing.T) {
	cfg := &Config{SettingsPath: writeSettings(t), Logger: zerolog.Nop()}
	cmd := buildModelsCmd(cfg)

	// The table goes to stdout directly; capture it.
	old := os.Stdout
	rp, wp, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = wp
	runErr := cmd.RunE(cmd, nil)
	wp.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rp); err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	if runErr != nil {
		t.Fatalf("models command: %v", runErr)
	}
	out := buf.String()
	for _, want := range []string{"provider", "openai", "gpt-4o", "high"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestModelsCommandMissingSettings(t *testing.T) {
	cfg := &Config{SettingsPath: filepath.Join(t.TempDir(), "nope.toml"), Logger: zerolog.Nop()}
	cmd := buildModelsCmd(cfg)
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Fatal("expected error for missing settings file")
	}
}

func TestRunCommandRequiresPrompt(t *testing.T) {
	cfg := &Config{SettingsPath: writeSettings(t)}
	root := buildRootCmd(cfg)
	root.SetArgs([]string{"run", "--settings", cfg.SettingsPath})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	if err := root.Execute(); err == nil {
		t.Fatal("expected error when prompt is missing")
	}
}

func TestRunCommandRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte(`endpoint = ""`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	root := buildRootCmd(&Config{})
	root.SetArgs([]string{"run", "--settings", path, "hello"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	if err := root.Execute(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDefaultSettingsPathFromEnv(t *testing.T) {
	t.Setenv("FANOUT_SETTINGS", "/tmp/custom.toml")
	if got := defaultSettingsPath(); got != "/tmp/custom.toml" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	log := newLogger("not-a-level")
	if got := log.GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", got)
	}
}
