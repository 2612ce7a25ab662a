package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/etc/fanout/settings.toml", "/etc/fanout/settings.toml"},
		{"relative/settings.yaml", "relative/settings.yaml"},
		{"~", home},
		{"~/settings.toml", filepath.Join(home, "settings.toml")},
		{"~/.config/fanout/settings.toml", filepath.Join(home, ".config", "fanout", "settings.toml")},
	}
	for _, tc := range cases {
		got, err := ExpandHome(tc.in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	if !PathExists(dir) {
		t.Fatalf("expected %q to exist", dir)
	}
	file := filepath.Join(dir, "settings.toml")
	if PathExists(file) {
		t.Fatalf("expected %q to be missing", file)
	}
	if err := os.WriteFile(file, []byte(`endpoint = "x"`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !PathExists(file) {
		t.Fatalf("expected %q to exist after write", file)
	}
}
