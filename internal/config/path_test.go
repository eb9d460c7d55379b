package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultDataDirXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	got := DefaultDataDir()
	want := filepath.Join(dir, "ballot")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDefaultDataDirNonEmpty(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	if DefaultDataDir() == "" {
		t.Fatalf("data dir must never be empty")
	}
}
