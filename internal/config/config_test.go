package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCacheBase_XDGSet(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	got := cacheBase()
	want := filepath.Join("/custom/cache", "doxnav")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_HomeDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	got := cacheBase()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	want := filepath.Join(home, ".cache", "doxnav")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_TmpFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")
	got := cacheBase()
	if !strings.Contains(got, "doxnav") {
		t.Errorf("expected doxnav in path, got %q", got)
	}
}

func TestSocketPath_RuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/test")
	got := SocketPath()
	want := filepath.Join("/run/test", "doxnav", "daemon.sock")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecode_InlineToken(t *testing.T) {
	cfg, err := decode(map[string]interface{}{
		"fetch": map[string]interface{}{
			"token":           "secret",
			"timeout_seconds": 5,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Fetch.Token.Value != "secret" {
		t.Errorf("token = %q, want secret", cfg.Fetch.Token.Value)
	}
	if cfg.Fetch.TimeoutSeconds != 5 {
		t.Errorf("timeout = %d, want 5", cfg.Fetch.TimeoutSeconds)
	}
}

func TestDecode_TokenFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := decode(map[string]interface{}{
		"fetch": map[string]interface{}{
			"token": map[string]interface{}{"path": path},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Fetch.Token.Value != "from-file" {
		t.Errorf("token = %q, want from-file", cfg.Fetch.Token.Value)
	}
}

func TestResolveToken_MissingFile(t *testing.T) {
	tok := TokenConfig{}
	err := resolveToken(&tok, filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing token file")
	}
}
