package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile writes content to base/rel, creating parents.
func WriteFile(t *testing.T, base, rel, content string) string {
	t.Helper()
	full := filepath.Join(base, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", full, err)
	}
	return full
}

// ReadFile returns the content of base/rel and whether it exists.
func ReadFile(t *testing.T, base, rel string) (string, bool) {
	t.Helper()
	// #nosec G304 - test helper, paths are controlled by test code
	data, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return "", false
	}
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data), true
}

// AssertFileContent fails the test unless base/rel exists with exactly want.
func AssertFileContent(t *testing.T, base, rel, want string) {
	t.Helper()
	got, ok := ReadFile(t, base, rel)
	if !ok {
		t.Errorf("expected file to exist: %s", rel)
		return
	}
	if got != want {
		t.Errorf("content of %s = %q, want %q", rel, got, want)
	}
}

// AssertNoFile fails the test when base/rel exists.
func AssertNoFile(t *testing.T, base, rel string) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(base, filepath.FromSlash(rel))); err == nil {
		t.Errorf("expected file to be absent: %s", rel)
	}
}

// Touch sets the modification time of base/rel.
func Touch(t *testing.T, base, rel string, when time.Time) {
	t.Helper()
	full := filepath.Join(base, filepath.FromSlash(rel))
	if err := os.Chtimes(full, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", full, err)
	}
}
