package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSecurity_FilePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewJSONFileStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(tmpDir, "documents")
	info, _ := os.Stat(dir)
	if info.Mode().Perm() != 0o700 {
		t.Errorf("expected directory permissions 0700, got %o", info.Mode().Perm())
	}

	if err := store.Save(context.Background(), Document{UserID: "secure-perm", Content: "x"}); err != nil {
		t.Fatal(err)
	}
	info, _ = os.Stat(filepath.Join(dir, "secure-perm.json"))
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected file permissions 0600, got %o", info.Mode().Perm())
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestSecurity_SymlinkCheck(t *testing.T) {
	tmpDir := t.TempDir()
	store, _ := NewJSONFileStore(tmpDir)

	target := filepath.Join(tmpDir, "target.json")
	_ = os.WriteFile(target, []byte(`{"user_id":"target","content":"x"}`), 0o644)
	_ = os.Symlink(target, filepath.Join(tmpDir, "documents", "link.json"))

	_, err := store.Load(context.Background(), "link")
	if !errors.Is(err, ErrSymlinkNotAllowed) {
		t.Errorf("expected ErrSymlinkNotAllowed, got %v", err)
	}
}

func TestSecurity_CorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	store, _ := NewJSONFileStore(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, "documents", "corrupt.json"), []byte("{invalid json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(context.Background(), "corrupt"); err == nil || errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}
}
