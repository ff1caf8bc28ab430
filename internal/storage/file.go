package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONFileStore keeps one JSON file per user id under <baseDir>/documents.
type JSONFileStore struct {
	dir string
	mu  sync.RWMutex
}

func NewJSONFileStore(baseDir string) (*JSONFileStore, error) {
	dir := filepath.Join(baseDir, "documents")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}

	if info, err := os.Stat(dir); err == nil && info.Mode().Perm()&0o077 != 0 {
		_ = os.Chmod(dir, 0o700)
	}

	return &JSONFileStore{dir: dir}, nil
}

func (s *JSONFileStore) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

func (s *JSONFileStore) Save(_ context.Context, doc Document) error {
	doc, err := stamp(doc)
	if err != nil {
		return err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(s.dir, doc.UserID+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	tmpName := f.Name()
	_ = os.Chmod(tmpName, 0o600)

	defer func() {
		if f != nil {
			f.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := f.Close(); err != nil {
		f = nil
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	f = nil

	if err := os.Rename(tmpName, s.path(doc.UserID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	df, err := os.Open(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	defer df.Close()
	if err := df.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func (s *JSONFileStore) Load(_ context.Context, userID string) (Document, error) {
	if err := validateUserID(userID); err != nil {
		return Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.path(userID)
	info, err := os.Lstat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrSymlinkNotAllowed, userID)
	}
	if info.Size() > maxDocumentSize {
		return Document{}, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, userID, info.Size())
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return Document{}, err
	}
	return decodeDocument(data)
}

func (s *JSONFileStore) Close() error { return nil }
