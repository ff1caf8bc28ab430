// Package storage persists the document held by the authority for each
// session user id.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrStorageWrite      = errors.New("failed to write document")
	ErrInvalidUserID     = errors.New("invalid user id")
	ErrFileTooLarge      = errors.New("document file too large")
	ErrSymlinkNotAllowed = errors.New("symlinks not allowed for document files")
)

const maxDocumentSize = 10 * 1024 * 1024 // 10MB

var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Document is the last content written for one user id.
type Document struct {
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store interface {
	// Load returns ErrDocumentNotFound when nothing was saved for userID.
	Load(ctx context.Context, userID string) (Document, error)
	Save(ctx context.Context, doc Document) error
	Close() error
}

func validateUserID(id string) error {
	if !userIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, id)
	}
	return nil
}

func encodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// stamp validates doc and fills UpdatedAt when unset.
func stamp(doc Document) (Document, error) {
	if err := validateUserID(doc.UserID); err != nil {
		return Document{}, err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	return doc, nil
}

func DefaultBaseDir() string {
	if dir := os.Getenv("MERMAID_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mermaid-visualizer"
	}
	return filepath.Join(home, ".mermaid-visualizer")
}

// Kind names a Store implementation.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindFile     Kind = "file"
	KindBolt     Kind = "bolt"
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
)

type Options struct {
	Kind        Kind
	BaseDir     string
	RedisAddr   string
	DatabaseURL string
}

// Open builds the store selected by opts.Kind.
func Open(ctx context.Context, opts Options) (Store, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}

	switch opts.Kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindFile:
		return NewJSONFileStore(baseDir)
	case KindBolt:
		return NewBoltStore(filepath.Join(baseDir, "documents.db"))
	case KindRedis:
		return NewRedisStore(ctx, opts.RedisAddr)
	case KindPostgres:
		return NewPostgresStore(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}
