package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var documentsBucket = []byte("documents")

// BoltStore keeps documents in a single bbolt file.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create bolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(_ context.Context, userID string) (Document, error) {
	if err := validateUserID(userID); err != nil {
		return Document{}, err
	}

	var doc Document
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(documentsBucket).Get([]byte(userID))
		if data == nil {
			return ErrDocumentNotFound
		}
		var err error
		doc, err = decodeDocument(data)
		return err
	})
	return doc, err
}

func (s *BoltStore) Save(_ context.Context, doc Document) error {
	doc, err := stamp(doc)
	if err != nil {
		return err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).Put([]byte(doc.UserID), data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
