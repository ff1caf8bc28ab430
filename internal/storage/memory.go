package storage

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (Document, error) {
	if err := validateUserID(userID); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[userID]
	if !ok {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *MemoryStore) Save(_ context.Context, doc Document) error {
	doc, err := stamp(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.UserID] = doc
	return nil
}

func (s *MemoryStore) Close() error { return nil }
