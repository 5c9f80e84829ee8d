package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/seekhub/translator/internal/model"
)

const documentKeyPrefix = "document:"

// DocumentStore keeps the metadata of uploaded documents.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
}

// RedisDocumentStore stores documents as JSON under document:<id>.
type RedisDocumentStore struct {
	rdb *redis.Client
}

func NewRedisDocumentStore(rdb *redis.Client) *RedisDocumentStore {
	return &RedisDocumentStore{rdb: rdb}
}

func (s *RedisDocumentStore) SaveDocument(ctx context.Context, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return s.rdb.Set(ctx, documentKeyPrefix+doc.ID, data, 0).Err()
}

func (s *RedisDocumentStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	data, err := s.rdb.Get(ctx, documentKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrDocumentNotFound
		}
		return nil, err
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
	}
	return &doc, nil
}

// MemoryDocumentStore is the process-local variant used in tests and memory-only setups.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]model.Document)}
}

func (s *MemoryDocumentStore) SaveDocument(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

func (s *MemoryDocumentStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, model.ErrDocumentNotFound
	}
	return &doc, nil
}
