// Package redis persists the pricing document as a single JSON value in
// Redis, for deployments where estimator instances share one document
// instead of a local file.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/tokentracker/internal/domain"
)

// Store is a Redis-backed document store. The whole document lives under
// one key; Replace is a single SET, so readers always see a complete
// document.
type Store struct {
	client   *redis.Client
	key      string
	currency string
}

// NewStore creates a Redis store using the given client and key. currency
// seeds the metadata of a brand-new document.
func NewStore(client *redis.Client, key, currency string) *Store {
	return &Store{
		client:   client,
		key:      key,
		currency: currency,
	}
}

// Load reads the current document. A missing key yields a fresh empty
// canonical document (first run).
func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewDocument(s.currency), nil
		}
		return nil, &domain.StorageError{Op: "read", Err: fmt.Errorf("GET %s: %w", s.key, err)}
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &domain.StorageError{Op: "decode", Err: err}
	}

	if doc.Pricing.Models == nil {
		doc.Pricing.Models = make(map[string]domain.ModelPricing)
	}
	if doc.Pricing.Servers == nil {
		doc.Pricing.Servers = make(map[string]map[string]domain.ServerPricing)
	}

	return &doc, nil
}

// Replace atomically swaps the whole document.
func (s *Store) Replace(ctx context.Context, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return &domain.StorageError{Op: "encode", Err: err}
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return &domain.StorageError{Op: "write", Err: fmt.Errorf("SET %s: %w", s.key, err)}
	}
	return nil
}
