// Package file persists the pricing document as a flat JSON file. Writes
// go through a temp file and rename so readers never observe a partially
// written document.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/davidbz/tokentracker/internal/domain"
	"github.com/davidbz/tokentracker/internal/observability"
)

// Store is a JSON-file-backed document store.
type Store struct {
	path     string
	currency string
	mu       sync.Mutex
}

// NewStore creates a file store at path. currency seeds the metadata of a
// brand-new document.
func NewStore(path, currency string) *Store {
	return &Store{
		path:     path,
		currency: currency,
	}
}

// Load reads the current document. A missing file yields a fresh empty
// canonical document (first run); unreadable or corrupt content is a
// StorageError. Documents in the legacy llm_models/cloud_providers shape
// are migrated to the canonical shape and persisted back once.
func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewDocument(s.currency), nil
		}
		return nil, &domain.StorageError{Op: "read", Err: err}
	}

	var disk diskDocument
	if err := json.Unmarshal(data, &disk); err != nil {
		return nil, &domain.StorageError{Op: "decode", Err: err}
	}

	doc := disk.canonical(s.currency)

	if disk.isLegacy() {
		migrateLegacy(&disk, doc)
		// One-time migration: persist the canonical shape so the legacy
		// keys disappear from disk.
		if err := s.write(doc); err != nil {
			return nil, err
		}
		observability.FromContext(ctx).Info("migrated legacy pricing document",
			observability.String("path", s.path),
			observability.Int("models", len(doc.Pricing.Models)),
			observability.Int("providers", len(doc.Pricing.Servers)),
		)
	}

	return doc, nil
}

// Replace atomically swaps the whole document.
func (s *Store) Replace(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(doc)
}

func (s *Store) write(doc *domain.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "encode", Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.StorageError{Op: "write", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".pricing-*.json")
	if err != nil {
		return &domain.StorageError{Op: "write", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.StorageError{Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.StorageError{Op: "write", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &domain.StorageError{Op: "write", Err: fmt.Errorf("rename: %w", err)}
	}
	return nil
}

// diskDocument is the on-disk superset: the canonical document plus the
// legacy top-level keys written by the old database tools.
type diskDocument struct {
	Metadata domain.Metadata `json:"metadata"`
	Pricing  domain.Pricing  `json:"pricing"`
	Defaults domain.Defaults `json:"defaults"`

	LLMModels      map[string]legacyModel            `json:"llm_models,omitempty"`
	CloudProviders map[string]map[string]legacyPlan  `json:"cloud_providers,omitempty"`
}

// legacyModel is the old per-model record (price_input/price_output were
// already per 1M tokens).
type legacyModel struct {
	PriceInput  float64 `json:"price_input"`
	PriceOutput float64 `json:"price_output"`
	Currency    string  `json:"currency"`
	LastUpdated string  `json:"last_updated"`
	Source      string  `json:"source"`
}

// legacyPlan is the old per-provider record, nested under a plan key
// (usually "default").
type legacyPlan struct {
	PriceBase    float64 `json:"price_base"`
	PriceStorage float64 `json:"price_storage"`
	PriceTraffic float64 `json:"price_traffic"`
	Currency     string  `json:"currency"`
	LastUpdated  string  `json:"last_updated"`
	Source       string  `json:"source"`
}

func (d *diskDocument) isLegacy() bool {
	return len(d.LLMModels) > 0 || len(d.CloudProviders) > 0
}

// canonical builds a Document from the canonical sections, filling gaps a
// hand-edited or legacy file may have.
func (d *diskDocument) canonical(currency string) *domain.Document {
	doc := &domain.Document{
		Metadata: d.Metadata,
		Pricing:  d.Pricing,
		Defaults: d.Defaults,
	}
	if doc.Metadata.Currency == "" {
		doc.Metadata.Currency = currency
		if doc.Metadata.Currency == "" {
			doc.Metadata.Currency = domain.DefaultCurrency
		}
	}
	if doc.Pricing.Models == nil {
		doc.Pricing.Models = make(map[string]domain.ModelPricing)
	}
	if doc.Pricing.Servers == nil {
		doc.Pricing.Servers = make(map[string]map[string]domain.ServerPricing)
	}
	if doc.Defaults == (domain.Defaults{}) {
		doc.Defaults = domain.NewDocument(doc.Metadata.Currency).Defaults
	}
	return doc
}

// migrateLegacy folds legacy entries into the canonical maps. Canonical
// entries win on key collisions.
func migrateLegacy(disk *diskDocument, doc *domain.Document) {
	for name, legacy := range disk.LLMModels {
		if _, exists := doc.Pricing.Models[name]; exists {
			continue
		}
		doc.Pricing.Models[name] = domain.ModelPricing{
			InputPer1M:  legacy.PriceInput,
			OutputPer1M: legacy.PriceOutput,
			Currency:    legacy.Currency,
			Source:      legacy.Source,
			RetrievedAt: legacy.LastUpdated,
		}
	}

	for provider, plans := range disk.CloudProviders {
		for plan, legacy := range plans {
			if _, exists := doc.Pricing.Servers[provider][plan]; exists {
				continue
			}
			if doc.Pricing.Servers[provider] == nil {
				doc.Pricing.Servers[provider] = make(map[string]domain.ServerPricing)
			}
			doc.Pricing.Servers[provider][plan] = domain.ServerPricing{
				BaseMonthly:    legacy.PriceBase,
				StorageGBPrice: legacy.PriceStorage,
				TrafficGBPrice: legacy.PriceTraffic,
				Currency:       legacy.Currency,
				Source:         legacy.Source,
				RetrievedAt:    legacy.LastUpdated,
			}
		}
	}
}
