package domain

import "context"

// DocumentStore persists the pricing document as a single flat record.
type DocumentStore interface {
	// Load returns the current document, seeding an empty canonical
	// document when none exists yet.
	Load(ctx context.Context) (*Document, error)

	// Replace atomically swaps the whole document for a new one.
	Replace(ctx context.Context, doc *Document) error
}

// RefreshProvider fetches fresh pricing entries from an external source.
type RefreshProvider interface {
	// FetchPricing returns a raw pricing payload given the current
	// document metadata.
	FetchPricing(ctx context.Context, meta Metadata) (*RefreshPayload, error)

	// Name returns the provider identifier.
	Name() string
}

// ProviderRegistry manages available refresh providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(ctx context.Context, provider RefreshProvider) error

	// Get retrieves a provider by name.
	Get(ctx context.Context, providerName string) (RefreshProvider, error)

	// List returns all available provider names.
	List(ctx context.Context) ([]string, error)
}
