package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/tokentracker/internal/domain"
)

type stubProvider struct {
	name string
}

func (p *stubProvider) FetchPricing(_ context.Context, _ domain.Metadata) (*domain.RefreshPayload, error) {
	return &domain.RefreshPayload{}, nil
}

func (p *stubProvider) Name() string { return p.name }

func TestRegistry_RegisterAndGet(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	provider := &stubProvider{name: "static"}
	require.NoError(t, reg.Register(ctx, provider))

	got, err := reg.Get(ctx, "static")
	require.NoError(t, err)
	require.Same(t, provider, got)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	require.Error(t, reg.Register(ctx, nil))
	require.Error(t, reg.Register(ctx, &stubProvider{name: ""}))

	require.NoError(t, reg.Register(ctx, &stubProvider{name: "openai"}))
	err := reg.Register(ctx, &stubProvider{name: "openai"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered")
}

func TestRegistry_GetUnknown(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	_, err := reg.Get(ctx, "missing")
	require.Error(t, err)

	_, err = reg.Get(ctx, "")
	require.Error(t, err)
}

func TestRegistry_List(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	names, err := reg.List(ctx)
	require.NoError(t, err)
	require.Empty(t, names)

	require.NoError(t, reg.Register(ctx, &stubProvider{name: "static"}))
	require.NoError(t, reg.Register(ctx, &stubProvider{name: "openai"}))

	names, err = reg.List(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"static", "openai"}, names)
}
