package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/tokentracker/internal/domain"
)

func TestDocument_Lookups(t *testing.T) {
	doc := testDocument()

	t.Run("unknown model error lists known models sorted", func(t *testing.T) {
		_, err := doc.LookupModel("mystery")
		require.Error(t, err)

		var notFound *domain.NotFoundError
		require.ErrorAs(t, err, &notFound)
		require.Equal(t, []string{"gpt-4o", "model-x"}, notFound.Known)
		require.Contains(t, err.Error(), "known: gpt-4o, model-x")
	})

	t.Run("plan identifier includes the provider", func(t *testing.T) {
		_, err := doc.LookupServerPlan("aws", "t3.large")
		require.Error(t, err)

		var notFound *domain.NotFoundError
		require.ErrorAs(t, err, &notFound)
		require.Equal(t, "aws/t3.large", notFound.Identifier)
	})
}

func TestDocument_ResolveCurrency(t *testing.T) {
	doc := domain.NewDocument("EUR")

	require.Equal(t, "CHF", doc.ResolveCurrency("CHF"))
	require.Equal(t, "EUR", doc.ResolveCurrency(""))

	doc.Metadata.Currency = ""
	require.Equal(t, "USD", doc.ResolveCurrency(""))
}

func TestErrorTaxonomy(t *testing.T) {
	validation := domain.NewValidationError("days", "must be greater than zero (got %v)", -1)
	require.True(t, domain.IsValidation(validation))
	require.Contains(t, validation.Error(), "days")

	notFound := &domain.NotFoundError{Kind: "model", Identifier: "x"}
	require.True(t, domain.IsNotFound(notFound))
	require.False(t, domain.IsValidation(notFound))

	refresh := &domain.RefreshError{Stage: "fetch", Err: validation}
	require.True(t, domain.IsRefresh(refresh))
	// Wrapped causes stay reachable through the taxonomy helpers.
	require.True(t, domain.IsValidation(refresh))

	storage := &domain.StorageError{Op: "read", Err: notFound}
	require.True(t, domain.IsStorage(storage))
	require.ErrorIs(t, storage, notFound)
}
