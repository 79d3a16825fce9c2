package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/tokentracker/internal/domain"
)

type fakeStore struct {
	doc      *domain.Document
	replaces int
}

func (s *fakeStore) Load(_ context.Context) (*domain.Document, error) { return s.doc, nil }

func (s *fakeStore) Replace(_ context.Context, doc *domain.Document) error {
	s.replaces++
	s.doc = doc
	return nil
}

type fakeProvider struct {
	payload *domain.RefreshPayload
}

func (p *fakeProvider) FetchPricing(_ context.Context, _ domain.Metadata) (*domain.RefreshPayload, error) {
	return p.payload, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func f64(v float64) *float64 { return &v }

func seedDocument() *domain.Document {
	doc := domain.NewDocument("USD")
	doc.Metadata.LastSuccessfulUpdate = time.Now().UTC().Format(time.RFC3339)
	doc.Pricing.Models["gpt-4o-mini"] = domain.ModelPricing{
		InputPer1M:  0.15,
		OutputPer1M: 0.60,
		Currency:    "USD",
		Source:      "seed",
		RetrievedAt: doc.Metadata.LastSuccessfulUpdate,
	}
	doc.Pricing.Servers["aws"] = map[string]domain.ServerPricing{
		"t2.micro": {BaseMonthly: 8.5, StorageGBPrice: 0.1, TrafficGBPrice: 0.09},
	}
	return doc
}

func newTestHandler(store domain.DocumentStore, provider domain.RefreshProvider) *Handler {
	estimator := domain.NewEstimator(store, domain.DefaultFormulaConfig())
	refresher := domain.NewRefresher(store, provider,
		domain.NewFreshnessPolicy(24*time.Hour, nil),
		domain.RefreshConfig{ProviderTimeout: time.Second}, nil)
	return NewHandler(estimator, refresher, store)
}

func TestHandleEstimate(t *testing.T) {
	store := &fakeStore{doc: seedDocument()}
	handler := newTestHandler(store, &fakeProvider{})

	t.Run("llm estimate returns costs and provenance", func(t *testing.T) {
		body := `{
			"type": "llm_cost",
			"llm": {"model": "gpt-4o-mini", "avg_tokens_per_call": 2000, "calls_per_day": 50, "days": 30}
		}`
		req := httptest.NewRequest(http.MethodPost, "/v1/estimates", strings.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleEstimate(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var result domain.CostResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		require.Equal(t, domain.CostTypeLLM, result.Type)
		require.NotNil(t, result.LLM)
		// 3M input tokens at $0.15/1M, plus 0.75M output tokens at $0.60/1M.
		require.InDelta(t, 0.45, result.LLM.InputCost, 1e-9)
		require.InDelta(t, 0.45, result.LLM.OutputCost, 1e-9)
		require.InDelta(t, 0.90, result.MonthlyCost, 1e-9)
		require.Equal(t, "USD", result.Currency)
	})

	t.Run("unknown model maps to 404", func(t *testing.T) {
		body := `{"type": "llm_cost", "llm": {"model": "nope", "avg_tokens_per_call": 100, "calls_per_day": 1}}`
		req := httptest.NewRequest(http.MethodPost, "/v1/estimates", strings.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleEstimate(w, req)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("validation failure maps to 400", func(t *testing.T) {
		body := `{"type": "llm_cost", "llm": {"model": "gpt-4o-mini", "avg_tokens_per_call": -1, "calls_per_day": 1}}`
		req := httptest.NewRequest(http.MethodPost, "/v1/estimates", strings.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleEstimate(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed JSON maps to 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/estimates", strings.NewReader("{not json"))
		w := httptest.NewRecorder()

		handler.HandleEstimate(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("GET is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/estimates", nil)
		w := httptest.NewRecorder()

		handler.HandleEstimate(w, req)
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestHandlePricing(t *testing.T) {
	store := &fakeStore{doc: seedDocument()}
	handler := newTestHandler(store, &fakeProvider{})

	req := httptest.NewRequest(http.MethodGet, "/v1/pricing", nil)
	w := httptest.NewRecorder()

	handler.HandlePricing(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var doc domain.Document
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	require.Contains(t, doc.Pricing.Models, "gpt-4o-mini")
}

func TestHandleRefresh(t *testing.T) {
	provider := &fakeProvider{payload: &domain.RefreshPayload{
		Models: []domain.ModelEntry{
			{Name: "gpt-4o", InputPer1M: f64(2.5), OutputPer1M: f64(10)},
		},
	}}

	t.Run("fresh document without force is a no-op", func(t *testing.T) {
		store := &fakeStore{doc: seedDocument()}
		handler := newTestHandler(store, provider)

		req := httptest.NewRequest(http.MethodPost, "/v1/pricing/refresh", nil)
		w := httptest.NewRecorder()

		handler.HandleRefresh(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Zero(t, store.replaces)
	})

	t.Run("force replaces the pricing section", func(t *testing.T) {
		store := &fakeStore{doc: seedDocument()}
		handler := newTestHandler(store, provider)

		req := httptest.NewRequest(http.MethodPost, "/v1/pricing/refresh?force=true", nil)
		w := httptest.NewRecorder()

		handler.HandleRefresh(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, 1, store.replaces)
		require.Contains(t, store.doc.Pricing.Models, "gpt-4o")
		require.NotContains(t, store.doc.Pricing.Models, "gpt-4o-mini")
	})
}

func TestHandleModelRecord(t *testing.T) {
	store := &fakeStore{doc: seedDocument()}
	handler := newTestHandler(store, &fakeProvider{})

	t.Run("GET returns the record", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/pricing/models/gpt-4o-mini", nil)
		w := httptest.NewRecorder()

		handler.HandleModelRecord(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var record domain.ModelPricing
		require.NoError(t, json.NewDecoder(w.Body).Decode(&record))
		require.InDelta(t, 0.15, record.InputPer1M, 1e-9)
	})

	t.Run("GET unknown model is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/pricing/models/missing", nil)
		w := httptest.NewRecorder()

		handler.HandleModelRecord(w, req)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("PUT upserts with a manual-entry source", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"input_per_1m":  1.25,
			"output_per_1m": 5.0,
		})
		req := httptest.NewRequest(http.MethodPut, "/v1/pricing/models/my-fine-tune", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleModelRecord(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		saved := store.doc.Pricing.Models["my-fine-tune"]
		require.InDelta(t, 1.25, saved.InputPer1M, 1e-9)
		require.Equal(t, "manual_entry", saved.Source)
		require.NotEmpty(t, saved.RetrievedAt)
	})

	t.Run("PUT without prices is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/pricing/models/my-fine-tune",
			strings.NewReader(`{"input_per_1m": 1.0}`))
		w := httptest.NewRecorder()

		handler.HandleModelRecord(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing name is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/pricing/models/", nil)
		w := httptest.NewRecorder()

		handler.HandleModelRecord(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleServerRecord(t *testing.T) {
	store := &fakeStore{doc: seedDocument()}
	handler := newTestHandler(store, &fakeProvider{})

	t.Run("GET provider lists its plans", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/pricing/servers/aws", nil)
		w := httptest.NewRecorder()

		handler.HandleServerRecord(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var plans map[string]domain.ServerPricing
		require.NoError(t, json.NewDecoder(w.Body).Decode(&plans))
		require.Contains(t, plans, "t2.micro")
	})

	t.Run("GET unknown provider is 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/pricing/servers/linode", nil)
		w := httptest.NewRecorder()

		handler.HandleServerRecord(w, req)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GET one plan", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/pricing/servers/aws/t2.micro", nil)
		w := httptest.NewRecorder()

		handler.HandleServerRecord(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var plan domain.ServerPricing
		require.NoError(t, json.NewDecoder(w.Body).Decode(&plan))
		require.InDelta(t, 8.5, plan.BaseMonthly, 1e-9)
	})

	t.Run("PUT upserts a plan under a new provider", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"base_monthly":     4.35,
			"storage_gb_price": 0.05,
		})
		req := httptest.NewRequest(http.MethodPut, "/v1/pricing/servers/hetzner/cx11", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.HandleServerRecord(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		saved := store.doc.Pricing.Servers["hetzner"]["cx11"]
		require.InDelta(t, 4.35, saved.BaseMonthly, 1e-9)
		require.Equal(t, "manual_entry", saved.Source)
	})

	t.Run("PUT without base_monthly is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/pricing/servers/hetzner/cx11",
			strings.NewReader(`{"storage_gb_price": 0.05}`))
		w := httptest.NewRecorder()

		handler.HandleServerRecord(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	handler := newTestHandler(&fakeStore{doc: domain.NewDocument("USD")}, &fakeProvider{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
