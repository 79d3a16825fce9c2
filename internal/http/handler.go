package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davidbz/tokentracker/internal/domain"
	"github.com/davidbz/tokentracker/internal/observability"
)

// manualEntrySource marks records written through the upsert endpoints
// rather than by a refresh provider.
const manualEntrySource = "manual_entry"

// Handler handles HTTP requests.
type Handler struct {
	estimator *domain.Estimator
	refresher *domain.Refresher
	store     domain.DocumentStore
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(estimator *domain.Estimator, refresher *domain.Refresher, store domain.DocumentStore) *Handler {
	return &Handler{
		estimator: estimator,
		refresher: refresher,
		store:     store,
	}
}

// HandleEstimate processes cost estimate requests.
func (h *Handler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input domain.CostInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	// Inject estimate details into context for downstream logging.
	ctx = observability.WithCostType(ctx, string(input.Type))
	if input.LLM != nil {
		ctx = observability.WithModel(ctx, input.LLM.Model)
	}

	logger := observability.FromContext(ctx)
	logger.Info("estimate request received",
		zap.String("cost_type", string(input.Type)),
	)

	result, err := h.estimator.Estimate(ctx, input)
	if err != nil {
		logger.Error("estimate failed", zap.Error(err))
		writeError(w, err)
		return
	}

	logger.Info("estimate succeeded",
		zap.Float64("monthly_cost", result.MonthlyCost),
		zap.String("currency", result.Currency),
	)

	writeJSON(w, http.StatusOK, result)
}

// HandlePricing returns the whole pricing document.
func (h *Handler) HandlePricing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doc, err := h.store.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// HandleRefresh triggers a pricing refresh cycle. The force query
// parameter bypasses the freshness check.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	force := r.URL.Query().Get("force") == "true"

	logger := observability.FromContext(ctx)
	logger.Info("refresh requested", zap.Bool("force", force))

	doc, err := h.refresher.Update(ctx, force)
	if err != nil {
		logger.Error("refresh failed", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metadata": doc.Metadata,
		"models":   len(doc.Pricing.Models),
		"servers":  len(doc.Pricing.Servers),
	})
}

// modelUpsertRequest is the PUT body for a model pricing record.
type modelUpsertRequest struct {
	InputPer1M  *float64 `json:"input_per_1m"`
	OutputPer1M *float64 `json:"output_per_1m"`
	Currency    string   `json:"currency,omitempty"`
	Source      string   `json:"source,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// HandleModelRecord serves /v1/pricing/models/{name}: GET looks a record
// up, PUT upserts one manually.
func (h *Handler) HandleModelRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := strings.TrimPrefix(r.URL.Path, "/v1/pricing/models/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "model name required", http.StatusBadRequest)
		return
	}
	ctx = observability.WithModel(ctx, name)

	switch r.Method {
	case http.MethodGet:
		doc, err := h.store.Load(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		pricing, err := doc.LookupModel(name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pricing)

	case http.MethodPut:
		var req modelUpsertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if req.InputPer1M == nil || req.OutputPer1M == nil {
			writeError(w, &domain.ValidationError{
				Fields:  []string{"input_per_1m", "output_per_1m"},
				Message: "both input_per_1m and output_per_1m are required",
			})
			return
		}

		record := domain.ModelPricing{
			InputPer1M:  *req.InputPer1M,
			OutputPer1M: *req.OutputPer1M,
			Currency:    req.Currency,
			Source:      req.Source,
			RetrievedAt: time.Now().UTC().Format(time.RFC3339),
			Notes:       req.Notes,
		}
		if record.Source == "" {
			record.Source = manualEntrySource
		}

		doc, err := h.store.Load(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		doc.Pricing.Models[name] = record
		if err := h.store.Replace(ctx, doc); err != nil {
			writeError(w, err)
			return
		}

		observability.FromContext(ctx).Info("model pricing saved",
			zap.Float64("input_per_1m", record.InputPer1M),
			zap.Float64("output_per_1m", record.OutputPer1M),
		)
		writeJSON(w, http.StatusOK, record)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// serverUpsertRequest is the PUT body for a server pricing record.
type serverUpsertRequest struct {
	BaseMonthly    *float64 `json:"base_monthly"`
	StorageGBPrice float64  `json:"storage_gb_price,omitempty"`
	TrafficGBPrice float64  `json:"traffic_gb_price,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	Source         string   `json:"source,omitempty"`
}

// HandleServerRecord serves /v1/pricing/servers/{provider} (GET: list the
// provider's plans) and /v1/pricing/servers/{provider}/{plan} (GET one
// plan, PUT upsert).
func (h *Handler) HandleServerRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rest := strings.TrimPrefix(r.URL.Path, "/v1/pricing/servers/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		http.Error(w, "provider required", http.StatusBadRequest)
		return
	}
	provider := parts[0]

	doc, err := h.store.Load(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		plans, exists := doc.Pricing.Servers[provider]
		if !exists {
			writeError(w, &domain.NotFoundError{
				Kind:       "provider",
				Identifier: provider,
				Known:      knownProviders(doc),
			})
			return
		}
		writeJSON(w, http.StatusOK, plans)
		return
	}

	plan := parts[1]
	switch r.Method {
	case http.MethodGet:
		pricing, err := doc.LookupServerPlan(provider, plan)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pricing)

	case http.MethodPut:
		var req serverUpsertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if req.BaseMonthly == nil {
			writeError(w, domain.NewValidationError("base_monthly", "is required"))
			return
		}

		record := domain.ServerPricing{
			BaseMonthly:    *req.BaseMonthly,
			StorageGBPrice: req.StorageGBPrice,
			TrafficGBPrice: req.TrafficGBPrice,
			Currency:       req.Currency,
			Source:         req.Source,
			RetrievedAt:    time.Now().UTC().Format(time.RFC3339),
		}
		if record.Source == "" {
			record.Source = manualEntrySource
		}

		if doc.Pricing.Servers[provider] == nil {
			doc.Pricing.Servers[provider] = make(map[string]domain.ServerPricing)
		}
		doc.Pricing.Servers[provider][plan] = record
		if err := h.store.Replace(ctx, doc); err != nil {
			writeError(w, err)
			return
		}

		observability.FromContext(ctx).Info("server pricing saved",
			zap.String("provider", provider),
			zap.String("plan", plan),
			zap.Float64("base_monthly", record.BaseMonthly),
		)
		writeJSON(w, http.StatusOK, record)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

func knownProviders(doc *domain.Document) []string {
	names := make([]string, 0, len(doc.Pricing.Servers))
	for name := range doc.Pricing.Servers {
		names = append(names, name)
	}
	return names
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsRefresh(err):
		status = http.StatusBadGateway
	case domain.IsStorage(err):
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
