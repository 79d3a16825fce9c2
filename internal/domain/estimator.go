package domain

import (
	"context"
	"math"
	"strings"
)

const tokensPerMillion = 1_000_000.0

// FormulaConfig carries the named constants the cost formulas depend on,
// so they are defined once and injectable for tests.
type FormulaConfig struct {
	// OutputTokenRatio is the fixed output:input token ratio applied when
	// output tokens are included. Deliberately not user-configurable.
	OutputTokenRatio float64

	// BaselineRuntimeHours normalizes server runtime: 720 hours is a
	// 30-day month at 24/7.
	BaselineRuntimeHours float64

	// DaysPerMonth is the fixed month length used for daily server costs
	// and for default estimate windows.
	DaysPerMonth float64

	// DefaultStorageGB and DefaultTrafficGB fill omitted server inputs.
	DefaultStorageGB float64
	DefaultTrafficGB float64
}

// DefaultFormulaConfig returns the production constants.
func DefaultFormulaConfig() FormulaConfig {
	return FormulaConfig{
		OutputTokenRatio:     0.25,
		BaselineRuntimeHours: 720,
		DaysPerMonth:         30,
		DefaultStorageGB:     20,
		DefaultTrafficGB:     50,
	}
}

// Estimator computes deterministic cost estimates from the pricing store.
// All methods are read-only with respect to the store and safe for
// concurrent use.
type Estimator struct {
	store    DocumentStore
	formulas FormulaConfig
}

// NewEstimator creates a new estimator backed by the given store.
func NewEstimator(store DocumentStore, formulas FormulaConfig) *Estimator {
	return &Estimator{
		store:    store,
		formulas: formulas,
	}
}

// EstimateLLM computes monthly and daily LLM API costs for one workload.
func (e *Estimator) EstimateLLM(ctx context.Context, in LLMCostInput) (*LLMCostResult, error) {
	doc, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return e.estimateLLM(doc, in)
}

// estimateLLM runs the LLM formula against an already loaded document so
// aggregate estimates resolve every agent from one consistent snapshot.
func (e *Estimator) estimateLLM(doc *Document, in LLMCostInput) (*LLMCostResult, error) {
	if in.Model == "" {
		return nil, NewValidationError("model", "must not be empty")
	}

	pricing, err := doc.LookupModel(in.Model)
	if err != nil {
		return nil, err
	}

	if in.AvgTokensPerCall <= 0 {
		return nil, NewValidationError("avg_tokens_per_call", "must be greater than zero (got %v)", in.AvgTokensPerCall)
	}
	if in.CallsPerDay <= 0 {
		return nil, NewValidationError("calls_per_day", "must be greater than zero (got %v)", in.CallsPerDay)
	}

	days, err := coerceDays(in.Days, e.formulas.DaysPerMonth)
	if err != nil {
		return nil, err
	}

	includeOutput := true
	if in.IncludeOutput != nil {
		includeOutput = *in.IncludeOutput
	}
	retryRate := math.Max(0, in.RetryRate)

	totalInputTokens := in.AvgTokensPerCall * in.CallsPerDay * days
	outputRatio := 0.0
	if includeOutput {
		outputRatio = e.formulas.OutputTokenRatio
	}
	totalOutputTokens := totalInputTokens * outputRatio

	totalInputTokens *= 1 + retryRate
	totalOutputTokens *= 1 + retryRate

	inputCost := totalInputTokens / tokensPerMillion * pricing.InputPer1M
	outputCost := totalOutputTokens / tokensPerMillion * pricing.OutputPer1M
	monthlyCost := inputCost + outputCost

	return &LLMCostResult{
		MonthlyCost:   monthlyCost,
		DailyCost:     monthlyCost / days,
		InputCost:     inputCost,
		OutputCost:    outputCost,
		TotalTokens:   totalInputTokens + totalOutputTokens,
		PricePer1M:    pricing.InputPer1M,
		Currency:      doc.ResolveCurrency(pricing.Currency),
		PricingSource: pricing.Source,
		RetrievedAt:   pricing.RetrievedAt,
		Metadata:      doc.Metadata,
	}, nil
}

// EstimateServer computes monthly and daily hosting costs for one
// (provider, plan) pair. The base price scales with runtime hours against
// the 720-hour baseline; the daily cost always divides by a fixed 30-day
// month regardless of runtime.
func (e *Estimator) EstimateServer(ctx context.Context, in ServerCostInput) (*ServerCostResult, error) {
	doc, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	if in.Provider == "" {
		return nil, NewValidationError("provider", "must not be empty")
	}
	if in.Plan == "" {
		return nil, NewValidationError("plan", "must not be empty")
	}

	pricing, err := doc.LookupServerPlan(in.Provider, in.Plan)
	if err != nil {
		return nil, err
	}

	runtimeHours := e.formulas.BaselineRuntimeHours
	if in.RuntimeHours != nil {
		runtimeHours = *in.RuntimeHours
	}
	if runtimeHours <= 0 {
		return nil, NewValidationError("runtime_hours", "must be greater than zero (got %v)", runtimeHours)
	}

	storageGB := e.formulas.DefaultStorageGB
	if in.StorageGB != nil {
		storageGB = math.Max(0, *in.StorageGB)
	}
	trafficGB := e.formulas.DefaultTrafficGB
	if in.TrafficGB != nil {
		trafficGB = math.Max(0, *in.TrafficGB)
	}

	runtimeRatio := runtimeHours / e.formulas.BaselineRuntimeHours
	adjustedBase := pricing.BaseMonthly * runtimeRatio
	storageCost := storageGB * pricing.StorageGBPrice
	trafficCost := trafficGB * pricing.TrafficGBPrice
	monthlyCost := adjustedBase + storageCost + trafficCost

	return &ServerCostResult{
		MonthlyCost:   monthlyCost,
		DailyCost:     monthlyCost / e.formulas.DaysPerMonth,
		BaseCost:      adjustedBase,
		StorageCost:   storageCost,
		TrafficCost:   trafficCost,
		Currency:      doc.ResolveCurrency(pricing.Currency),
		PricingSource: pricing.Source,
		RetrievedAt:   pricing.RetrievedAt,
		Metadata:      doc.Metadata,
	}, nil
}

// EstimateMultiAgent aggregates LLM costs for an ordered roster of agents.
// Any single failing agent fails the whole aggregate; no partial results.
func (e *Estimator) EstimateMultiAgent(ctx context.Context, in MultiAgentCostInput) (*MultiAgentCostResult, error) {
	if len(in.Agents) == 0 {
		return nil, &ValidationError{
			Fields:  []string{"agents"},
			Message: "agents: at least one agent definition is required",
		}
	}

	days, err := coerceDays(in.Days, e.formulas.DaysPerMonth)
	if err != nil {
		return nil, err
	}

	doc, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(in.Agents))
	breakdown := make([]AgentCost, 0, len(in.Agents))
	snapshot := make(map[string]ModelProvenance, len(in.Agents))
	total := 0.0

	for i, agent := range in.Agents {
		if err := validateAgent(agent); err != nil {
			return nil, err
		}
		if _, dup := seen[agent.Name]; dup {
			return nil, NewValidationError("agents", "duplicate agent name %q at index %d", agent.Name, i)
		}
		seen[agent.Name] = struct{}{}

		result, err := e.estimateLLM(doc, LLMCostInput{
			Model:            agent.Model,
			AvgTokensPerCall: agent.AvgTokensPerCall,
			CallsPerDay:      agent.CallsPerDay,
			Days:             days,
			IncludeOutput:    agent.IncludeOutput,
			RetryRate:        agent.RetryRate,
		})
		if err != nil {
			return nil, err
		}

		breakdown = append(breakdown, AgentCost{Name: agent.Name, Cost: result.MonthlyCost})
		total += result.MonthlyCost

		// First agent using a model wins the provenance snapshot.
		if _, exists := snapshot[agent.Model]; !exists {
			snapshot[agent.Model] = ModelProvenance{
				Source:      result.PricingSource,
				RetrievedAt: result.RetrievedAt,
			}
		}
	}

	return &MultiAgentCostResult{
		TotalMonthlyCost: total,
		DailyCost:        total / days,
		Agents:           breakdown,
		Metadata:         snapshot,
	}, nil
}

// Estimate dispatches a tagged CostInput to the matching formula and wraps
// the typed result in a uniform shape for orchestration callers.
func (e *Estimator) Estimate(ctx context.Context, in CostInput) (*CostResult, error) {
	switch in.Type {
	case CostTypeLLM:
		if in.LLM == nil {
			return nil, NewValidationError("llm", "parameters are required for type %q", in.Type)
		}
		result, err := e.EstimateLLM(ctx, *in.LLM)
		if err != nil {
			return nil, err
		}
		return &CostResult{
			Type:        in.Type,
			MonthlyCost: result.MonthlyCost,
			DailyCost:   result.DailyCost,
			Currency:    result.Currency,
			Breakdown:   []BreakdownItem{{Component: "llm_cost", Cost: result.MonthlyCost}},
			Formula:     "Monthly Cost = (tokens/call * calls/day * days / 1M) * price_per_1M",
			LLM:         result,
		}, nil

	case CostTypeServer:
		if in.Server == nil {
			return nil, NewValidationError("server", "parameters are required for type %q", in.Type)
		}
		result, err := e.EstimateServer(ctx, *in.Server)
		if err != nil {
			return nil, err
		}
		return &CostResult{
			Type:        in.Type,
			MonthlyCost: result.MonthlyCost,
			DailyCost:   result.DailyCost,
			Currency:    result.Currency,
			Breakdown: []BreakdownItem{
				{Component: "base_plan", Cost: result.BaseCost},
				{Component: "storage", Cost: result.StorageCost},
				{Component: "traffic", Cost: result.TrafficCost},
			},
			Formula: "Monthly Cost = base_plan + storage + traffic",
			Server:  result,
		}, nil

	case CostTypeMultiAgent:
		if in.MultiAgent == nil {
			return nil, NewValidationError("multi_agent", "parameters are required for type %q", in.Type)
		}
		result, err := e.EstimateMultiAgent(ctx, *in.MultiAgent)
		if err != nil {
			return nil, err
		}
		breakdown := make([]BreakdownItem, 0, len(result.Agents))
		for _, agent := range result.Agents {
			breakdown = append(breakdown, BreakdownItem{Component: agent.Name, Cost: agent.Cost})
		}
		currency := DefaultCurrency
		if doc, loadErr := e.store.Load(ctx); loadErr == nil {
			currency = doc.ResolveCurrency("")
		}
		return &CostResult{
			Type:        in.Type,
			MonthlyCost: result.TotalMonthlyCost,
			DailyCost:   result.DailyCost,
			Currency:    currency,
			Breakdown:   breakdown,
			Formula:     "Workflow Cost = sum of all agent costs",
			MultiAgent:  result,
		}, nil

	default:
		return nil, NewValidationError("type", "unknown cost type %q", in.Type)
	}
}

// coerceDays applies the default estimate window when days is omitted and
// truncates fractional values to a whole number of days.
func coerceDays(days, fallback float64) (float64, error) {
	if days == 0 {
		return fallback, nil
	}
	truncated := math.Trunc(days)
	if truncated <= 0 {
		return 0, NewValidationError("days", "must be greater than zero (got %v)", days)
	}
	return truncated, nil
}

func validateAgent(agent AgentSpec) error {
	missing := make([]string, 0, 4)
	if agent.Name == "" {
		missing = append(missing, "name")
	}
	if agent.Model == "" {
		missing = append(missing, "model")
	}
	if agent.AvgTokensPerCall == 0 {
		missing = append(missing, "avg_tokens_per_call")
	}
	if agent.CallsPerDay == 0 {
		missing = append(missing, "calls_per_day")
	}
	if len(missing) > 0 {
		return &ValidationError{
			Fields:  missing,
			Message: "agent entry missing fields: " + strings.Join(missing, ", "),
		}
	}
	return nil
}
