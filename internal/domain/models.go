package domain

import "sort"

// DefaultCurrency is used whenever neither a pricing record nor the
// document metadata carries a currency.
const DefaultCurrency = "USD"

// Metadata is the document-level record driving the freshness policy.
// LastSuccessfulUpdate is an RFC 3339 timestamp; empty means the document
// has never been refreshed.
type Metadata struct {
	LastSuccessfulUpdate string `json:"last_successful_update,omitempty"`
	Currency             string `json:"currency,omitempty"`
}

// ModelPricing holds token pricing for a single LLM model, in currency
// units per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64 `json:"input_per_1m"`
	OutputPer1M float64 `json:"output_per_1m"`
	Currency    string  `json:"currency,omitempty"`
	Source      string  `json:"source,omitempty"`
	RetrievedAt string  `json:"retrieved_at,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// ServerPricing holds monthly hosting pricing for one (provider, plan) pair.
type ServerPricing struct {
	BaseMonthly    float64 `json:"base_monthly"`
	StorageGBPrice float64 `json:"storage_gb_price"`
	TrafficGBPrice float64 `json:"traffic_gb_price"`
	Currency       string  `json:"currency,omitempty"`
	Source         string  `json:"source,omitempty"`
	RetrievedAt    string  `json:"retrieved_at,omitempty"`
}

// Pricing is the pricing section of the document: model name -> record,
// and provider -> plan -> record.
type Pricing struct {
	Models  map[string]ModelPricing             `json:"models"`
	Servers map[string]map[string]ServerPricing `json:"servers"`
}

// LLMDefaults are the UX defaults for LLM cost collection. They are consumed
// by the conversational layer, not by the formulas, but live in the same
// document.
type LLMDefaults struct {
	AvgTokensPerCall float64 `json:"avg_tokens_per_call"`
	Days             int     `json:"days"`
	IncludeOutput    bool    `json:"include_output"`
	RetryRate        float64 `json:"retry_rate"`
}

// ServerDefaults are the UX defaults for server cost collection.
type ServerDefaults struct {
	RuntimeHours float64 `json:"runtime_hours"`
	StorageGB    float64 `json:"storage_gb"`
	TrafficGB    float64 `json:"traffic_gb"`
}

// MultiAgentDefaults are the UX defaults for multi-agent cost collection.
type MultiAgentDefaults struct {
	Days int `json:"days"`
}

// Defaults groups the per-cost-type default values.
type Defaults struct {
	LLMCost    LLMDefaults        `json:"llm_cost"`
	ServerCost ServerDefaults     `json:"server_cost"`
	MultiAgent MultiAgentDefaults `json:"multi_agent"`
}

// Document is the whole persisted pricing document. It is the single source
// of truth: estimators only read it, the refresher is the sole bulk writer.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Pricing  Pricing  `json:"pricing"`
	Defaults Defaults `json:"defaults"`
}

// NewDocument returns an empty canonical document seeded with the hardcoded
// collection defaults. Used on first run when no document exists yet.
func NewDocument(currency string) *Document {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Document{
		Metadata: Metadata{Currency: currency},
		Pricing: Pricing{
			Models:  make(map[string]ModelPricing),
			Servers: make(map[string]map[string]ServerPricing),
		},
		Defaults: Defaults{
			LLMCost: LLMDefaults{
				AvgTokensPerCall: 2000,
				Days:             30,
				IncludeOutput:    true,
				RetryRate:        0.05,
			},
			ServerCost: ServerDefaults{
				RuntimeHours: 720,
				StorageGB:    20,
				TrafficGB:    50,
			},
			MultiAgent: MultiAgentDefaults{Days: 30},
		},
	}
}

// LookupModel resolves a model pricing record by exact name.
func (d *Document) LookupModel(model string) (ModelPricing, error) {
	pricing, exists := d.Pricing.Models[model]
	if !exists {
		return ModelPricing{}, &NotFoundError{
			Kind:       "model",
			Identifier: model,
			Known:      sortedKeys(d.Pricing.Models),
		}
	}
	return pricing, nil
}

// LookupServerPlan resolves a (provider, plan) pricing record. A missing
// provider and a missing plan under a known provider both fail, with the
// known identifiers attached to aid correction.
func (d *Document) LookupServerPlan(provider, plan string) (ServerPricing, error) {
	plans, exists := d.Pricing.Servers[provider]
	if !exists {
		return ServerPricing{}, &NotFoundError{
			Kind:       "provider",
			Identifier: provider,
			Known:      sortedKeys(d.Pricing.Servers),
		}
	}
	pricing, exists := plans[plan]
	if !exists {
		return ServerPricing{}, &NotFoundError{
			Kind:       "plan",
			Identifier: provider + "/" + plan,
			Known:      sortedKeys(plans),
		}
	}
	return pricing, nil
}

// ResolveCurrency picks the currency for a result: the record's own currency,
// falling back to the document currency, then to the global default.
func (d *Document) ResolveCurrency(recordCurrency string) string {
	if recordCurrency != "" {
		return recordCurrency
	}
	if d.Metadata.Currency != "" {
		return d.Metadata.Currency
	}
	return DefaultCurrency
}

// CostType tags a CostInput variant.
type CostType string

// Cost types accepted by the unified estimate entry point.
const (
	CostTypeLLM        CostType = "llm_cost"
	CostTypeServer     CostType = "server_cost"
	CostTypeMultiAgent CostType = "multi_agent"
)

// LLMCostInput describes an LLM API usage estimate request. Days defaults to
// 30 and IncludeOutput to true when omitted.
type LLMCostInput struct {
	Model            string  `json:"model"`
	AvgTokensPerCall float64 `json:"avg_tokens_per_call"`
	CallsPerDay      float64 `json:"calls_per_day"`
	Days             float64 `json:"days,omitempty"`
	IncludeOutput    *bool   `json:"include_output,omitempty"`
	RetryRate        float64 `json:"retry_rate,omitempty"`
}

// ServerCostInput describes a hosting cost estimate request. RuntimeHours
// defaults to a full 720-hour month, StorageGB to 20 and TrafficGB to 50
// when omitted.
type ServerCostInput struct {
	Provider     string   `json:"provider"`
	Plan         string   `json:"plan"`
	RuntimeHours *float64 `json:"runtime_hours,omitempty"`
	StorageGB    *float64 `json:"storage_gb,omitempty"`
	TrafficGB    *float64 `json:"traffic_gb,omitempty"`
}

// AgentSpec is one member of a multi-agent roster. Name doubles as the
// breakdown key and must be unique within the roster.
type AgentSpec struct {
	Name             string  `json:"name"`
	Model            string  `json:"model"`
	AvgTokensPerCall float64 `json:"avg_tokens_per_call"`
	CallsPerDay      float64 `json:"calls_per_day"`
	IncludeOutput    *bool   `json:"include_output,omitempty"`
	RetryRate        float64 `json:"retry_rate,omitempty"`
}

// MultiAgentCostInput aggregates several agent workloads over a shared
// number of days.
type MultiAgentCostInput struct {
	Agents []AgentSpec `json:"agents"`
	Days   float64     `json:"days,omitempty"`
}

// CostInput is the tagged union consumed by the unified estimate entry
// point. Exactly the variant matching Type must be set.
type CostInput struct {
	Type       CostType             `json:"type"`
	LLM        *LLMCostInput        `json:"llm,omitempty"`
	Server     *ServerCostInput     `json:"server,omitempty"`
	MultiAgent *MultiAgentCostInput `json:"multi_agent,omitempty"`
}

// LLMCostResult is the full breakdown for an LLM estimate.
type LLMCostResult struct {
	MonthlyCost   float64  `json:"monthly_cost"`
	DailyCost     float64  `json:"daily_cost"`
	InputCost     float64  `json:"input_cost"`
	OutputCost    float64  `json:"output_cost"`
	TotalTokens   float64  `json:"total_tokens"`
	PricePer1M    float64  `json:"price_per_1m"`
	Currency      string   `json:"currency"`
	PricingSource string   `json:"pricing_source,omitempty"`
	RetrievedAt   string   `json:"retrieved_at,omitempty"`
	Metadata      Metadata `json:"metadata"`
}

// ServerCostResult is the full breakdown for a hosting estimate. BaseCost is
// the runtime-adjusted base plan price.
type ServerCostResult struct {
	MonthlyCost   float64  `json:"monthly_cost"`
	DailyCost     float64  `json:"daily_cost"`
	BaseCost      float64  `json:"base_cost"`
	StorageCost   float64  `json:"storage_cost"`
	TrafficCost   float64  `json:"traffic_cost"`
	Currency      string   `json:"currency"`
	PricingSource string   `json:"pricing_source,omitempty"`
	RetrievedAt   string   `json:"retrieved_at,omitempty"`
	Metadata      Metadata `json:"metadata"`
}

// AgentCost is one entry of a multi-agent breakdown, in roster order.
type AgentCost struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

// ModelProvenance records where a model's pricing came from. In a
// multi-agent snapshot the first agent using a model wins.
type ModelProvenance struct {
	Source      string `json:"source,omitempty"`
	RetrievedAt string `json:"retrieved_at,omitempty"`
}

// MultiAgentCostResult aggregates per-agent costs plus a provenance snapshot
// keyed by distinct model.
type MultiAgentCostResult struct {
	TotalMonthlyCost float64                    `json:"total_monthly_cost"`
	DailyCost        float64                    `json:"daily_cost"`
	Agents           []AgentCost                `json:"agents"`
	Metadata         map[string]ModelProvenance `json:"metadata"`
}

// BreakdownItem is one ordered component of a unified cost result.
type BreakdownItem struct {
	Component string  `json:"component"`
	Cost      float64 `json:"cost"`
}

// CostResult is the unified result returned for a tagged CostInput. Exactly
// one of the typed sub-results is populated.
type CostResult struct {
	Type        CostType              `json:"type"`
	MonthlyCost float64               `json:"monthly_cost"`
	DailyCost   float64               `json:"daily_cost"`
	Currency    string                `json:"currency"`
	Breakdown   []BreakdownItem       `json:"breakdown"`
	Formula     string                `json:"formula"`
	LLM         *LLMCostResult        `json:"llm,omitempty"`
	Server      *ServerCostResult     `json:"server,omitempty"`
	MultiAgent  *MultiAgentCostResult `json:"multi_agent,omitempty"`
}

// ModelEntry is one model record as returned by a refresh provider.
// InputPer1M and OutputPer1M are pointers so a missing field is
// distinguishable from an explicit zero price.
type ModelEntry struct {
	Name        string   `json:"name"`
	Provider    string   `json:"provider,omitempty"`
	InputPer1M  *float64 `json:"input_per_1m"`
	OutputPer1M *float64 `json:"output_per_1m"`
	Currency    string   `json:"currency,omitempty"`
	Source      string   `json:"source,omitempty"`
	RetrievedAt string   `json:"retrieved_at,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// ServerEntry is one server plan record as returned by a refresh provider.
type ServerEntry struct {
	Provider       string   `json:"provider"`
	Plan           string   `json:"plan"`
	BaseMonthly    *float64 `json:"base_monthly"`
	StorageGBPrice float64  `json:"storage_gb_price,omitempty"`
	TrafficGBPrice float64  `json:"traffic_gb_price,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	Source         string   `json:"source,omitempty"`
	RetrievedAt    string   `json:"retrieved_at,omitempty"`
}

// RefreshPayload is the raw output of a refresh provider before
// normalization.
type RefreshPayload struct {
	Models  []ModelEntry  `json:"models"`
	Servers []ServerEntry `json:"servers"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
