package llm

import (
	"sort"
	"strings"
)

// Request defaults.
const (
	DefaultModel       = "claude-sonnet"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4000
)

// gatewayModels maps logical names to the identifiers expected by the
// OpenAI-compatible gateway.
var gatewayModels = map[string]string{
	"claude-sonnet": "anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-opus":   "anthropic.claude-opus-4-20250514-v1:0",
	"claude-haiku":  "anthropic.claude-3-5-haiku-20241022-v1:0",
	"gpt-4":         "gpt-4",
	"gpt-4-turbo":   "gpt-4",
	"gpt-3.5":       "gpt-35-turbo",
	"gemini":        "vertex_ai/gemini-pro",
	"gemini-pro":    "vertex_ai/gemini-pro",
}

// nativeModels maps logical names to vendor API identifiers for the native
// providers. Names absent here are passed through unchanged.
var nativeModels = map[ProviderType]map[string]string{
	ProviderAnthropic: {
		"claude-sonnet": "claude-3-7-sonnet-20250219",
		"claude-opus":   "claude-opus-4-20250514",
		"claude-haiku":  "claude-3-5-haiku-20241022",
	},
	ProviderGemini: {
		"gemini":     "gemini-2.5-flash",
		"gemini-pro": "gemini-2.5-pro",
	},
}

// nativeDefaults names the logical model used when a native provider is
// given no model, or the default model is not one it serves.
var nativeDefaults = map[ProviderType]string{
	ProviderAnthropic: "claude-sonnet",
	ProviderGemini:    "gemini",
}

// NormalizeModel lowercases and trims a logical model name.
func NormalizeModel(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsKnownModel reports whether name is a logical model name.
func IsKnownModel(name string) bool {
	_, ok := gatewayModels[NormalizeModel(name)]
	return ok
}

// KnownModels returns the logical model names in sorted order.
func KnownModels() []string {
	names := make([]string, 0, len(gatewayModels))
	for name := range gatewayModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GatewayModel returns the gateway identifier for a logical name, falling back
// to the default model's identifier when the name is not in the table.
func GatewayModel(name string) string {
	if id, ok := gatewayModels[NormalizeModel(name)]; ok {
		return id
	}
	return gatewayModels[DefaultModel]
}

// ResolveModel returns the identifier sent to the given provider.
func ResolveModel(provider ProviderType, name string) string {
	if provider == ProviderOpenAI {
		return GatewayModel(name)
	}
	normalized := NormalizeModel(name)
	if _, ok := nativeModels[provider][normalized]; !ok && (normalized == "" || normalized == DefaultModel) {
		normalized = nativeDefaults[provider]
	}
	if id, ok := nativeModels[provider][normalized]; ok {
		return id
	}
	return strings.TrimSpace(name)
}
