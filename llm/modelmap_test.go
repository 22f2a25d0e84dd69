package llm

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayModel(t *testing.T) {
	cases := map[string]string{
		"claude-sonnet": "anthropic.claude-3-7-sonnet-20250219-v1:0",
		" GPT-3.5 ":     "gpt-35-turbo",
		"gpt-4-turbo":   "gpt-4",
		"gemini":        "vertex_ai/gemini-pro",
		"no-such-model": "anthropic.claude-3-7-sonnet-20250219-v1:0",
	}
	for in, want := range cases {
		assert.Equal(t, want, GatewayModel(in), in)
	}
}

func TestResolveModelNative(t *testing.T) {
	assert.Equal(t, "claude-3-5-haiku-20241022", ResolveModel(ProviderAnthropic, "claude-haiku"))
	assert.Equal(t, "claude-sonnet-4-5", ResolveModel(ProviderAnthropic, "claude-sonnet-4-5"))
	assert.Equal(t, "gemini-2.5-flash", ResolveModel(ProviderGemini, DefaultModel))
	assert.Equal(t, "gemini-2.5-flash", ResolveModel(ProviderGemini, ""))
}

func TestKnownModels(t *testing.T) {
	models := KnownModels()
	require.Len(t, models, 8)
	assert.True(t, sort.StringsAreSorted(models), "models not sorted: %v", models)
	assert.True(t, IsKnownModel("Claude-Opus"))
}

func TestParseProviderType(t *testing.T) {
	cases := map[string]ProviderType{
		"":       ProviderOpenAI,
		"OpenAI": ProviderOpenAI,
		"claude": ProviderAnthropic,
		"google": ProviderGemini,
	}
	for in, want := range cases {
		got, err := ParseProviderType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseProviderType("deepmind")
	assert.Error(t, err)
}

func TestBuilderRejectsEmptyKey(t *testing.T) {
	_, err := ProviderOpenAI.Model("gpt-4").APIKey(" ")
	assert.Error(t, err)
}

func TestBuilderResolvesGatewayModel(t *testing.T) {
	p, err := ProviderOpenAI.Model("claude-opus").BaseURL("http://localhost:1").APIKey("sk-test")
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-opus-4-20250514-v1:0", p.Model())
	assert.Equal(t, "openai", p.Name())
}
