package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/richinex/reposcope/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the credential variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvGitHubToken, EnvAIKey, EnvAIBaseURL} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	s, warnings, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 50, s.Analysis.MaxFiles)
	assert.Equal(t, 10000, s.Analysis.MaxFileSize)
	assert.Equal(t, 100000, s.Analysis.MaxTotalContent)
	assert.Equal(t, "claude-sonnet", s.AI.Model)
	assert.Equal(t, "openai", s.AI.Provider)
	assert.Equal(t, 30*time.Second, s.Hosting.Timeout)
	assert.Equal(t, 60*time.Second, s.AI.Timeout)
	require.NotEmpty(t, s.Analysis.ExcludedDirs)
	assert.Equal(t, "node_modules", s.Analysis.ExcludedDirs[0])
}

func TestLoadConfigFileFormats(t *testing.T) {
	clearEnv(t)

	files := map[string]string{
		"config.yaml": "analysis:\n  max_files_to_analyze: 25\nai:\n  model: gpt-4\n  base_url: https://gateway.example.com\n",
		"config.toml": "[analysis]\nmax_files_to_analyze = 25\n\n[ai]\nmodel = \"gpt-4\"\nbase_url = \"https://gateway.example.com\"\n",
		"config.json": `{"analysis": {"max_files_to_analyze": 25}, "ai": {"model": "gpt-4", "base_url": "https://gateway.example.com"}}`,
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			s, _, err := Load(writeFile(t, name, body))
			require.NoError(t, err)
			assert.Equal(t, 25, s.Analysis.MaxFiles)
			assert.Equal(t, "gpt-4", s.AI.Model)
			assert.Equal(t, 10000, s.Analysis.MaxFileSize, "default max file size should survive")
			assert.Equal(t, "https://gateway.example.com", s.AI.BaseURL)
		})
	}
}

func TestLoadMissingFileWarns(t *testing.T) {
	clearEnv(t)

	s, warnings, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "not found")
	assert.Equal(t, 50, s.Analysis.MaxFiles)
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)

	_, _, err := Load(writeFile(t, "broken.yaml", "analysis: [unclosed\n"))
	assert.True(t, apperr.Is(err, apperr.KindConfigurationInvalid), "got %v", err)
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvGitHubToken, "ghp_token")
	t.Setenv(EnvAIKey, "sk-0123456789")
	t.Setenv(EnvAIBaseURL, "https://env.example.com")
	t.Setenv("REPOSCOPE_ANALYSIS_MAX_FILE_SIZE", "2048")

	s, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ghp_token", s.Hosting.Token)
	assert.Equal(t, "sk-0123456789", s.AI.APIKey)
	assert.Equal(t, "https://env.example.com", s.AI.BaseURL)
	assert.Equal(t, 2048, s.Analysis.MaxFileSize)
}

func TestConfigBaseURLBeatsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAIBaseURL, "https://env.example.com")

	s, _, err := Load(writeFile(t, "c.yaml", "ai:\n  base_url: https://file.example.com\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", s.AI.BaseURL)
}

func validSettings() Settings {
	s := Default()
	s.AI.APIKey = "sk-0123456789"
	s.Hosting.Token = "ghp_token"
	return s
}

func TestValidateClampsLimits(t *testing.T) {
	s := validSettings()
	s.Analysis.MaxFiles = 500
	s.Analysis.MaxFileSize = 90000

	warnings, err := s.Validate()
	require.NoError(t, err)
	assert.Equal(t, 200, s.Analysis.MaxFiles)
	assert.Equal(t, 50000, s.Analysis.MaxFileSize)
	assert.Len(t, warnings, 2)
}

func TestValidateNormalisesModel(t *testing.T) {
	s := validSettings()
	s.AI.Model = "  Claude-Haiku "

	_, err := s.Validate()
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku", s.AI.Model)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
		want   string
	}{
		{"unknown model", func(s *Settings) { s.AI.Model = "llama-9000" }, "unsupported model"},
		{"unknown provider", func(s *Settings) { s.AI.Provider = "mystery" }, "ai.provider"},
		{"missing key", func(s *Settings) { s.AI.APIKey = "" }, EnvAIKey},
		{"bad format", func(s *Settings) { s.Output.Format = "xml" }, "Format"},
		{"zero concurrency", func(s *Settings) { s.Analysis.FetchConcurrency = 0 }, "FetchConcurrency"},
		{"bad base url", func(s *Settings) { s.AI.BaseURL = "not a url" }, "BaseURL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)
			_, err := s.Validate()
			require.True(t, apperr.Is(err, apperr.KindConfigurationInvalid), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateNativeProviderAcceptsVendorModel(t *testing.T) {
	s := validSettings()
	s.AI.Provider = "claude"
	s.AI.Model = "claude-3-5-haiku-20241022"

	_, err := s.Validate()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", s.AI.Provider, "provider should be normalized from 'claude'")
}

func TestValidateWarnsWithoutToken(t *testing.T) {
	s := validSettings()
	s.Hosting.Token = ""
	s.AI.APIKey = "short"

	warnings, err := s.Validate()
	require.NoError(t, err)
	joined := strings.Join(warnings, "\n")
	assert.Contains(t, joined, "5000/hour")
	assert.Contains(t, joined, "too short")
}

func TestValidateFetchesSequentiallyWithoutToken(t *testing.T) {
	s := validSettings()
	s.Hosting.Token = ""
	s.Analysis.FetchConcurrency = 8

	warnings, err := s.Validate()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Analysis.FetchConcurrency)
	assert.Contains(t, strings.Join(warnings, "\n"), "sequentially")

	authed := validSettings()
	authed.Analysis.FetchConcurrency = 8
	_, err = authed.Validate()
	require.NoError(t, err)
	assert.Equal(t, 8, authed.Analysis.FetchConcurrency)
}

func TestCheckEnvironment(t *testing.T) {
	env := map[string]string{EnvAIKey: "sk-0123456789"}
	report := checkEnvironment(func(k string) string { return env[k] })

	assert.True(t, report.OK(), "errors: %v", report.Errors)
	assert.Equal(t, "set", report.Variables[EnvAIKey])
	assert.Equal(t, "not set", report.Variables[EnvGitHubToken])
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], EnvGitHubToken)

	empty := checkEnvironment(func(string) string { return "" })
	assert.False(t, empty.OK())
}

func TestSupportedProviders(t *testing.T) {
	got := SupportedProviders()
	require.Len(t, got, 3)
	assert.Equal(t, "openai", got[0])
}
