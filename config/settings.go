// Package config provides application settings loaded from defaults, a
// config file and environment variables.
//
// Settings are created via Load() which handles:
// - Default value application
// - Config file parsing (TOML, YAML or JSON, chosen by extension)
// - Environment variable overrides, including the well-known credential names
//
// Validate() clamps limits, normalises the model name and checks credentials.

package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/richinex/reposcope/analysis"
	"github.com/richinex/reposcope/content"
	"github.com/richinex/reposcope/hosting"
	"github.com/richinex/reposcope/internal/apperr"
	"github.com/richinex/reposcope/llm"
	"github.com/richinex/reposcope/selection"
	"github.com/spf13/viper"
)

// Well-known environment variables.
const (
	EnvPrefix      = "REPOSCOPE"
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvAIKey       = "AI_API_KEY"
	EnvAIBaseURL   = "AI_API_BASE_URL"
)

// Upper bounds applied by Validate.
const (
	MaxFilesCeiling    = 200
	MaxFileSizeCeiling = 50000
	minAPIKeyLength    = 10
)

// Settings holds all application configuration.
type Settings struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Hosting  HostingConfig  `mapstructure:"hosting"`
	AI       AIConfig       `mapstructure:"ai"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
}

// AnalysisConfig holds the pipeline limits and file policy.
type AnalysisConfig struct {
	MaxFiles             int      `mapstructure:"max_files_to_analyze" validate:"gte=1"`
	MaxFileSize          int      `mapstructure:"max_file_size" validate:"gte=1"`
	MaxFilesInPrompt     int      `mapstructure:"max_files_in_prompt" validate:"gte=1"`
	MaxTotalContent      int      `mapstructure:"max_total_content" validate:"gte=1"`
	FetchConcurrency     int      `mapstructure:"fetch_concurrency" validate:"gte=1,lte=32"`
	ExcludedDirs         []string `mapstructure:"excluded_directories"`
	ExcludedExts         []string `mapstructure:"excluded_file_extensions"`
	SupportedExts        []string `mapstructure:"supported_extensions" validate:"min=1"`
	CommandCategories    []string `mapstructure:"command_categories"`
	CustomPromptTemplate string   `mapstructure:"custom_prompt_template"`
}

// HostingConfig holds repository hosting API configuration.
type HostingConfig struct {
	APIURL      string        `mapstructure:"api_url" validate:"omitempty,url"`
	Token       string        `mapstructure:"token"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gte=0"`
}

// AIConfig holds LLM provider configuration.
type AIConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model" validate:"required"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	Temperature float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   uint32        `mapstructure:"max_tokens" validate:"gte=1"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gte=0"`
}

// OutputConfig holds where results, the run ledger and metrics go.
type OutputConfig struct {
	Dir         string `mapstructure:"dir" validate:"required"`
	Format      string `mapstructure:"format" validate:"oneof=json yaml yml"`
	HistoryDB   string `mapstructure:"history_db"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `mapstructure:"dir"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Analysis: AnalysisConfig{
			MaxFiles:          analysis.DefaultMaxFiles,
			MaxFileSize:       content.DefaultMaxFileSize,
			MaxFilesInPrompt:  selection.DefaultMaxFilesInPrompt,
			MaxTotalContent:   content.DefaultMaxTotalContent,
			FetchConcurrency:  content.DefaultConcurrency,
			ExcludedDirs:      selection.DefaultExcludedDirs,
			ExcludedExts:      selection.DefaultExcludedExts,
			SupportedExts:     selection.DefaultSupportedExts,
			CommandCategories: analysis.DefaultCommandCategories,
		},
		Hosting: HostingConfig{
			Timeout:     hosting.DefaultTimeout,
			MaxAttempts: hosting.DefaultMaxAttempts,
			BaseDelay:   hosting.DefaultBaseDelay,
		},
		AI: AIConfig{
			Provider:    llm.ProviderOpenAI.String(),
			Model:       llm.DefaultModel,
			Temperature: llm.DefaultTemperature,
			MaxTokens:   llm.DefaultMaxTokens,
			Timeout:     llm.DefaultTimeout,
			MaxAttempts: llm.DefaultMaxAttempts,
			BaseDelay:   llm.DefaultBaseDelay,
		},
		Output: OutputConfig{
			Dir:       "analysis_results",
			Format:    "json",
			HistoryDB: "analysis_results/runs.db",
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// Load builds settings from defaults, the optional config file at path and
// the environment. A path that does not exist is reported as a warning and
// the remaining sources still apply. A file that exists but cannot be parsed
// is an error.
func Load(path string) (Settings, []string, error) {
	v := viper.New()
	setDefaults(v)

	// Example: REPOSCOPE_ANALYSIS_MAX_FILE_SIZE
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("hosting.token", EnvPrefix+"_HOSTING_TOKEN", EnvGitHubToken)
	_ = v.BindEnv("ai.api_key", EnvPrefix+"_AI_API_KEY", EnvAIKey)

	var warnings []string
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			warnings = append(warnings, fmt.Sprintf("configuration file %s not found, using defaults", path))
		} else {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Settings{}, warnings, apperr.Wrap(err, apperr.KindConfigurationInvalid, "config.load",
					fmt.Sprintf("failed to read config file %s", path))
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, warnings, apperr.Wrap(err, apperr.KindConfigurationInvalid, "config.load", "failed to unmarshal config")
	}

	// Config file beats AI_API_BASE_URL, which beats the provider default.
	if s.AI.BaseURL == "" {
		s.AI.BaseURL = os.Getenv(EnvAIBaseURL)
	}
	return s, warnings, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("analysis.max_files_to_analyze", d.Analysis.MaxFiles)
	v.SetDefault("analysis.max_file_size", d.Analysis.MaxFileSize)
	v.SetDefault("analysis.max_files_in_prompt", d.Analysis.MaxFilesInPrompt)
	v.SetDefault("analysis.max_total_content", d.Analysis.MaxTotalContent)
	v.SetDefault("analysis.fetch_concurrency", d.Analysis.FetchConcurrency)
	v.SetDefault("analysis.excluded_directories", d.Analysis.ExcludedDirs)
	v.SetDefault("analysis.excluded_file_extensions", d.Analysis.ExcludedExts)
	v.SetDefault("analysis.supported_extensions", d.Analysis.SupportedExts)
	v.SetDefault("analysis.command_categories", d.Analysis.CommandCategories)
	v.SetDefault("analysis.custom_prompt_template", "")
	v.SetDefault("hosting.api_url", d.Hosting.APIURL)
	v.SetDefault("hosting.token", "")
	v.SetDefault("hosting.timeout", d.Hosting.Timeout)
	v.SetDefault("hosting.max_attempts", d.Hosting.MaxAttempts)
	v.SetDefault("hosting.base_delay", d.Hosting.BaseDelay)
	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.temperature", d.AI.Temperature)
	v.SetDefault("ai.max_tokens", d.AI.MaxTokens)
	v.SetDefault("ai.timeout", d.AI.Timeout)
	v.SetDefault("ai.max_attempts", d.AI.MaxAttempts)
	v.SetDefault("ai.base_delay", d.AI.BaseDelay)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.history_db", d.Output.HistoryDB)
	v.SetDefault("output.metrics_file", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)
}

// Validate normalises and checks the settings in place. Limits above their
// ceilings are clamped with a warning. It returns warnings worth logging and
// a KindConfigurationInvalid error when the settings cannot be used.
func (s *Settings) Validate() ([]string, error) {
	var warnings []string
	defaults := Default()

	if s.Analysis.MaxFiles > MaxFilesCeiling {
		warnings = append(warnings, fmt.Sprintf("max_files_to_analyze too high, capping at %d", MaxFilesCeiling))
		s.Analysis.MaxFiles = MaxFilesCeiling
	}
	if s.Analysis.MaxFileSize > MaxFileSizeCeiling {
		warnings = append(warnings, fmt.Sprintf("max_file_size too high, capping at %d characters", MaxFileSizeCeiling))
		s.Analysis.MaxFileSize = MaxFileSizeCeiling
	}
	if len(s.Analysis.CommandCategories) == 0 {
		s.Analysis.CommandCategories = defaults.Analysis.CommandCategories
	}
	if s.Analysis.ExcludedDirs == nil {
		s.Analysis.ExcludedDirs = defaults.Analysis.ExcludedDirs
	}

	s.AI.Model = llm.NormalizeModel(s.AI.Model)
	if s.AI.Model == "" {
		s.AI.Model = llm.DefaultModel
	}
	provider, err := llm.ParseProviderType(s.AI.Provider)
	if err != nil {
		return warnings, apperr.Wrap(err, apperr.KindConfigurationInvalid, "config.validate", "invalid ai.provider")
	}
	s.AI.Provider = provider.String()
	if provider == llm.ProviderOpenAI && !llm.IsKnownModel(s.AI.Model) {
		return warnings, apperr.New(apperr.KindConfigurationInvalid, "config.validate",
			fmt.Sprintf("unsupported model %q. Available: %s", s.AI.Model, strings.Join(llm.KnownModels(), ", ")))
	}
	s.Log.Level = strings.ToLower(s.Log.Level)
	s.Output.Format = strings.ToLower(s.Output.Format)

	if err := validator.New().Struct(s); err != nil {
		return warnings, apperr.Wrap(err, apperr.KindConfigurationInvalid, "config.validate", describe(err))
	}

	if strings.TrimSpace(s.AI.APIKey) == "" {
		return warnings, apperr.New(apperr.KindConfigurationInvalid, "config.validate",
			fmt.Sprintf("%s not set in environment. Please set this environment variable with your API key. "+
				"This single key will be used for all AI models (%s).", EnvAIKey, s.AI.Model))
	}
	if len(strings.TrimSpace(s.AI.APIKey)) < minAPIKeyLength {
		warnings = append(warnings, fmt.Sprintf("API key seems too short. Please verify your %s.", EnvAIKey))
	}
	if s.Hosting.Token == "" {
		warnings = append(warnings, fmt.Sprintf("%s not set. GitHub API rate limits will apply (60 requests/hour vs 5000/hour authenticated)", EnvGitHubToken))
		// Parallel windows may request files past the content budget.
		if s.Analysis.FetchConcurrency > 1 {
			warnings = append(warnings, fmt.Sprintf("fetching file contents sequentially without %s to save API quota", EnvGitHubToken))
			s.Analysis.FetchConcurrency = 1
		}
	}
	return warnings, nil
}

// describe turns validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid configuration"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), rule))
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// SelectionPolicy returns the filter policy described by the settings.
func (s Settings) SelectionPolicy() selection.Policy {
	return selection.Policy{
		ExcludedDirs:  s.Analysis.ExcludedDirs,
		ExcludedExts:  s.Analysis.ExcludedExts,
		SupportedExts: s.Analysis.SupportedExts,
	}
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	return []string{
		llm.ProviderOpenAI.String(),
		llm.ProviderAnthropic.String(),
		llm.ProviderGemini.String(),
	}
}

// EnvReport is the result of CheckEnvironment.
type EnvReport struct {
	GoVersion string
	Variables map[string]string // name -> "set" | "not set"
	Warnings  []string
	Errors    []string
}

// OK reports whether no errors were found.
func (r EnvReport) OK() bool {
	return len(r.Errors) == 0
}

// CheckEnvironment inspects the process environment for the credentials an
// analysis needs.
func CheckEnvironment() EnvReport {
	return checkEnvironment(os.Getenv)
}

func checkEnvironment(getenv func(string) string) EnvReport {
	report := EnvReport{
		GoVersion: runtime.Version(),
		Variables: make(map[string]string),
	}
	for _, name := range []string{EnvGitHubToken, EnvAIKey, EnvAIBaseURL} {
		if getenv(name) != "" {
			report.Variables[name] = "set"
		} else {
			report.Variables[name] = "not set"
		}
	}

	if getenv(EnvAIKey) == "" {
		report.Errors = append(report.Errors,
			fmt.Sprintf("AI API key not found. Please set %s environment variable", EnvAIKey))
	}
	if getenv(EnvGitHubToken) == "" {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%s not set - API rate limits will apply", EnvGitHubToken))
	}
	return report
}
