package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"stt": {"deepgram"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. ${VAR} references in the file are expanded from the environment
// before parsing, so credentials can stay out of the file itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg, err := LoadFromReader(strings.NewReader(os.ExpandEnv(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation, warnings only.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	for _, entry := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", entry.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks requires a primary providers.llm"))
	}

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; intent fallback and discovery will be unavailable")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; voice capture will be unavailable")
	}

	// Pipeline
	if cfg.Pipeline.PlotDensityCutoff < 0 || cfg.Pipeline.PlotDensityCutoff > 1 {
		errs = append(errs, fmt.Errorf("pipeline.plot_density_cutoff %.2f is out of range [0, 1]", cfg.Pipeline.PlotDensityCutoff))
	}
	if cfg.Pipeline.PlotDensityMinWords < 0 {
		errs = append(errs, fmt.Errorf("pipeline.plot_density_min_words must not be negative"))
	}
	if cfg.Pipeline.LongUtteranceWords < 0 {
		errs = append(errs, fmt.Errorf("pipeline.long_utterance_words must not be negative"))
	}

	// Budget
	if cfg.Budget.LedgerURL != "" && cfg.Budget.PostgresDSN != "" {
		errs = append(errs, errors.New("budget.ledger_url and budget.postgres_dsn are mutually exclusive"))
	}
	if cfg.Budget.PostgresDSN != "" && cfg.Budget.DailyCapUSD <= 0 {
		errs = append(errs, errors.New("budget.daily_cap_usd must be positive when budget.postgres_dsn is set"))
	}
	if cfg.Budget.LedgerURL == "" && cfg.Budget.PostgresDSN == "" {
		slog.Warn("no budget ledger configured; discovery rate limiting will fail open on every request")
	}
	if cfg.Budget.CheckTimeout != "" {
		if _, err := time.ParseDuration(cfg.Budget.CheckTimeout); err != nil {
			errs = append(errs, fmt.Errorf("budget.check_timeout %q is not a valid duration", cfg.Budget.CheckTimeout))
		}
	}

	// Discovery
	if cfg.Discovery.InputPerMillionUSD < 0 || cfg.Discovery.OutputPerMillionUSD < 0 {
		errs = append(errs, errors.New("discovery token rates must not be negative"))
	}
	if cfg.Discovery.Temperature < 0 || cfg.Discovery.Temperature > 2 {
		errs = append(errs, fmt.Errorf("discovery.temperature %.2f is out of range [0, 2]", cfg.Discovery.Temperature))
	}
	if cfg.Discovery.MaxTokens < 0 {
		errs = append(errs, errors.New("discovery.max_tokens must not be negative"))
	}
	if cfg.Discovery.RequestTimeout != "" {
		if _, err := time.ParseDuration(cfg.Discovery.RequestTimeout); err != nil {
			errs = append(errs, fmt.Errorf("discovery.request_timeout %q is not a valid duration", cfg.Discovery.RequestTimeout))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
