package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/railvox/internal/nlu"
	"github.com/MrWong99/railvox/internal/railway"
	"github.com/MrWong99/railvox/internal/respond"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai", "ollama", "hashing"},
	"stt":        {"whisper", "deepgram"},
	"translate":  {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "passthrough"},
	"tts":        {"coqui", "elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown keys are an error. An empty document yields the zero Config,
// which runs fully offline.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
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
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	errs = append(errs, validateChain("stt", cfg.Providers.STT)...)
	errs = append(errs, validateChain("translate", cfg.Providers.Translate)...)
	errs = append(errs, validateChain("tts", cfg.Providers.TTS)...)
	if cfg.Providers.Embeddings.Name == "" {
		slog.Info("providers.embeddings not set; using the local hashing embedder")
	}

	// NLU
	if t := cfg.NLU.FuzzyThreshold; t < 0 || t > 100 {
		errs = append(errs, fmt.Errorf("nlu.fuzzy_threshold %.1f is out of range [0, 100]", t))
	}
	if c := cfg.NLU.MinConfidence; c < 0 || c > 1 {
		errs = append(errs, fmt.Errorf("nlu.min_confidence %.2f is out of range [0, 1]", c))
	}
	if err := cfg.NLU.IntentExamples().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("nlu.examples: %w", err))
	}
	g, err := nlu.NewGazetteer(cfg.NLU.StationNames())
	if err != nil {
		errs = append(errs, fmt.Errorf("nlu.stations: %w", err))
	}

	// Session
	if o := cfg.Session.DefaultOrigin; o != "" && g != nil {
		if _, ok := g.Lookup(o); !ok {
			errs = append(errs, fmt.Errorf("session.default_origin %q is not a known station", o))
		}
	}
	if cfg.Session.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout %s must not be negative", cfg.Session.IdleTimeout))
	}

	// Cache
	if cfg.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl %s must not be negative", cfg.Cache.TTL))
	}

	// Backend
	if raw := cfg.Backend.URL; raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("backend.url %q must be an absolute http(s) URL", raw))
		}
	}

	// Respond
	for typ := range cfg.Respond.Templates {
		if _, ok := respond.DefaultTemplates[railway.ResultType(typ)]; !ok {
			errs = append(errs, fmt.Errorf("respond.templates: unknown result type %q", typ))
		}
	}
	if _, err := respond.NewFormatter(cfg.Respond.Overrides()); err != nil {
		errs = append(errs, fmt.Errorf("respond.templates: %w", err))
	}

	// Resilience
	r := cfg.Resilience
	if r.MaxFailures < 0 || r.HalfOpenMax < 0 || r.ResetTimeout < 0 {
		errs = append(errs, errors.New("resilience values must not be negative"))
	}

	// Telemetry
	if s := cfg.Telemetry.SampleRatio; s < 0 || s > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %.2f is out of range [0, 1]", s))
	}

	return errors.Join(errs...)
}

// validateChain checks that every fallback of a chain is named and that
// fallbacks only appear behind a primary.
func validateChain(kind string, c ProviderChain) []error {
	var errs []error
	if c.Name == "" && len(c.Fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s.fallbacks requires providers.%s.name", kind, kind))
	}
	validateProviderName(kind, c.Name)
	for i, fb := range c.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d].name is required", kind, i))
			continue
		}
		validateProviderName(kind, fb.Name)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// StationNames returns the configured gazetteer, or the built-in stations
// when none is configured.
func (c NLUConfig) StationNames() []string {
	if len(c.Stations) > 0 {
		return c.Stations
	}
	return nlu.DefaultStations
}

// IntentExamples returns the example phrase overrides keyed by intent.
func (c NLUConfig) IntentExamples() nlu.Examples {
	out := make(nlu.Examples, len(c.Examples))
	for k, v := range c.Examples {
		out[nlu.Intent(k)] = v
	}
	return out
}

// Overrides returns the template overrides keyed by result type.
func (c RespondConfig) Overrides() map[railway.ResultType]string {
	out := make(map[railway.ResultType]string, len(c.Templates))
	for k, v := range c.Templates {
		out[railway.ResultType(k)] = v
	}
	return out
}
