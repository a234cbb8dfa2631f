// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for railvox.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	NLU        NLUConfig        `yaml:"nlu"`
	Session    SessionConfig    `yaml:"session"`
	Cache      CacheConfig      `yaml:"cache"`
	Backend    BackendConfig    `yaml:"backend"`
	Respond    RespondConfig    `yaml:"respond"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It is hot-reloaded by the [Watcher].
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation serves each
// pipeline stage. Speech recognition, translation and synthesis accept
// ordered fallbacks that take over when the primary fails.
type ProvidersConfig struct {
	Embeddings ProviderEntry `yaml:"embeddings"`
	STT        ProviderChain `yaml:"stt"`
	Translate  ProviderChain `yaml:"translate"`
	TTS        ProviderChain `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. Name selects the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Voice is the default TTS voice; Voices overrides it per language.
	Voice  string            `yaml:"voice"`
	Voices map[string]string `yaml:"voices"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// ProviderChain is a primary provider plus ordered fallbacks.
type ProviderChain struct {
	ProviderEntry `yaml:",inline"`

	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// Entries returns the primary followed by the fallbacks, or nil when no
// primary is configured.
func (c ProviderChain) Entries() []ProviderEntry {
	if c.Name == "" {
		return nil
	}
	return append([]ProviderEntry{c.ProviderEntry}, c.Fallbacks...)
}

// NLUConfig tunes intent classification and entity matching.
type NLUConfig struct {
	// Stations replaces the built-in gazetteer when non-empty.
	Stations []string `yaml:"stations"`

	// FuzzyThreshold is the 0-100 token-set score a station match must
	// exceed. Zero keeps the default of 70.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// MinConfidence makes the classifier answer "general" when the best
	// intent scores below it. Zero disables rejection.
	MinConfidence float64 `yaml:"min_confidence"`

	// Examples replaces the example phrases of the listed intents.
	Examples map[string][]string `yaml:"examples"`
}

// SessionConfig configures per-session origin carry-over.
type SessionConfig struct {
	// DefaultOrigin is reported for sessions that never resolved an origin.
	DefaultOrigin string `yaml:"default_origin"`

	// PostgresDSN persists sessions in PostgreSQL. Empty keeps them in
	// memory.
	PostgresDSN string `yaml:"postgres_dsn"`

	// IdleTimeout evicts in-memory sessions unused for this long. Zero
	// keeps the default of 30m.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	// Size is the number of vectors kept in memory. Zero keeps the default
	// of 4096; a negative value disables caching.
	Size int `yaml:"size"`

	// TTL expires in-memory entries. Zero means they never expire.
	TTL time.Duration `yaml:"ttl"`

	// PostgresDSN adds a persistent pgvector-backed layer behind the
	// in-memory one.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BackendConfig selects the train-data service. A non-empty URL selects the
// remote HTTP service; otherwise the seeded mock answers.
type BackendConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
	Seed  uint64 `yaml:"seed"`
}

// RespondConfig customises the reply sentences.
type RespondConfig struct {
	// Templates overrides the text/template of individual result types,
	// keyed by type ("fare", "pnr", ...). Hot-reloaded by the [Watcher].
	Templates map[string]string `yaml:"templates"`
}

// ResilienceConfig tunes the circuit breaker wrapped around each provider.
type ResilienceConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`

	// DisablePassThrough makes translation failures fail the query instead
	// of passing the text through untranslated.
	DisablePassThrough bool `yaml:"disable_pass_through"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	// SampleRatio is the fraction of traces sampled; outside (0, 1) every
	// trace is sampled.
	SampleRatio float64 `yaml:"sample_ratio"`
}
