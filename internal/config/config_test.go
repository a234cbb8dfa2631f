package config_test

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/railvox/internal/config"
	"github.com/MrWong99/railvox/internal/nlu"
	"github.com/MrWong99/railvox/internal/railway"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: debug
  shutdown_timeout: 20s
providers:
  embeddings:
    name: openai
    api_key: sk-test
    model: text-embedding-3-small
  stt:
    name: whisper
    base_url: http://localhost:8081
    fallbacks:
      - name: deepgram
        api_key: dg-test
  translate:
    name: openai
    model: gpt-4o-mini
    fallbacks:
      - name: ollama
        model: llama3.1
  tts:
    name: coqui
    base_url: http://localhost:5002
    voice: p225
    voices:
      hi: hindi_female
nlu:
  fuzzy_threshold: 75
  min_confidence: 0.3
  examples:
    fare_query:
      - "ticket price"
session:
  default_origin: Kannur
  idle_timeout: 1h
cache:
  size: 1024
  ttl: 24h
backend:
  seed: 42
respond:
  templates:
    fare: "It costs {{.fare}} rupees."
resilience:
  max_failures: 3
  reset_timeout: 10s
telemetry:
  sample_ratio: 0.25
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.ShutdownTimeout != 20*time.Second {
		t.Errorf("shutdown_timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if e := cfg.Providers.Embeddings; e.Name != "openai" || e.APIKey != "sk-test" || e.Model != "text-embedding-3-small" {
		t.Errorf("embeddings = %+v", e)
	}

	stt := cfg.Providers.STT.Entries()
	if len(stt) != 2 || stt[0].Name != "whisper" || stt[0].BaseURL != "http://localhost:8081" || stt[1].Name != "deepgram" {
		t.Errorf("stt entries = %+v", stt)
	}
	if tts := cfg.Providers.TTS; tts.Voice != "p225" || tts.Voices["hi"] != "hindi_female" {
		t.Errorf("tts = %+v", tts)
	}
	if cfg.NLU.FuzzyThreshold != 75 || cfg.NLU.MinConfidence != 0.3 {
		t.Errorf("nlu = %+v", cfg.NLU)
	}
	if got := cfg.NLU.IntentExamples()[nlu.IntentFareQuery]; len(got) != 1 || got[0] != "ticket price" {
		t.Errorf("examples = %v", got)
	}
	if cfg.Session.DefaultOrigin != "Kannur" || cfg.Session.IdleTimeout != time.Hour {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Cache.Size != 1024 || cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Backend.Seed != 42 {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if got := cfg.Respond.Overrides()[railway.TypeFare]; got != "It costs {{.fare}} rupees." {
		t.Errorf("fare template = %q", got)
	}
	if cfg.Resilience.MaxFailures != 3 || cfg.Resilience.ResetTimeout != 10*time.Second {
		t.Errorf("resilience = %+v", cfg.Resilience)
	}
	if cfg.Telemetry.SampleRatio != 0.25 {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}
	if cfg.Providers.STT.Entries() != nil {
		t.Error("empty config has stt entries")
	}
	if got := cfg.NLU.StationNames(); len(got) != len(nlu.DefaultStations) {
		t.Errorf("stations = %d, want the %d built-in ones", len(got), len(nlu.DefaultStations))
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen: \":80\"\n"))
	if err == nil || !strings.Contains(err.Error(), "listen") {
		t.Errorf("err = %v, want unknown field error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/railvox.yaml")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want os.ErrNotExist", err)
	}
}

func TestLoad_Example(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("Load(example.yaml): %v", err)
	}
	if got := len(cfg.Providers.STT.Entries()); got != 2 {
		t.Errorf("stt chain length = %d, want 2", got)
	}
	if cfg.Session.DefaultOrigin != "Kozhikode" || cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("session %+v cache %+v", cfg.Session, cfg.Cache)
	}
	if _, ok := cfg.Respond.Overrides()[railway.TypeFare]; !ok {
		t.Error("fare template override missing")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "log level", yaml: "server:\n  log_level: verbose\n", wantErr: "server.log_level"},
		{name: "tls half set", yaml: "server:\n  tls:\n    cert_file: a.pem\n", wantErr: "server.tls"},
		{name: "fallback without primary", yaml: "providers:\n  tts:\n    fallbacks:\n      - name: coqui\n", wantErr: "providers.tts.fallbacks requires"},
		{name: "unnamed fallback", yaml: "providers:\n  stt:\n    name: whisper\n    fallbacks:\n      - model: nova-2\n", wantErr: "providers.stt.fallbacks[0].name"},
		{name: "fuzzy threshold", yaml: "nlu:\n  fuzzy_threshold: 120\n", wantErr: "nlu.fuzzy_threshold"},
		{name: "min confidence", yaml: "nlu:\n  min_confidence: 1.5\n", wantErr: "nlu.min_confidence"},
		{name: "unknown intent", yaml: "nlu:\n  examples:\n    weather:\n      - is it raining\n", wantErr: "nlu.examples"},
		{name: "blank stations", yaml: "nlu:\n  stations: [\" \"]\n", wantErr: "nlu.stations"},
		{name: "unknown default origin", yaml: "session:\n  default_origin: Atlantis\n", wantErr: "session.default_origin"},
		{name: "backend url", yaml: "backend:\n  url: ftp://trains\n", wantErr: "backend.url"},
		{name: "unknown template", yaml: "respond:\n  templates:\n    weather: hi\n", wantErr: "unknown result type"},
		{name: "bad template", yaml: "respond:\n  templates:\n    fare: \"{{.fare\"\n", wantErr: "respond.templates"},
		{name: "negative resilience", yaml: "resilience:\n  max_failures: -1\n", wantErr: "resilience"},
		{name: "sample ratio", yaml: "telemetry:\n  sample_ratio: 2\n", wantErr: "telemetry.sample_ratio"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Server.LogLevel = "loud"
	cfg.NLU.MinConfidence = -1
	cfg.Telemetry.SampleRatio = 3

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("Validate: want error")
	}
	for _, want := range []string{"server.log_level", "nlu.min_confidence", "telemetry.sample_ratio"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_DefaultOriginCaseInsensitive(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Session.DefaultOrigin = "kozhikode"
	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"embeddings", "stt", "translate", "tts"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("no known providers for %s", kind)
		}
	}
}
