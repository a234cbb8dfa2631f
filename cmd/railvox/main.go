// Command railvox answers railway questions asked in speech or text.
//
// One-shot mode resolves and answers a single query:
//
//	railvox -text "next train from Kannur to Mumbai"
//	railvox -audio question.wav -lang hi -speak -out reply.wav
//
// Serve mode runs the HTTP API until SIGINT or SIGTERM:
//
//	railvox -config config.yaml -serve
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/railvox/internal/app"
	"github.com/MrWong99/railvox/internal/assistant"
	"github.com/MrWong99/railvox/internal/config"
	"github.com/MrWong99/railvox/internal/observe"
	"github.com/MrWong99/railvox/pkg/provider/embeddings"
	"github.com/MrWong99/railvox/pkg/provider/embeddings/hashing"
	ollamaembed "github.com/MrWong99/railvox/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/railvox/pkg/provider/embeddings/openai"
	"github.com/MrWong99/railvox/pkg/provider/stt"
	"github.com/MrWong99/railvox/pkg/provider/stt/deepgram"
	"github.com/MrWong99/railvox/pkg/provider/stt/whisper"
	"github.com/MrWong99/railvox/pkg/provider/translate"
	"github.com/MrWong99/railvox/pkg/provider/translate/anyllm"
	oatranslate "github.com/MrWong99/railvox/pkg/provider/translate/openai"
	"github.com/MrWong99/railvox/pkg/provider/translate/passthrough"
	"github.com/MrWong99/railvox/pkg/provider/tts"
	"github.com/MrWong99/railvox/pkg/provider/tts/coqui"
	"github.com/MrWong99/railvox/pkg/provider/tts/elevenlabs"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes the command with args and writes one-shot replies to stdout.
func run(args []string, stdout io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("railvox", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", `path to the YAML configuration file; "" uses built-in defaults`)
	text := fs.String("text", "", "answer this typed query and exit")
	audioPath := fs.String("audio", "", "answer the spoken query in this WAV file and exit")
	lang := fs.String("lang", "", "ISO 639-1 language of the query (default English)")
	sessionID := fs.String("session", "", "session ID for origin carry-over")
	speak := fs.Bool("speak", false, "synthesise the reply")
	out := fs.String("out", "reply.wav", "where -speak writes the reply audio")
	resolveOnly := fs.Bool("resolve", false, "print the resolved request without answering it")
	serve := fs.Bool("serve", false, "run the HTTP API")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !*serve && *text == "" && *audioPath == "" {
		fmt.Fprintln(os.Stderr, "railvox: one of -text, -audio or -serve is required")
		fs.Usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "railvox: config file %q not found, copy configs/example.yaml or pass -config \"\"\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "railvox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(observe.ParseLevel(string(cfg.Server.LogLevel)))
	slog.SetDefault(observe.NewLogger(os.Stderr, &level))

	slog.Info("railvox starting",
		"version", version,
		"config", *configPath,
		"serve", *serve,
		"log_level", level.Level(),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers,
		app.WithMetrics(metrics),
		app.WithMetricsHandler(tel.MetricsHandler()),
		app.WithLevelVar(&level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	if !*serve {
		in := assistant.Input{SessionID: *sessionID, Text: *text, Language: *lang, Speak: *speak}
		return oneShot(ctx, application.Assistant(), in, *audioPath, *out, *resolveOnly, stdout)
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	printStartupSummary(cfg, providers)

	if *configPath != "" {
		w, err := config.NewWatcher(*configPath, application.Reload)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			go w.Run(ctx)
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("shutdown signal received, stopping")
	return 0
}

// loadConfig reads path, or returns the built-in defaults for "".
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// oneShot answers a single query and prints the reply as JSON to stdout.
func oneShot(ctx context.Context, a *assistant.Assistant, in assistant.Input, audioPath, outPath string, resolveOnly bool, stdout io.Writer) int {
	if audioPath != "" {
		data, err := os.ReadFile(audioPath)
		if err != nil {
			slog.Error("failed to read audio", "path", audioPath, "err", err)
			return 1
		}
		in.Audio = data
	}

	handle := a.Handle
	if resolveOnly {
		handle = a.Resolve
	}
	reply, err := handle(ctx, in)
	if err != nil {
		slog.Error("query failed", "err", err)
		return 1
	}

	if len(reply.Audio) > 0 {
		if err := os.WriteFile(outPath, reply.Audio, 0o644); err != nil {
			slog.Error("failed to write reply audio", "path", outPath, "err", err)
			return 1
		}
		slog.Info("reply audio written", "path", outPath, "bytes", len(reply.Audio))
		reply.Audio = nil
	}
	return printJSON(stdout, reply)
}

func printJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("failed to encode reply", "err", err)
		return 1
	}
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, oaembed.WithDimensions(dims))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if keep := optString(entry.Options, "keep_alive"); keep != "" {
			opts = append(opts, ollamaembed.WithKeepAlive(keep))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("hashing", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return hashing.New(optInt(entry.Options, "dimensions"))
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if prompt := optString(entry.Options, "prompt"); prompt != "" {
			opts = append(opts, whisper.WithPrompt(prompt))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── Translation ───────────────────────────────────────────────────────────

	reg.RegisterTranslate("openai", func(entry config.ProviderEntry) (translate.Translator, error) {
		var opts []oatranslate.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatranslate.WithBaseURL(entry.BaseURL))
		}
		return oatranslate.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining LLM backends share one pattern: optional APIKey plus
	// optional BaseURL. Local servers (ollama, llamacpp, llamafile) only
	// need the URL.
	for _, backend := range anyllm.Backends {
		if backend == "openai" {
			continue
		}
		reg.RegisterTranslate(backend, func(entry config.ProviderEntry) (translate.Translator, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	reg.RegisterTranslate("passthrough", func(config.ProviderEntry) (translate.Translator, error) {
		return passthrough.Translator{}, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		opts := []coqui.Option{coqui.WithVoices(entry.Voices), coqui.WithDefaultVoice(entry.Voice)}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		opts := []elevenlabs.Option{elevenlabs.WithVoices(entry.Voices)}
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithEndpoint(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, entry.Voice, opts...)
	})

	// Debug log of all registered providers.
	for kind, names := range reg.Names() {
		slog.Debug("registered providers", "kind", kind, "names", names)
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = p
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	var err error
	if ps.STT, err = buildChain("stt", cfg.Providers.STT, reg.CreateSTT); err != nil {
		return nil, err
	}
	if ps.Translate, err = buildChain("translate", cfg.Providers.Translate, reg.CreateTranslate); err != nil {
		return nil, err
	}
	if ps.TTS, err = buildChain("tts", cfg.Providers.TTS, reg.CreateTTS); err != nil {
		return nil, err
	}
	return ps, nil
}

// buildChain creates the primary and every fallback of chain.
func buildChain[T any](kind string, chain config.ProviderChain, create func(config.ProviderEntry) (T, error)) ([]app.Named[T], error) {
	var out []app.Named[T]
	for i, entry := range chain.Entries() {
		p, err := create(entry)
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
		}
		out = append(out, app.Named[T]{Name: entry.Name, Provider: p})
		slog.Info("provider created", "kind", kind, "name", entry.Name, "fallback", i > 0)
	}
	return out, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, ps *app.Providers) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        railvox  startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	embName := cfg.Providers.Embeddings.Name
	if embName == "" {
		embName = "hashing"
	}
	printProvider("Embeddings", embName, cfg.Providers.Embeddings.Model)
	printProvider("STT", chainNames(ps.STT), "")
	printProvider("Translate", chainNames(ps.Translate), "")
	printProvider("TTS", chainNames(ps.TTS), "")
	backend := "mock"
	if cfg.Backend.URL != "" {
		backend = cfg.Backend.URL
	}
	printProvider("Backend", backend, "")
	sessions := "memory"
	if cfg.Session.PostgresDSN != "" {
		sessions = "postgres"
	}
	printProvider("Sessions", sessions, "")
	fmt.Printf("║  Stations       : %-19d ║\n", len(cfg.NLU.StationNames()))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr    : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func chainNames[T any](chain []app.Named[T]) string {
	var s string
	for i, n := range chain {
		if i > 0 {
			s += " > "
		}
		s += n.Name
	}
	return s
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if r := []rune(value); len(r) > 19 {
		value = string(r[:16]) + "…"
	}
	fmt.Printf("║  %-12s   : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer from a provider Options map. YAML decodes
// numbers into int; anything else yields 0.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
