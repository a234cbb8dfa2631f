package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/railvox/internal/app"
	"github.com/MrWong99/railvox/internal/assistant"
	"github.com/MrWong99/railvox/internal/config"
	"github.com/MrWong99/railvox/internal/nlu"
	"github.com/MrWong99/railvox/internal/observe"
	"github.com/MrWong99/railvox/internal/railway"
	sessionmock "github.com/MrWong99/railvox/internal/session/mock"
	"github.com/MrWong99/railvox/pkg/audio"
	embmock "github.com/MrWong99/railvox/pkg/provider/embeddings/mock"
	"github.com/MrWong99/railvox/pkg/provider/translate"
	trmock "github.com/MrWong99/railvox/pkg/provider/translate/mock"
	"github.com/MrWong99/railvox/pkg/provider/tts"
	ttsmock "github.com/MrWong99/railvox/pkg/provider/tts/mock"
)

// testConfig returns an offline config: hashing embedder, mock backend,
// in-memory sessions.
func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		Session: config.SessionConfig{DefaultOrigin: "Kozhikode"},
		Backend: config.BackendConfig{Seed: 42},
	}
}

// timingProviders embeds every text to the same vector, so every intent
// ties and the classifier always answers train_timing.
func timingProviders() *app.Providers {
	return &app.Providers{Embeddings: &embmock.Provider{
		EmbedFunc:       func(string) []float32 { return []float32{1, 1} },
		DimensionsValue: 2,
		ModelIDValue:    "constant",
	}}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newApp(t *testing.T, cfg *config.Config, providers *app.Providers, opts ...app.Option) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, providers, append([]app.Option{app.WithMetrics(testMetrics(t))}, opts...)...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

// serve runs a on a loopback listener until the test ends and returns its
// base URL.
func serve(t *testing.T, a *app.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve returned %v, want context.Canceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	})
	return "http://" + ln.Addr().String()
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, out
}

func TestNew_Offline(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(), nil)
	reply, err := a.Assistant().Resolve(context.Background(), assistant.Input{Text: "trains from Kannur to Mumbai"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if reply.Entities.Origin != "Kannur" || reply.Entities.Destination != "Mumbai" {
		t.Errorf("entities = %+v", reply.Entities)
	}
	if !reply.Classification.Intent.IsValid() {
		t.Errorf("intent = %q", reply.Classification.Intent)
	}
}

func TestNew_SessionDefaultOrigin(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(), timingProviders())
	reply, err := a.Assistant().Handle(context.Background(), assistant.Input{SessionID: "s1", Text: "trains to Mumbai"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	want := nlu.NextTrainTime{Origin: "Kozhikode", Destination: "Mumbai"}
	if reply.Request != want {
		t.Errorf("request = %#v, want %#v", reply.Request, want)
	}
	if reply.Result.Type != railway.TypeNextTrain {
		t.Errorf("result = %q, want next_train", reply.Result.Type)
	}
}

func TestNew_AnonymousDefaultOrigin(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(), timingProviders())
	reply, err := a.Assistant().Handle(context.Background(), assistant.Input{Text: "trains to Chennai"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	want := nlu.NextTrainTime{Origin: "Kozhikode", Destination: "Chennai"}
	if reply.Request != want {
		t.Errorf("request = %#v, want %#v", reply.Request, want)
	}
	if reply.Result.Type != railway.TypeNextTrain {
		t.Errorf("result = %q, want next_train", reply.Result.Type)
	}
}

func TestServe_Routes(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(), nil)
	base := serve(t, a)

	status, out := getJSON(t, base+"/healthz")
	if status != http.StatusOK || out["status"] != "ok" {
		t.Errorf("healthz = %d %v", status, out)
	}
	status, out = getJSON(t, base+"/readyz")
	if status != http.StatusOK {
		t.Errorf("readyz = %d %v", status, out)
	}
	status, out = getJSON(t, base+"/v1/stations?q=kzkd")
	if status != http.StatusOK {
		t.Fatalf("stations = %d", status)
	}
	if list, _ := out["stations"].([]any); len(list) == 0 || list[0] != "Kozhikode" {
		t.Errorf("stations = %v", out["stations"])
	}

	resp, err := http.Post(base+"/v1/actions", "application/json", strings.NewReader(`{"action":"get_route","train_no":"12618"}`))
	if err != nil {
		t.Fatalf("POST /v1/actions: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Train 12618 stops at") {
		t.Errorf("actions = %d %s", resp.StatusCode, body)
	}
}

func TestServe_MetricsHandler(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	a := newApp(t, testConfig(), nil, app.WithMetricsHandler(metrics))
	base := serve(t, a)
	if status, out := getJSON(t, base+"/metrics"); status != http.StatusOK || out["ok"] != true {
		t.Errorf("metrics = %d %v", status, out)
	}
}

func TestReadyz_DegradedSessions(t *testing.T) {
	t.Parallel()

	store := &sessionmock.Store{}
	store.SetErrors(errors.New("db down"), errors.New("db down"))
	a := newApp(t, testConfig(), timingProviders(), app.WithSessionStore(store))
	base := serve(t, a)

	if _, err := a.Assistant().Handle(context.Background(), assistant.Input{SessionID: "s1", Text: "fare from Kannur to Mumbai"}); err != nil {
		t.Fatalf("Handle with failing store: %v", err)
	}
	status, out := getJSON(t, base+"/readyz")
	if status != http.StatusOK || out["status"] != "degraded" {
		t.Errorf("readyz = %d %v, want 200 degraded", status, out)
	}
}

func TestProviders_FallbackChain(t *testing.T) {
	t.Parallel()

	providers := &app.Providers{
		TTS: []app.Named[tts.Synthesizer]{
			{Name: "broken", Provider: &ttsmock.Synthesizer{Err: errors.New("offline")}},
			{Name: "spare", Provider: &ttsmock.Synthesizer{}},
		},
		Translate: []app.Named[translate.Translator]{
			{Name: "broken", Provider: &trmock.Translator{Err: errors.New("quota")}},
		},
	}
	a := newApp(t, testConfig(), providers)

	reply, err := a.Assistant().Handle(context.Background(), assistant.Input{Text: "pnr 4521873690", Language: "hi", Speak: true})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	// Translation fell through unchanged, synthesis used the spare.
	if reply.Utterance != "pnr 4521873690" || reply.Text != reply.English {
		t.Errorf("utterance %q text %q english %q", reply.Utterance, reply.Text, reply.English)
	}
	if _, err := audio.DecodeWAV(reply.Audio); err != nil {
		t.Errorf("reply audio: %v", err)
	}
}

func TestReload(t *testing.T) {
	t.Parallel()

	var lv slog.LevelVar
	old := testConfig()
	a := newApp(t, old, nil, app.WithLevelVar(&lv))

	cur := testConfig()
	cur.Server.LogLevel = config.LogDebug
	cur.Respond.Templates = map[string]string{string(railway.TypeRoute): "Route of {{.train_no}}."}
	a.Reload(old, cur)

	if lv.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", lv.Level())
	}
	reply, err := a.Assistant().Answer(context.Background(), nlu.RouteInfo{TrainNo: "16345"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply.Text != "Route of 16345." {
		t.Errorf("text = %q", reply.Text)
	}

	// A broken template keeps the previous formatter.
	bad := testConfig()
	bad.Server.LogLevel = config.LogDebug
	bad.Respond.Templates = map[string]string{string(railway.TypeRoute): "{{.train_no"}
	a.Reload(cur, bad)
	reply, err = a.Assistant().Answer(context.Background(), nlu.RouteInfo{TrainNo: "16345"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply.Text != "Route of 16345." {
		t.Errorf("text after bad reload = %q", reply.Text)
	}
}

func TestRun_ListenError(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.ListenAddr = "256.0.0.1:99999"
	a := newApp(t, cfg, nil)
	if err := a.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "app: listen") {
		t.Errorf("Run = %v, want listen error", err)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(), nil)
	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
