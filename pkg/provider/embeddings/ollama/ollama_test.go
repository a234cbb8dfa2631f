package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/railvox/pkg/provider/embeddings/ollama"
)

type embedBody struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	KeepAlive string   `json:"keep_alive"`
	Truncate  *bool    `json:"truncate"`
}

// embedServer answers /api/embed with the first len(input) vectors of
// responses and stores the last decoded request in *got.
func embedServer(t *testing.T, responses [][]float32, got *embedBody) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var req embedBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got != nil {
			*got = req
		}
		result := responses
		if len(result) > len(req.Input) {
			result = result[:len(req.Input)]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	var got embedBody
	srv := embedServer(t, [][]float32{{0.1, 0.2, 0.3}}, &got)
	p, err := ollama.New(srv.URL+"/", "bge-m3", ollama.WithKeepAlive("30m"), ollama.WithTruncate(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vec, err := p.Embed(context.Background(), "next train to Kannur")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("Embed = %v", vec)
	}
	if got.Model != "bge-m3" || len(got.Input) != 1 || got.Input[0] != "next train to Kannur" {
		t.Errorf("request = %+v", got)
	}
	if got.KeepAlive != "30m" || got.Truncate == nil || *got.Truncate {
		t.Errorf("keep_alive/truncate = %q/%v", got.KeepAlive, got.Truncate)
	}
}

func TestEmbedBatch(t *testing.T) {
	t.Parallel()

	vecs := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	srv := embedServer(t, vecs, nil)
	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i := range vecs {
		if got[i][0] != vecs[i][0] || got[i][1] != vecs[i][1] {
			t.Errorf("vector %d = %v, want %v", i, got[i], vecs[i])
		}
	}

	if got, err := p.EmbedBatch(context.Background(), nil); got != nil || err != nil {
		t.Errorf("EmbedBatch(nil) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := embedServer(t, [][]float32{{1}}, nil)
	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.EmbedBatch(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("EmbedBatch: want error when the server returns fewer vectors")
	}
}

func TestDimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		opts  []ollama.Option
		want  int
	}{
		{model: "nomic-embed-text:latest", want: 768},
		{model: "bge-m3", want: 1024},
		{model: "paraphrase-multilingual", want: 768},
		{model: "all-minilm", want: 384},
		{model: "custom", opts: []ollama.Option{ollama.WithDimensions(256)}, want: 256},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			t.Parallel()
			// Unreachable server: no probe may be issued.
			p, err := ollama.New("http://127.0.0.1:19999", tc.model, tc.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := p.Dimensions(); got != tc.want {
				t.Errorf("Dimensions() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDimensions_ProbesOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{make([]float32, 512)}})
	}))
	t.Cleanup(srv.Close)

	p, err := ollama.New(srv.URL, "custom-embed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for range 3 {
		if got := p.Dimensions(); got != 512 {
			t.Errorf("Dimensions() = %d, want 512", got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("probe requests = %d, want 1", n)
	}
}

func TestEmbed_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "status", handler: func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}},
		{name: "malformed json", handler: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not-json"))
		}},
		{name: "no embeddings", handler: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings":[]}`))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tc.handler)
			t.Cleanup(srv.Close)
			p, err := ollama.New(srv.URL, "nomic-embed-text")
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if _, err := p.Embed(context.Background(), "hello"); err == nil {
				t.Fatal("Embed: want error")
			}
		})
	}
}

func TestEmbed_ContextCancelled(t *testing.T) {
	t.Parallel()

	stop := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-stop:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(stop) })

	p, err := ollama.New(srv.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := p.Embed(ctx, "hello"); err == nil {
		t.Fatal("Embed: want error after deadline")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	t.Parallel()

	if _, err := ollama.New("", ""); err == nil {
		t.Fatal("New with empty model: want error")
	}
}
