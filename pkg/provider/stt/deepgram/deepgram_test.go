package deepgram

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/railvox/pkg/audio"
	"github.com/MrWong99/railvox/pkg/provider/stt"
)

func speech(samples int) []byte {
	b := make([]byte, samples*2)
	for i := range samples {
		v := int16(4000)
		if i%2 == 1 {
			v = -4000
		}
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

// fakeServer accepts one stream, counts binary frames until CloseStream and
// then replays replies before closing normally.
type fakeServer struct {
	replies []string

	mu     sync.Mutex
	frames int
	bytes  int
	query  url.Values
	auth   string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.query = r.URL.Query()
	f.auth = r.Header.Get("Authorization")
	f.mu.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ == websocket.MessageText && strings.Contains(string(msg), "CloseStream") {
			break
		}
		f.mu.Lock()
		f.frames++
		f.bytes += len(msg)
		f.mu.Unlock()
	}
	for _, reply := range f.replies {
		if err := conn.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func newFake(t *testing.T, replies ...string) (*fakeServer, string) {
	t.Helper()
	f := &fakeServer{replies: replies}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, "ws" + strings.TrimPrefix(srv.URL, "http")
}

const (
	interimMsg  = `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"next train","confidence":0.5}]}}`
	finalMsg1   = `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"next train to Chennai","confidence":0.9,"languages":["en"]}]}}`
	finalMsg2   = `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"tomorrow","confidence":0.7}]}}`
	metadataMsg = `{"type":"Metadata","request_id":"abc"}`
)

func TestTranscribe(t *testing.T) {
	t.Parallel()

	f, endpoint := newFake(t, interimMsg, finalMsg1, finalMsg2, metadataMsg)
	p, err := New("secret", WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pcm := speech(4800) // 300 ms at 16 kHz
	tr, err := p.Transcribe(context.Background(), pcm, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "next train to Chennai tomorrow" {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Language != "en" {
		t.Errorf("Language = %q, want en", tr.Language)
	}
	if tr.Confidence < 0.79 || tr.Confidence > 0.81 {
		t.Errorf("Confidence = %v, want 0.8", tr.Confidence)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frames != 3 {
		t.Errorf("server got %d audio frames, want 3", f.frames)
	}
	if f.bytes != len(pcm) {
		t.Errorf("server got %d audio bytes, want %d", f.bytes, len(pcm))
	}
	if f.auth != "Token secret" {
		t.Errorf("Authorization = %q", f.auth)
	}
	if f.query.Get("language") != multiLanguage {
		t.Errorf("language = %q, want %q", f.query.Get("language"), multiLanguage)
	}
}

func TestTranscribe_HintUsedWhenUndetected(t *testing.T) {
	t.Parallel()

	f, endpoint := newFake(t, finalMsg2)
	p, _ := New("k", WithEndpoint(endpoint))
	tr, err := p.Transcribe(context.Background(), speech(1600), "ml")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Language != "ml" {
		t.Errorf("Language = %q, want ml", tr.Language)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.query.Get("language") != "ml" {
		t.Errorf("language query = %q, want ml", f.query.Get("language"))
	}
}

func TestTranscribe_NoFinalResults(t *testing.T) {
	t.Parallel()

	_, endpoint := newFake(t, interimMsg, metadataMsg)
	p, _ := New("k", WithEndpoint(endpoint))
	if _, err := p.Transcribe(context.Background(), speech(1600), ""); !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("Transcribe = %v, want ErrNoSpeech", err)
	}
}

func TestTranscribe_SilenceNotSent(t *testing.T) {
	t.Parallel()

	p, _ := New("k", WithEndpoint("ws://127.0.0.1:1/unreachable"))
	if _, err := p.Transcribe(context.Background(), make([]byte, 3200), ""); !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("Transcribe(silence) = %v, want ErrNoSpeech", err)
	}
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	p, err := New("k", WithModel("nova-2"), WithLanguage("hi"), WithKeyterms("Kannur", "Kozhikode"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := p.buildURL(audio.Format{SampleRate: 8000, Channels: 1}, "")
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()

	want := map[string]string{
		"model":        "nova-2",
		"language":     "hi",
		"punctuate":    "true",
		"smart_format": "true",
		"encoding":     "linear16",
		"sample_rate":  "8000",
		"channels":     "1",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if got := q["keyterm"]; len(got) != 2 || got[0] != "Kannur" || got[1] != "Kozhikode" {
		t.Errorf("keyterm = %v", got)
	}

	raw, _ = p.buildURL(audio.Speech, "ta")
	u, _ = url.Parse(raw)
	if got := u.Query().Get("language"); got != "ta" {
		t.Errorf("language with hint = %q, want ta", got)
	}
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		ok   bool
		want result
	}{
		{name: "final", msg: finalMsg1, ok: true, want: result{text: "next train to Chennai", confidence: 0.9, language: "en"}},
		{name: "interim", msg: interimMsg},
		{name: "metadata", msg: metadataMsg},
		{name: "empty transcript", msg: `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"  "}]}}`},
		{name: "no alternatives", msg: `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`},
		{name: "invalid", msg: `{not json`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseResponse([]byte(tc.msg))
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Errorf("parseResponse = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNew_EmptyKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\"): want error")
	}
}
