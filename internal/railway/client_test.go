package railway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/railvox/internal/nlu"
)

func TestClient_Handle(t *testing.T) {
	t.Parallel()

	var gotBody, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ActionsPath {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		gotBody, gotAuth = string(b), r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Result{Type: TypeStatus, Fields: map[string]any{"train_no": "12218", "status": "on time"}})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/", WithToken("t0k"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	res, err := c.Handle(context.Background(), nlu.TrainStatus{TrainNo: "12218"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Type != TypeStatus || res.String("status") != "on time" {
		t.Errorf("Handle = %+v", res)
	}
	if gotBody != `{"action":"get_status","train_no":"12218"}` {
		t.Errorf("body = %s", gotBody)
	}
	if gotAuth != "Bearer t0k" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{name: "server error", status: http.StatusBadGateway, body: "upstream down", wantSub: "upstream down"},
		{name: "bad json", status: http.StatusOK, body: "{", wantSub: "decode"},
		{name: "missing type", status: http.StatusOK, body: `{"fare":1}`, wantSub: "without type"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			t.Cleanup(srv.Close)

			c, _ := NewClient(srv.URL)
			_, err := c.Handle(context.Background(), nlu.Fare{Origin: "Kannur", Destination: "Mumbai"})
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("err = %v, want containing %q", err, tc.wantSub)
			}
		})
	}

	if _, err := NewClient(""); err == nil {
		t.Error("NewClient(\"\"): want error")
	}
}
