package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/railvox/internal/nlu"
	"github.com/MrWong99/railvox/internal/session"
	"github.com/MrWong99/railvox/internal/session/mock"
)

func TestApplyOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stored  map[string]string
		req     nlu.Request
		want    nlu.Request
		wantRec string
	}{
		{
			name:   "fills missing origin",
			stored: map[string]string{"s1": "Kozhikode"},
			req:    nlu.NextTrainTime{Destination: "Chennai"},
			want:   nlu.NextTrainTime{Origin: "Kozhikode", Destination: "Chennai"},
		},
		{
			name:    "records resolved origin",
			stored:  map[string]string{"s1": "Kozhikode"},
			req:     nlu.Fare{Origin: "Kannur", Destination: "Mumbai"},
			want:    nlu.Fare{Origin: "Kannur", Destination: "Mumbai"},
			wantRec: "Kannur",
		},
		{
			name:   "skips fallback equal to destination",
			stored: map[string]string{"s1": "Chennai"},
			req:    nlu.TrainsBetween{Destination: "Chennai"},
			want:   nlu.TrainsBetween{Destination: "Chennai"},
		},
		{
			name: "no stored origin",
			req:  nlu.TrainsBetween{Destination: "Chennai", Date: "2026-03-02"},
			want: nlu.TrainsBetween{Destination: "Chennai", Date: "2026-03-02"},
		},
		{
			name:   "request without origin field",
			stored: map[string]string{"s1": "Kozhikode"},
			req:    nlu.TrainStatus{TrainNo: "12218"},
			want:   nlu.TrainStatus{TrainNo: "12218"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := &mock.Store{Origins: tc.stored}
			got, err := session.ApplyOrigin(context.Background(), store, "s1", tc.req)
			if err != nil {
				t.Fatalf("ApplyOrigin: %v", err)
			}
			if got != tc.want {
				t.Errorf("ApplyOrigin = %#v, want %#v", got, tc.want)
			}
			if tc.wantRec != "" && store.Origins["s1"] != tc.wantRec {
				t.Errorf("recorded origin = %q, want %q", store.Origins["s1"], tc.wantRec)
			}
		})
	}
}

func TestApplyOrigin_CarryOverAcrossUtterances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := session.NewMemStore("")

	first, err := session.ApplyOrigin(ctx, store, "call-7", nlu.NextTrainTime{Origin: "Kozhikode", Destination: "Mumbai"})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if o, _, _ := nlu.Endpoints(first); o != "Kozhikode" {
		t.Fatalf("first origin = %q", o)
	}

	second, err := session.ApplyOrigin(ctx, store, "call-7", nlu.Fare{Destination: "Chennai"})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if o, _, _ := nlu.Endpoints(second); o != "Kozhikode" {
		t.Errorf("second origin = %q, want Kozhikode", o)
	}

	other, _ := session.ApplyOrigin(ctx, store, "call-8", nlu.Fare{Destination: "Chennai"})
	if o, _, _ := nlu.Endpoints(other); o != "" {
		t.Errorf("other session origin = %q, want empty", o)
	}
}

func TestApplyOrigin_Disabled(t *testing.T) {
	t.Parallel()

	req := nlu.NextTrainTime{Destination: "Chennai"}
	got, err := session.ApplyOrigin(context.Background(), nil, "s1", req)
	if err != nil || got != req {
		t.Fatalf("nil store: %#v, %v", got, err)
	}
	store := &mock.Store{Origins: map[string]string{"": "Kannur"}}
	if got, _ := session.ApplyOrigin(context.Background(), store, "", req); got != req {
		t.Errorf("empty id: %#v", got)
	}
	if store.CallCount("LastOrigin") != 0 {
		t.Error("store consulted without a session id")
	}
}

func TestApplyOrigin_StoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	store := &mock.Store{LastOriginErr: boom, SetLastOriginErr: boom}

	if _, err := session.ApplyOrigin(context.Background(), store, "s1", nlu.Fare{Destination: "Chennai"}); !errors.Is(err, boom) {
		t.Errorf("read err = %v", err)
	}
	if _, err := session.ApplyOrigin(context.Background(), store, "s1", nlu.Fare{Origin: "Kannur"}); !errors.Is(err, boom) {
		t.Errorf("write err = %v", err)
	}

	guarded := session.NewGuard(store, "Kannur")
	got, err := session.ApplyOrigin(context.Background(), guarded, "s1", nlu.Fare{Destination: "Chennai"})
	if err != nil {
		t.Fatalf("guarded: %v", err)
	}
	if o, _, _ := nlu.Endpoints(got); o != "Kannur" {
		t.Errorf("guarded origin = %q, want fallback Kannur", o)
	}
}

func TestApplyOrigin_AnonymousUsesDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name  string
		store session.Store
		req   nlu.Request
		want  nlu.Request
	}{
		{
			name:  "memory default",
			store: session.NewMemStore("Kozhikode"),
			req:   nlu.NextTrainTime{Destination: "Mumbai"},
			want:  nlu.NextTrainTime{Origin: "Kozhikode", Destination: "Mumbai"},
		},
		{
			name:  "guard fallback",
			store: session.NewGuard(&mock.Store{}, "Kannur"),
			req:   nlu.Fare{Destination: "Chennai"},
			want:  nlu.Fare{Origin: "Kannur", Destination: "Chennai"},
		},
		{
			name:  "default equals destination",
			store: session.NewMemStore("Mumbai"),
			req:   nlu.TrainsBetween{Destination: "Mumbai"},
			want:  nlu.TrainsBetween{Destination: "Mumbai"},
		},
		{
			name:  "resolved origin kept",
			store: session.NewMemStore("Kozhikode"),
			req:   nlu.Fare{Origin: "Thrissur", Destination: "Chennai"},
			want:  nlu.Fare{Origin: "Thrissur", Destination: "Chennai"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := session.ApplyOrigin(ctx, tc.store, "", tc.req)
			if err != nil {
				t.Fatalf("ApplyOrigin: %v", err)
			}
			if got != tc.want {
				t.Errorf("ApplyOrigin = %#v, want %#v", got, tc.want)
			}
		})
	}

	// Anonymous queries never record an origin.
	store := session.NewMemStore("Kozhikode")
	if _, err := session.ApplyOrigin(ctx, store, "", nlu.Fare{Origin: "Thrissur"}); err != nil {
		t.Fatalf("ApplyOrigin: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}
