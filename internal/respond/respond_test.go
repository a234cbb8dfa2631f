package respond

import (
	"strings"
	"testing"

	"github.com/MrWong99/railvox/internal/railway"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  railway.Result
		want string
	}{
		{
			name: "next train",
			res: railway.Result{Type: railway.TypeNextTrain, Fields: map[string]any{
				"origin": "Kannur", "destination": "Mumbai", "date": "2026-03-02",
				"train_no": "16346", "train_name": "Netravati Express",
				"departure_time": "10:15", "arrival_time": "22:40", "platform": 2,
			}},
			want: "The next train from Kannur to Mumbai on 2026-03-02 is 16346 Netravati Express, leaving at 10:15 from platform 2 and arriving at 22:40.",
		},
		{
			name: "trains between",
			res: railway.Result{Type: railway.TypeTrainsBetween, Fields: map[string]any{
				"origin": "Kochi", "destination": "Chennai", "date": "2026-03-02",
				"trains": []railway.Train{
					{Number: "12624", Name: "Chennai Mail", Departure: "06:10"},
					{Number: "12696", Name: "Kerala Express", Departure: "14:20"},
					{Number: "22640", Name: "Maveli Express", Departure: "19:05"},
				},
			}},
			want: "3 trains run from Kochi to Chennai on 2026-03-02: 12624 Chennai Mail at 06:10, 12696 Kerala Express at 14:20 and 22640 Maveli Express at 19:05.",
		},
		{
			name: "trains between decoded json",
			res: railway.Result{Type: railway.TypeTrainsBetween, Fields: map[string]any{
				"origin": "Kochi", "destination": "Chennai", "date": "2026-03-02",
				"trains": []any{map[string]any{"train_no": "12624", "name": "Chennai Mail", "departure_time": "06:10"}},
			}},
			want: "1 trains run from Kochi to Chennai on 2026-03-02: 12624 Chennai Mail at 06:10.",
		},
		{
			name: "no trains",
			res: railway.Result{Type: railway.TypeTrainsBetween, Fields: map[string]any{
				"origin": "Kochi", "destination": "Chennai", "date": "2026-03-02",
			}},
			want: "I found no trains from Kochi to Chennai on 2026-03-02.",
		},
		{
			name: "late train",
			res: railway.Result{Type: railway.TypeStatus, Fields: map[string]any{
				"train_no": "12218", "status": "running late", "delay_minutes": 25, "current_station": "Shoranur",
			}},
			want: "Train 12218 is running late by 25 minutes, last reported at Shoranur.",
		},
		{
			name: "on time from json",
			res: railway.Result{Type: railway.TypeStatus, Fields: map[string]any{
				"train_no": "12218", "status": "on time", "delay_minutes": 0.0,
			}},
			want: "Train 12218 is on time.",
		},
		{
			name: "pnr confirmed",
			res: railway.Result{Type: railway.TypePNR, Fields: map[string]any{
				"pnr": "4521678903", "status": "confirmed", "coach": "S4", "berth": 33,
			}},
			want: "PNR 4521678903 is confirmed, coach S4, berth 33.",
		},
		{
			name: "pnr rac",
			res: railway.Result{Type: railway.TypePNR, Fields: map[string]any{
				"pnr": "4521678903", "status": "RAC", "coach": "S1", "berth": 7,
			}},
			want: "PNR 4521678903 is on RAC, coach S1, berth 7.",
		},
		{
			name: "pnr waitlisted",
			res: railway.Result{Type: railway.TypePNR, Fields: map[string]any{
				"pnr": "4521678903", "status": "waitlisted", "waitlist_position": 12,
			}},
			want: "PNR 4521678903 is waitlisted at position 12.",
		},
		{
			name: "route",
			res: railway.Result{Type: railway.TypeRoute, Fields: map[string]any{
				"train_no": "16604", "route": []string{"Kannur", "Kozhikode", "Thrissur"}, "total_stops": 3,
			}},
			want: "Train 16604 stops at Kannur, Kozhikode and Thrissur, 3 stops in total.",
		},
		{
			name: "fare",
			res: railway.Result{Type: railway.TypeFare, Fields: map[string]any{
				"origin": "Kannur", "destination": "Mumbai", "class": "3A", "fare": 1240, "currency": "INR",
			}},
			want: "The 3A fare from Kannur to Mumbai is INR 1240.",
		},
		{
			name: "fare from json on train",
			res: railway.Result{Type: railway.TypeFare, Fields: map[string]any{
				"origin": "Kannur", "destination": "Mumbai", "class": "SL", "fare": 420.0, "currency": "INR", "train_no": "12618",
			}},
			want: "The SL fare from Kannur to Mumbai on train 12618 is INR 420.",
		},
		{
			name: "clarify",
			res:  railway.Clarify("get_next_train_time", "origin", "destination"),
			want: "To answer that I need where you are starting from and where you want to go.",
		},
		{
			name: "clarify pnr",
			res:  railway.Clarify("check_pnr", "pnr"),
			want: "To answer that I need your 10-digit PNR number.",
		},
		{
			name: "unknown",
			res:  railway.Result{Type: railway.TypeUnknown},
			want: "Sorry, I did not understand. You can ask about train timings, running status, PNR status, fares or routes.",
		},
		{
			name: "unsupported type",
			res:  railway.Result{Type: "weather"},
			want: Fallback,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Format(tc.res); got != tc.want {
				t.Errorf("Format =\n  %q\nwant\n  %q", got, tc.want)
			}
		})
	}
}

func TestNewFormatter_Overrides(t *testing.T) {
	t.Parallel()

	f, err := NewFormatter(map[railway.ResultType]string{
		railway.TypeFare: `Fare: {{.fare}} rupees.`,
	})
	if err != nil {
		t.Fatalf("NewFormatter: %v", err)
	}
	got, err := f.Format(railway.Result{Type: railway.TypeFare, Fields: map[string]any{"fare": 900}})
	if err != nil || got != "Fare: 900 rupees." {
		t.Errorf("Format = %q, %v", got, err)
	}
	// Types without an override keep the default.
	if got, _ := f.Format(railway.Result{Type: railway.TypeUnknown}); !strings.HasPrefix(got, "Sorry") {
		t.Errorf("default template lost: %q", got)
	}

	if _, err := NewFormatter(map[railway.ResultType]string{railway.TypeRoute: "{{.route"}); err == nil {
		t.Error("bad template: want error")
	}
}
