package nlu

import "testing"

func TestTokenSetRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    string
		wantMin float64
		wantMax float64
	}{
		{name: "identical", a: "Kannur", b: "Kannur", wantMin: 100, wantMax: 100},
		{name: "case and punctuation", a: "KANNUR!", b: "kannur", wantMin: 100, wantMax: 100},
		{name: "subset", a: "from Kannur", b: "Kannur", wantMin: 100, wantMax: 100},
		{name: "word order", a: "Delhi New", b: "New Delhi", wantMin: 100, wantMax: 100},
		{name: "misspelling", a: "Chenai", b: "Chennai", wantMin: 90, wantMax: 93},
		{name: "diacritics", a: "Thrissūr", b: "Thrissur", wantMin: 100, wantMax: 100},
		{name: "unrelated", a: "Kochi", b: "Kozhikode", wantMin: 0, wantMax: 70},
		{name: "empty", a: "", b: "Kannur", wantMin: 0, wantMax: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := TokenSetRatio(tc.a, tc.b)
			if got < tc.wantMin || got > tc.wantMax {
				t.Errorf("TokenSetRatio(%q, %q) = %.2f, want in [%.0f, %.0f]", tc.a, tc.b, got, tc.wantMin, tc.wantMax)
			}
		})
	}
}

func TestTokenSetMatcher_Best(t *testing.T) {
	t.Parallel()

	m := TokenSetMatcher{}

	match, score := m.Best("Mumbay", testStations)
	if match != "Mumbai" {
		t.Errorf("Best(%q) = %q, want %q", "Mumbay", match, "Mumbai")
	}
	if score <= DefaultFuzzyThreshold {
		t.Errorf("Best(%q) score = %.2f, want > %.0f", "Mumbay", score, DefaultFuzzyThreshold)
	}

	if match, score := m.Best("anything", nil); match != "" || score != 0 {
		t.Errorf("Best with no candidates = (%q, %.2f), want (\"\", 0)", match, score)
	}
}

func TestTokenSetMatcher_TieKeepsFirstCandidate(t *testing.T) {
	t.Parallel()

	match, _ := TokenSetMatcher{}.Best("Mumbai Chennai", []string{"Chennai", "Mumbai"})
	if match != "Chennai" {
		t.Errorf("Best tie = %q, want first candidate %q", match, "Chennai")
	}
}
