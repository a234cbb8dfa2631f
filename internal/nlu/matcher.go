package nlu

import (
	"cmp"
	"regexp"
	"slices"
	"time"
	"unicode"
	"unicode/utf8"
)

// DefaultFuzzyThreshold is the score a station match must exceed (0–100).
const DefaultFuzzyThreshold = 70.0

var (
	wordRe  = regexp.MustCompile(`\p{L}+`)
	digitRe = regexp.MustCompile(`[0-9]+`)
)

// StationMatch is a gazetteer station found in text.
type StationMatch struct {
	// Name is the canonical gazetteer spelling.
	Name string `json:"name"`

	// Offset is the byte offset of the earliest text span that matched Name.
	Offset int `json:"offset"`

	// Score is the best fuzzy score observed for Name (0–100).
	Score float64 `json:"score"`
}

// MatcherOption configures a [Matcher].
type MatcherOption func(*Matcher)

// WithFuzzyMatcher replaces the default [TokenSetMatcher].
func WithFuzzyMatcher(f FuzzyMatcher) MatcherOption {
	return func(m *Matcher) {
		m.fuzzy = f
	}
}

// WithFuzzyThreshold sets the score a match must exceed. Default: 70.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithDateParser replaces the default natural-language date parser.
func WithDateParser(p DateParser) MatcherOption {
	return func(m *Matcher) {
		m.dates = p
	}
}

// WithClock sets the reference clock for relative dates such as "tomorrow".
func WithClock(now func() time.Time) MatcherOption {
	return func(m *Matcher) {
		m.now = now
	}
}

// Matcher extracts stations, train numbers, PNRs and dates from text.
// It is read-only after construction and safe for concurrent use.
type Matcher struct {
	gazetteer *Gazetteer
	fuzzy     FuzzyMatcher
	threshold float64
	dates     DateParser
	now       func() time.Time
}

// NewMatcher returns a [Matcher] over g.
func NewMatcher(g *Gazetteer, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		gazetteer: g,
		fuzzy:     TokenSetMatcher{},
		threshold: DefaultFuzzyThreshold,
		dates:     NewWhenParser(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Gazetteer returns the station list the matcher works against.
func (m *Matcher) Gazetteer() *Gazetteer { return m.gazetteer }

// FindTrainNo returns the first run of 4 to 6 consecutive digits in text, or
// "" when there is none. Longer runs are never split: a 10-digit PNR is not a
// train number.
func (m *Matcher) FindTrainNo(text string) string {
	return firstDigitRun(text, 4, 6)
}

// FindPNR returns the first run of exactly 10 digits in text, or "".
func (m *Matcher) FindPNR(text string) string {
	return firstDigitRun(text, 10, 10)
}

// FindDate returns the first date expression in text as YYYY-MM-DD, or "".
// Relative expressions are resolved against the matcher's clock.
func (m *Matcher) FindDate(text string) string {
	if m.dates == nil {
		return ""
	}
	t, ok := m.dates.ParseDate(text, m.now())
	if !ok {
		return ""
	}
	return t.Format(time.DateOnly)
}

// FindStations returns every gazetteer station found anywhere in text,
// ordered by first occurrence.
//
// Candidates are the capitalised words of text plus every pair of adjacent
// words, so that multi-word names like "New Delhi" are found. A candidate
// matches when its best fuzzy score exceeds the threshold.
func (m *Matcher) FindStations(text string) []StationMatch {
	found := make(map[string]StationMatch)
	for _, c := range candidates(text) {
		name, score := m.fuzzy.Best(c.text, m.gazetteer.names)
		if score <= m.threshold {
			continue
		}
		offset := m.anchor(c, name)
		prev, seen := found[name]
		if !seen {
			found[name] = StationMatch{Name: name, Offset: offset, Score: score}
			continue
		}
		prev.Offset = min(prev.Offset, offset)
		prev.Score = max(prev.Score, score)
		found[name] = prev
	}

	out := make([]StationMatch, 0, len(found))
	for _, sm := range found {
		out = append(out, sm)
	}
	slices.SortFunc(out, func(a, b StationMatch) int {
		return cmp.Or(cmp.Compare(a.Offset, b.Offset), cmp.Compare(a.Name, b.Name))
	})
	return out
}

// MatchSegment returns the best station for a text segment such as the words
// following "from". The whole segment and each of its candidates are scored;
// the highest score wins if it exceeds the threshold.
func (m *Matcher) MatchSegment(segment string) (StationMatch, bool) {
	best := StationMatch{Score: -1}
	try := func(text string, offset int) {
		name, score := m.fuzzy.Best(text, m.gazetteer.names)
		if score > best.Score {
			best = StationMatch{Name: name, Offset: offset, Score: score}
		}
	}
	try(segment, 0)
	for _, c := range candidates(segment) {
		try(c.text, c.offset)
	}
	if best.Name == "" || best.Score <= m.threshold {
		return StationMatch{}, false
	}
	return best, true
}

// anchor returns the offset of the word in c that carries the match with
// name. For a word pair this is the word scoring higher on its own, so that
// "Mumbai Chennai" places Chennai at the second word.
func (m *Matcher) anchor(c candidate, name string) int {
	if c.second == "" {
		return c.offset
	}
	one := []string{name}
	_, first := m.fuzzy.Best(c.first, one)
	_, second := m.fuzzy.Best(c.second, one)
	if second > first {
		return c.secondOffset
	}
	return c.offset
}

// candidate is a word or word pair considered for station matching.
type candidate struct {
	text   string
	offset int

	// Set for word pairs only.
	first, second string
	secondOffset  int
}

func candidates(text string) []candidate {
	locs := wordRe.FindAllStringIndex(text, -1)
	var out []candidate
	for i, loc := range locs {
		word := text[loc[0]:loc[1]]
		if r, _ := utf8.DecodeRuneInString(word); unicode.IsUpper(r) {
			out = append(out, candidate{text: word, offset: loc[0]})
		}
		if i+1 < len(locs) {
			next := locs[i+1]
			nextWord := text[next[0]:next[1]]
			out = append(out, candidate{
				text:         word + " " + nextWord,
				offset:       loc[0],
				first:        word,
				second:       nextWord,
				secondOffset: next[0],
			})
		}
	}
	return out
}

func firstDigitRun(text string, minLen, maxLen int) string {
	for _, run := range digitRe.FindAllString(text, -1) {
		if len(run) >= minLen && len(run) <= maxLen {
			return run
		}
	}
	return ""
}
