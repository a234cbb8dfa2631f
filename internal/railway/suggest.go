package railway

import "github.com/sahilm/fuzzy"

// Suggest returns up to n station names from stations that fuzzily match
// query, best match first. Matching is subsequence based, so "kzkd" finds
// "Kozhikode". An empty query matches nothing.
func Suggest(stations []string, query string, n int) []string {
	if query == "" || n <= 0 {
		return nil
	}
	matches := fuzzy.Find(query, stations)
	out := make([]string, 0, min(n, len(matches)))
	for _, m := range matches {
		if len(out) == n {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
