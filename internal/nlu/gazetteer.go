package nlu

import (
	"errors"
	"slices"
	"strings"
)

// DefaultStations is the built-in gazetteer used when no station list is
// configured.
var DefaultStations = []string{
	"Kannur",
	"Kozhikode",
	"Mumbai",
	"Chennai",
	"Thrissur",
	"Ernakulam",
	"Thiruvananthapuram",
	"Kollam",
	"Palakkad",
	"Kasaragod",
	"Shoranur",
	"Kottayam",
	"Alappuzha",
	"Mangaluru",
	"Bengaluru",
	"Coimbatore",
	"Madgaon",
	"Hyderabad",
	"Howrah",
	"New Delhi",
}

// Gazetteer is an ordered set of known station names. It is immutable after
// construction and safe for concurrent use.
type Gazetteer struct {
	names []string
	index map[string]string // folded name → canonical name
}

// NewGazetteer builds a [Gazetteer] from names. Surrounding whitespace is
// trimmed; names that differ only by case keep their first spelling.
func NewGazetteer(names []string) (*Gazetteer, error) {
	g := &Gazetteer{index: make(map[string]string, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := normalize(n)
		if _, dup := g.index[key]; dup {
			continue
		}
		g.index[key] = n
		g.names = append(g.names, n)
	}
	if len(g.names) == 0 {
		return nil, errors.New("nlu: gazetteer is empty")
	}
	return g, nil
}

// Names returns the station names in their original order.
func (g *Gazetteer) Names() []string {
	return slices.Clone(g.names)
}

// Len returns the number of stations.
func (g *Gazetteer) Len() int { return len(g.names) }

// Lookup returns the canonical spelling of name, ignoring case and
// diacritics.
func (g *Gazetteer) Lookup(name string) (string, bool) {
	canonical, ok := g.index[normalize(name)]
	return canonical, ok
}
