package nlu

import (
	"regexp"
)

// Entities are the values extracted from one utterance. An empty field means
// the value was not found; it never stands for a placeholder.
type Entities struct {
	TrainNo     string   `json:"train_no,omitempty"`
	PNR         string   `json:"pnr,omitempty"`
	Stations    []string `json:"stations,omitempty"`
	Origin      string   `json:"origin,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Date        string   `json:"date,omitempty"`
}

var (
	fromRe = regexp.MustCompile(`(?i)\bfrom\b`)
	toRe   = regexp.MustCompile(`(?i)\bto\b`)
)

// endpoints is the outcome of one disambiguation case.
type endpoints struct {
	origin, destination string
}

// Resolver builds the [Entities] of an utterance. It is read-only and safe
// for concurrent use.
type Resolver struct {
	m *Matcher
}

// NewResolver returns a [Resolver] using m for all extraction.
func NewResolver(m *Matcher) *Resolver {
	return &Resolver{m: m}
}

// Matcher returns the underlying [Matcher].
func (r *Resolver) Matcher() *Matcher { return r.m }

// Resolve extracts train number, PNR, date, stations and the
// origin/destination pair from utterance.
//
// Origin and destination follow the first applicable case:
//
//  1. "from" followed later by "to": the station between them is the
//     origin, the station after "to" the destination. A "to" that only
//     precedes "from" ("to Mumbai from Kannur") leaves the text to case 2.
//  2. only "from": the station after it is the origin; the first other
//     station in the text is the destination.
//  3. only "to": the station after it is the destination; the first other
//     station in the text is the origin.
//  4. neither: the two earliest stations in the text, in order.
//
// A case that applies but finds no station leaves the field empty; later
// cases are not consulted.
func (r *Resolver) Resolve(utterance string) Entities {
	stations := r.m.FindStations(utterance)

	e := Entities{
		TrainNo: r.m.FindTrainNo(utterance),
		PNR:     r.m.FindPNR(utterance),
		Date:    r.m.FindDate(utterance),
	}
	for _, s := range stations {
		e.Stations = append(e.Stations, s.Name)
	}

	var ep endpoints
	for _, c := range []func(string, []StationMatch) (endpoints, bool){
		r.fromTo,
		r.fromOnly,
		r.toOnly,
		r.byPosition,
	} {
		if res, ok := c(utterance, stations); ok {
			ep = res
			break
		}
	}
	if ep.origin != "" && ep.origin == ep.destination {
		ep.destination = ""
	}
	e.Origin, e.Destination = ep.origin, ep.destination
	return e
}

// fromTo handles case 1.
func (r *Resolver) fromTo(text string, _ []StationMatch) (endpoints, bool) {
	from := fromRe.FindStringIndex(text)
	if from == nil {
		return endpoints{}, false
	}
	rest := text[from[1]:]
	to := toRe.FindStringIndex(rest)
	if to == nil {
		return endpoints{}, false
	}

	var ep endpoints
	if sm, ok := r.m.MatchSegment(rest[:to[0]]); ok {
		ep.origin = sm.Name
	}
	if sm, ok := r.m.MatchSegment(rest[to[1]:]); ok {
		ep.destination = sm.Name
	}
	return ep, true
}

// fromOnly handles case 2.
func (r *Resolver) fromOnly(text string, stations []StationMatch) (endpoints, bool) {
	from := fromRe.FindStringIndex(text)
	if from == nil {
		return endpoints{}, false
	}
	var ep endpoints
	if sm, ok := r.m.MatchSegment(text[from[1]:]); ok {
		ep.origin = sm.Name
	}
	ep.destination = firstOther(stations, ep.origin)
	return ep, true
}

// toOnly handles case 3.
func (r *Resolver) toOnly(text string, stations []StationMatch) (endpoints, bool) {
	to := toRe.FindStringIndex(text)
	if to == nil {
		return endpoints{}, false
	}
	var ep endpoints
	if sm, ok := r.m.MatchSegment(text[to[1]:]); ok {
		ep.destination = sm.Name
	}
	ep.origin = firstOther(stations, ep.destination)
	return ep, true
}

// byPosition handles case 4. It always applies.
func (r *Resolver) byPosition(_ string, stations []StationMatch) (endpoints, bool) {
	if len(stations) < 2 {
		return endpoints{}, true
	}
	return endpoints{origin: stations[0].Name, destination: stations[1].Name}, true
}

// firstOther returns the earliest station that is not name.
func firstOther(stations []StationMatch, name string) string {
	for _, s := range stations {
		if s.Name != name {
			return s.Name
		}
	}
	return ""
}
