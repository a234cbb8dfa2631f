// Package respond turns a railway result into the English sentence spoken
// back to the user.
//
// Every result type has a text/template. Templates see the result fields
// as a map, so {{.train_no}} reads the train_no field, and may use the
// helpers list, trains, num and need.
package respond

import (
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"text/template"

	"github.com/MrWong99/railvox/internal/railway"
)

// Fallback is said when a result cannot be rendered.
const Fallback = "Sorry, I could not put together an answer for that."

// DefaultTemplates holds the built-in template per result type.
var DefaultTemplates = map[railway.ResultType]string{
	railway.TypeNextTrain: `The next train from {{.origin}} to {{.destination}} on {{.date}} is ` +
		`{{.train_no}} {{.train_name}}, leaving at {{.departure_time}}` +
		`{{with .platform}} from platform {{.}}{{end}} and arriving at {{.arrival_time}}.`,

	railway.TypeTrainsBetween: `{{$t := trains .trains}}{{if not $t}}I found no trains from {{.origin}} to {{.destination}} on {{.date}}.` +
		`{{else}}{{len $t}} trains run from {{.origin}} to {{.destination}} on {{.date}}: ` +
		`{{range $i, $x := $t}}{{if $i}}{{if eq $i (last $t)}} and {{else}}, {{end}}{{end}}` +
		`{{$x.Number}} {{$x.Name}} at {{$x.Departure}}{{end}}.{{end}}`,

	railway.TypeStatus: `Train {{.train_no}} is {{.status}}` +
		`{{if gt (num .delay_minutes) 0.0}} by {{.delay_minutes}} minutes{{end}}` +
		`{{with .current_station}}, last reported at {{.}}{{end}}.`,

	railway.TypePNR: `{{if eq .status "waitlisted"}}PNR {{.pnr}} is waitlisted at position {{.waitlist_position}}.` +
		`{{else}}PNR {{.pnr}} is {{if eq .status "RAC"}}on RAC{{else}}{{.status}}{{end}}` +
		`{{with .coach}}, coach {{.}}{{end}}{{with .berth}}, berth {{.}}{{end}}.{{end}}`,

	railway.TypeRoute: `Train {{.train_no}} stops at {{list .route}}, {{.total_stops}} stops in total.`,

	railway.TypeFare: `The {{.class}} fare from {{.origin}} to {{.destination}}` +
		`{{with .train_no}} on train {{.}}{{end}} is {{.currency}} {{.fare}}.`,

	railway.TypeClarify: `To answer that I need {{need .missing}}.`,

	railway.TypeUnknown: `Sorry, I did not understand. You can ask about train timings, ` +
		`running status, PNR status, fares or routes.`,
}

var missingPhrases = map[string]string{
	"origin":      "where you are starting from",
	"destination": "where you want to go",
	"train_no":    "the train number",
	"pnr":         "your 10-digit PNR number",
	"date":        "the date of travel",
}

var funcs = template.FuncMap{
	"list":   list,
	"trains": trains,
	"num":    num,
	"need":   need,
	"last":   func(t []railway.Train) int { return len(t) - 1 },
}

// Formatter renders results with one template per result type. It is
// immutable and safe for concurrent use.
type Formatter struct {
	templates map[railway.ResultType]*template.Template
}

// NewFormatter parses [DefaultTemplates] with overrides applied on top.
func NewFormatter(overrides map[railway.ResultType]string) (*Formatter, error) {
	src := maps.Clone(DefaultTemplates)
	maps.Copy(src, overrides)

	f := &Formatter{templates: make(map[railway.ResultType]*template.Template, len(src))}
	for typ, text := range src {
		t, err := template.New(string(typ)).Funcs(funcs).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("respond: parse %s template: %w", typ, err)
		}
		f.templates[typ] = t
	}
	return f, nil
}

// Format renders r. Results without a template are an error.
func (f *Formatter) Format(r railway.Result) (string, error) {
	t, ok := f.templates[r.Type]
	if !ok {
		return "", fmt.Errorf("respond: no template for result type %q", r.Type)
	}
	data := r.Fields
	if data == nil {
		data = map[string]any{}
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("respond: render %s: %w", r.Type, err)
	}
	return strings.Join(strings.Fields(buf.String()), " "), nil
}

var defaultFormatter = func() *Formatter {
	f, err := NewFormatter(nil)
	if err != nil {
		panic(err)
	}
	return f
}()

// Format renders r with the built-in templates and returns [Fallback] when
// that fails.
func Format(r railway.Result) string {
	s, err := defaultFormatter.Format(r)
	if err != nil {
		slog.Warn("formatting result failed", "type", r.Type, "err", err)
		return Fallback
	}
	return s
}

// list joins v as "a, b and c". v is a []string or a decoded JSON array.
func list(v any) string {
	items := toStrings(v)
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func need(v any) string {
	items := toStrings(v)
	for i, it := range items {
		if p, ok := missingPhrases[it]; ok {
			items[i] = p
		}
	}
	if len(items) == 0 {
		return "a little more detail"
	}
	return list(items)
}

func toStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}

// trains normalises the trains field, which is []railway.Train from the mock
// and a decoded JSON array from a remote service.
func trains(v any) []railway.Train {
	switch x := v.(type) {
	case []railway.Train:
		return x
	case []any:
		out := make([]railway.Train, 0, len(x))
		for _, e := range x {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			str := func(k string) string { s, _ := m[k].(string); return s }
			out = append(out, railway.Train{
				Number:    str("train_no"),
				Name:      str("name"),
				Departure: str("departure_time"),
				Arrival:   str("arrival_time"),
			})
		}
		return out
	}
	return nil
}

// num converts a numeric field to float64; anything else is 0.
func num(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}
