// Package railway answers routed [nlu.Request] values.
//
// [Mock] stands in for a train-data service with seeded random answers;
// [Client] forwards requests to a remote service speaking the same JSON.
// Both return a [Result] whose Type tells the formatter which fields to
// expect.
package railway

import (
	"context"
	"encoding/json"
	"maps"

	"github.com/MrWong99/railvox/internal/nlu"
)

// Service answers action requests.
type Service interface {
	Handle(ctx context.Context, req nlu.Request) (Result, error)
}

// ResultType discriminates a [Result].
type ResultType string

const (
	TypeNextTrain     ResultType = "next_train"
	TypeTrainsBetween ResultType = "trains_between"
	TypeStatus        ResultType = "status"
	TypePNR           ResultType = "pnr"
	TypeRoute         ResultType = "route"
	TypeFare          ResultType = "fare"
	TypeClarify       ResultType = "clarify"
	TypeUnknown       ResultType = "unknown"
)

// Result is a backend answer: a type plus action-specific fields. It
// marshals to a flat object, {"type": ..., <fields>}.
type Result struct {
	Type   ResultType
	Fields map[string]any
}

// Train summarises one service in a trains_between answer.
type Train struct {
	Number    string `json:"train_no"`
	Name      string `json:"name"`
	Departure string `json:"departure_time"`
	Arrival   string `json:"arrival_time"`
}

// Clarify returns a result asking the user for the missing request fields.
func Clarify(action nlu.Action, missing ...string) Result {
	return Result{Type: TypeClarify, Fields: map[string]any{
		"action":  string(action),
		"missing": missing,
	}}
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	maps.Copy(out, r.Fields)
	out["type"] = r.Type
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Field values keep their
// generic JSON types (string, float64, []any, map[string]any).
func (r *Result) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	t, _ := fields["type"].(string)
	delete(fields, "type")
	r.Type = ResultType(t)
	r.Fields = fields
	return nil
}

// String returns field key of r as a string, or "" when absent.
func (r Result) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}
