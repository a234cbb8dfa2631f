package nlu

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action is the backend operation a [Request] asks for.
type Action string

const (
	ActionNextTrainTime Action = "get_next_train_time"
	ActionTrainsBetween Action = "get_trains_between"
	ActionStatus        Action = "get_status"
	ActionCheckPNR      Action = "check_pnr"
	ActionRoute         Action = "get_route"
	ActionFare          Action = "get_fare"
	ActionUnknown       Action = "unknown"
)

// Request is a routed, typed action request. The set of implementations is
// closed: [NextTrainTime], [TrainsBetween], [TrainStatus], [PNRStatus],
// [RouteInfo], [Fare] and [Unknown].
//
// Every implementation marshals to a flat JSON object carrying an "action"
// discriminator plus its own fields; unresolved fields are omitted.
type Request interface {
	Action() Action
	isRequest()
}

// NextTrainTime asks for the next departure between two stations.
type NextTrainTime struct {
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	Date        string `json:"date,omitempty"`
}

// TrainsBetween asks for every train running between two stations.
type TrainsBetween struct {
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	Date        string `json:"date,omitempty"`
}

// TrainStatus asks for the running status of a train.
type TrainStatus struct {
	TrainNo string `json:"train_no,omitempty"`
	Date    string `json:"date,omitempty"`
}

// PNRStatus asks for the booking status of a PNR.
type PNRStatus struct {
	PNR string `json:"pnr,omitempty"`
}

// RouteInfo asks for the stops of a train.
type RouteInfo struct {
	TrainNo string `json:"train_no,omitempty"`
}

// Fare asks for the ticket price between two stations, optionally on a
// specific train.
type Fare struct {
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	TrainNo     string `json:"train_no,omitempty"`
}

// Unknown carries an utterance whose intent has no backend action.
type Unknown struct {
	Intent   Intent   `json:"intent"`
	Entities Entities `json:"entities"`
}

func (NextTrainTime) Action() Action { return ActionNextTrainTime }
func (TrainsBetween) Action() Action { return ActionTrainsBetween }
func (TrainStatus) Action() Action   { return ActionStatus }
func (PNRStatus) Action() Action     { return ActionCheckPNR }
func (RouteInfo) Action() Action     { return ActionRoute }
func (Fare) Action() Action          { return ActionFare }
func (Unknown) Action() Action       { return ActionUnknown }

func (NextTrainTime) isRequest() {}
func (TrainsBetween) isRequest() {}
func (TrainStatus) isRequest()   {}
func (PNRStatus) isRequest()     {}
func (RouteInfo) isRequest()     {}
func (Fare) isRequest()          {}
func (Unknown) isRequest()       {}

func (r NextTrainTime) MarshalJSON() ([]byte, error) {
	type fields NextTrainTime
	return json.Marshal(struct {
		Action Action `json:"action"`
		fields
	}{r.Action(), fields(r)})
}

func (r TrainsBetween) MarshalJSON() ([]byte, error) {
	type fields TrainsBetween
	return json.Marshal(struct {
		Action Action `json:"action"`
		fields
	}{r.Action(), fields(r)})
}

func (r TrainStatus) MarshalJSON() ([]byte, error) {
	type fields TrainStatus
	return json.Marshal(struct {
		Action Action `json:"action"`
		fields
	}{r.Action(), fields(r)})
}

func (r PNRStatus) MarshalJSON() ([]byte, error) {
	type fields PNRStatus
	return json.Marshal(struct {
		Action Action `json:"action"`
		fields
	}{r.Action(), fields(r)})
}

func (r RouteInfo) MarshalJSON() ([]byte, error) {
	type fields RouteInfo
	return json.Marshal(struct {
		Action Action `json:"action"`
		fields
	}{r.Action(), fields(r)})
}

func (r Fare) MarshalJSON() ([]byte, error) {
	type fields Fare
	return json.Marshal(struct {
		Action Action `json:"action"`
		fields
	}{r.Action(), fields(r)})
}

// MarshalJSON encodes u as {"action":"unknown","raw":{"intent":...,"entities":{...}}}.
func (u Unknown) MarshalJSON() ([]byte, error) {
	type raw Unknown
	return json.Marshal(struct {
		Action Action `json:"action"`
		Raw    raw    `json:"raw"`
	}{u.Action(), raw(u)})
}

// Endpoints returns the origin and destination of req. ok is false for
// requests that carry no station pair.
func Endpoints(req Request) (origin, destination string, ok bool) {
	switch r := req.(type) {
	case NextTrainTime:
		return r.Origin, r.Destination, true
	case TrainsBetween:
		return r.Origin, r.Destination, true
	case Fare:
		return r.Origin, r.Destination, true
	}
	return "", "", false
}

// WithOrigin returns a copy of req with its origin set to origin. Requests
// without an origin field are returned unchanged.
func WithOrigin(req Request, origin string) Request {
	switch r := req.(type) {
	case NextTrainTime:
		r.Origin = origin
		return r
	case TrainsBetween:
		r.Origin = origin
		return r
	case Fare:
		r.Origin = origin
		return r
	}
	return req
}

// MarshalRequest encodes req as a flat JSON object with an "action"
// discriminator.
func MarshalRequest(req Request) ([]byte, error) {
	if req == nil {
		return nil, errors.New("nlu: marshal nil request")
	}
	return json.Marshal(req)
}

// UnmarshalRequest decodes a request produced by [MarshalRequest].
func UnmarshalRequest(data []byte) (Request, error) {
	var head struct {
		Action Action          `json:"action"`
		Raw    json.RawMessage `json:"raw"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("nlu: decode request: %w", err)
	}

	var (
		req Request
		err error
	)
	switch head.Action {
	case ActionNextTrainTime:
		req, err = decodeAs[NextTrainTime](data)
	case ActionTrainsBetween:
		req, err = decodeAs[TrainsBetween](data)
	case ActionStatus:
		req, err = decodeAs[TrainStatus](data)
	case ActionCheckPNR:
		req, err = decodeAs[PNRStatus](data)
	case ActionRoute:
		req, err = decodeAs[RouteInfo](data)
	case ActionFare:
		req, err = decodeAs[Fare](data)
	case ActionUnknown:
		var u Unknown
		if len(head.Raw) > 0 {
			err = json.Unmarshal(head.Raw, &u)
		}
		req = u
	default:
		return nil, fmt.Errorf("nlu: unknown action %q", head.Action)
	}
	if err != nil {
		return nil, fmt.Errorf("nlu: decode %s: %w", head.Action, err)
	}
	return req, nil
}

// decodeAs unmarshals data into T; the action key is ignored.
func decodeAs[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
