package railway

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/railvox/internal/nlu"
)

var _ Service = (*Mock)(nil)

var trainNames = []string{
	"Malabar Express",
	"Netravati Express",
	"Parasuram Express",
	"Maveli Express",
	"Jan Shatabdi",
	"Vande Bharat Express",
	"Mangala Lakshadweep Express",
	"Kerala Express",
	"Rajdhani Express",
	"Chennai Mail",
}

var runningStatus = []string{
	"on time",
	"running late",
	"departed",
	"arrived",
}

var travelClasses = []string{"SL", "3A", "2A", "1A"}

// MockOption configures a [Mock].
type MockOption func(*Mock)

// WithStations sets the stations used for routes and live positions.
func WithStations(names []string) MockOption {
	return func(m *Mock) { m.stations = slices.Clone(names) }
}

// WithNow overrides the clock used for default dates.
func WithNow(now func() time.Time) MockOption {
	return func(m *Mock) { m.now = now }
}

// Mock is a [Service] that returns random but plausible answers. Two mocks
// built with the same seed give the same sequence of answers. It is safe
// for concurrent use.
type Mock struct {
	stations []string
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMock returns a [Mock] seeded with seed.
func NewMock(seed uint64, opts ...MockOption) *Mock {
	m := &Mock{
		stations: slices.Clone(nlu.DefaultStations),
		now:      time.Now,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Handle implements [Service]. Requests missing a field the answer depends
// on produce a clarify result naming the missing fields.
func (m *Mock) Handle(ctx context.Context, req nlu.Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if missing := Missing(req); len(missing) > 0 {
		return Clarify(req.Action(), missing...), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch r := req.(type) {
	case nlu.NextTrainTime:
		dep := m.clock()
		return Result{Type: TypeNextTrain, Fields: map[string]any{
			"train_no":       m.trainNo(),
			"train_name":     m.pick(trainNames),
			"origin":         r.Origin,
			"destination":    r.Destination,
			"date":           m.date(r.Date),
			"departure_time": dep,
			"arrival_time":   m.later(dep),
			"platform":       1 + m.rng.IntN(6),
		}}, nil

	case nlu.TrainsBetween:
		n := 2 + m.rng.IntN(3)
		trains := make([]Train, n)
		for i := range trains {
			dep := m.clock()
			trains[i] = Train{Number: m.trainNo(), Name: m.pick(trainNames), Departure: dep, Arrival: m.later(dep)}
		}
		slices.SortFunc(trains, func(a, b Train) int {
			return cmp.Compare(a.Departure, b.Departure)
		})
		return Result{Type: TypeTrainsBetween, Fields: map[string]any{
			"origin":      r.Origin,
			"destination": r.Destination,
			"date":        m.date(r.Date),
			"trains":      trains,
		}}, nil

	case nlu.TrainStatus:
		status := m.pick(runningStatus)
		fields := map[string]any{
			"train_no":        r.TrainNo,
			"date":            m.date(r.Date),
			"status":          status,
			"current_station": m.pick(m.stations),
			"delay_minutes":   0,
		}
		if status == "running late" {
			fields["delay_minutes"] = 5 + m.rng.IntN(120)
		}
		return Result{Type: TypeStatus, Fields: fields}, nil

	case nlu.PNRStatus:
		fields := map[string]any{
			"pnr":   r.PNR,
			"coach": fmt.Sprintf("S%d", 1+m.rng.IntN(12)),
			"berth": 1 + m.rng.IntN(72),
		}
		switch m.rng.IntN(3) {
		case 0:
			fields["status"] = "confirmed"
		case 1:
			fields["status"] = "RAC"
		default:
			fields["status"] = "waitlisted"
			fields["waitlist_position"] = 1 + m.rng.IntN(40)
			delete(fields, "coach")
			delete(fields, "berth")
		}
		return Result{Type: TypePNR, Fields: fields}, nil

	case nlu.RouteInfo:
		route := m.route()
		return Result{Type: TypeRoute, Fields: map[string]any{
			"train_no":    r.TrainNo,
			"route":       route,
			"total_stops": len(route),
		}}, nil

	case nlu.Fare:
		class := m.pick(travelClasses)
		fields := map[string]any{
			"origin":      r.Origin,
			"destination": r.Destination,
			"class":       class,
			"fare":        m.fare(class),
			"currency":    "INR",
		}
		if r.TrainNo != "" {
			fields["train_no"] = r.TrainNo
		}
		return Result{Type: TypeFare, Fields: fields}, nil

	case nlu.Unknown:
		return Result{Type: TypeUnknown, Fields: map[string]any{
			"intent": string(r.Intent),
		}}, nil

	default:
		return Result{}, fmt.Errorf("railway: unsupported request %T", req)
	}
}

// Missing lists the fields req needs but does not carry.
func Missing(req nlu.Request) []string {
	var missing []string
	need := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	switch r := req.(type) {
	case nlu.NextTrainTime:
		need("origin", r.Origin)
		need("destination", r.Destination)
	case nlu.TrainsBetween:
		need("origin", r.Origin)
		need("destination", r.Destination)
	case nlu.TrainStatus:
		need("train_no", r.TrainNo)
	case nlu.PNRStatus:
		need("pnr", r.PNR)
	case nlu.RouteInfo:
		need("train_no", r.TrainNo)
	case nlu.Fare:
		need("origin", r.Origin)
		need("destination", r.Destination)
	}
	return missing
}

// The helpers below must be called with m.mu held.

func (m *Mock) pick(s []string) string {
	return s[m.rng.IntN(len(s))]
}

func (m *Mock) trainNo() string {
	return fmt.Sprintf("%05d", 10000+m.rng.IntN(13000))
}

func (m *Mock) clock() string {
	return fmt.Sprintf("%02d:%02d", m.rng.IntN(24), 5*m.rng.IntN(12))
}

// later returns a time 1 to 12 hours after hhmm, wrapping past midnight.
func (m *Mock) later(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Add(time.Duration(60+5*m.rng.IntN(133)) * time.Minute).Format("15:04")
}

func (m *Mock) date(d string) string {
	if d != "" {
		return d
	}
	return m.now().Format(time.DateOnly)
}

func (m *Mock) route() []string {
	n := min(3+m.rng.IntN(4), len(m.stations))
	idx := m.rng.Perm(len(m.stations))[:n]
	slices.Sort(idx)
	route := make([]string, n)
	for i, j := range idx {
		route[i] = m.stations[j]
	}
	return route
}

func (m *Mock) fare(class string) int {
	base := map[string]int{"SL": 150, "3A": 600, "2A": 1000, "1A": 1800}[class]
	return base + 10*m.rng.IntN(100)
}
