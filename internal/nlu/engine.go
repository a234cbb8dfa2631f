package nlu

import (
	"context"
	"log/slog"
)

// IntentClassifier is the contract [Engine] needs from a classifier.
// [*Classifier] is the production implementation.
type IntentClassifier interface {
	Classify(ctx context.Context, utterance string) (Classification, error)
}

// Resolution is the full outcome of resolving one utterance.
type Resolution struct {
	Utterance      string         `json:"utterance"`
	Classification Classification `json:"classification"`
	Entities       Entities       `json:"entities"`
	Request        Request        `json:"request"`
}

// Engine turns an English utterance into a [Request]: classify, resolve
// entities, route. It holds no per-call state and is safe for concurrent
// use; resolving the same utterance twice yields the same request.
type Engine struct {
	classifier IntentClassifier
	resolver   *Resolver
}

// NewEngine returns an [Engine] composed of c and r.
func NewEngine(c IntentClassifier, r *Resolver) *Engine {
	return &Engine{classifier: c, resolver: r}
}

// Resolver returns the entity resolver of the engine.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// Resolve returns the action request for utterance. The only error source is
// the embedding backend used by the classifier; unresolved entities and
// unrecognised intents are regular outcomes.
func (e *Engine) Resolve(ctx context.Context, utterance string) (Request, error) {
	res, err := e.ResolveDetailed(ctx, utterance)
	if err != nil {
		return nil, err
	}
	return res.Request, nil
}

// ResolveDetailed is like Resolve but also returns the intermediate
// classification and entities.
func (e *Engine) ResolveDetailed(ctx context.Context, utterance string) (*Resolution, error) {
	cls, err := e.classifier.Classify(ctx, utterance)
	if err != nil {
		return nil, err
	}
	ents := e.resolver.Resolve(utterance)
	req := Route(cls.Intent, ents)

	slog.DebugContext(ctx, "utterance resolved",
		"intent", cls.Intent,
		"confidence", cls.Confidence,
		"action", req.Action(),
		"origin", ents.Origin,
		"destination", ents.Destination,
		"train_no", ents.TrainNo,
	)

	return &Resolution{
		Utterance:      utterance,
		Classification: cls,
		Entities:       ents,
		Request:        req,
	}, nil
}
