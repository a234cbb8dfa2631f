// Package nlu turns English-normalised free text into a typed railway
// [Request].
//
// The package has four cooperating parts:
//
//   - [Classifier] maps an utterance to one of the fixed [Intents] by
//     embedding similarity against per-intent example phrases.
//   - [Matcher] finds stations (fuzzy, against a [Gazetteer]), train numbers,
//     PNRs and dates in text.
//   - [Resolver] builds the [Entities] for an utterance, including the
//     origin/destination disambiguation policy.
//   - [Route] projects an (intent, entities) pair onto a concrete [Request].
//
// [Engine] composes the three stages behind a single Resolve call. Nothing in
// this package performs I/O except the embedding calls made through the
// injected [embeddings.Provider].
package nlu

import (
	"fmt"
	"slices"
)

// Intent is the user's high-level goal category.
type Intent string

const (
	IntentTrainTiming  Intent = "train_timing"
	IntentTrainBetween Intent = "train_between"
	IntentTrainStatus  Intent = "train_status"
	IntentPNRStatus    Intent = "pnr_status"
	IntentFareQuery    Intent = "fare_query"
	IntentRoute        Intent = "route"
	IntentGeneral      Intent = "general"
)

// Intents lists every intent in declaration order. The order is significant:
// when two intents score identically the one listed first wins.
var Intents = []Intent{
	IntentTrainTiming,
	IntentTrainBetween,
	IntentTrainStatus,
	IntentPNRStatus,
	IntentFareQuery,
	IntentRoute,
	IntentGeneral,
}

// IsValid reports whether i is one of [Intents].
func (i Intent) IsValid() bool {
	return slices.Contains(Intents, i)
}

// Examples holds the canonical example phrases for each intent. The phrases
// are the semantic reference set the [Classifier] compares utterances with.
type Examples map[Intent][]string

// Validate checks that every key is a known intent and that no intent has an
// empty phrase.
func (e Examples) Validate() error {
	for intent, phrases := range e {
		if !intent.IsValid() {
			return fmt.Errorf("nlu: unknown intent %q in examples", intent)
		}
		for i, p := range phrases {
			if p == "" {
				return fmt.Errorf("nlu: examples[%s][%d] is empty", intent, i)
			}
		}
	}
	return nil
}

// Merge returns a copy of e where every intent present in override replaces
// the phrases of e.
func (e Examples) Merge(override Examples) Examples {
	out := make(Examples, len(e))
	for k, v := range e {
		out[k] = slices.Clone(v)
	}
	for k, v := range override {
		out[k] = slices.Clone(v)
	}
	return out
}

// DefaultExamples returns the built-in example phrases.
func DefaultExamples() Examples {
	return Examples{
		IntentTrainTiming: {
			"when is the next train",
			"what time does the train leave",
			"next train from Kannur to Mumbai",
			"train timing",
			"departure time of the train",
			"when does the train arrive",
		},
		IntentTrainBetween: {
			"trains between two stations",
			"which trains run from Kochi to Chennai",
			"list all trains between stations",
			"show me trains going to Mumbai",
			"available trains from one city to another",
		},
		IntentTrainStatus: {
			"where is my train",
			"running status of train",
			"is the train running late",
			"live status of train 12218",
			"has the train departed",
		},
		IntentPNRStatus: {
			"check my pnr status",
			"pnr status",
			"is my ticket confirmed",
			"booking status of my pnr number",
			"what is my waiting list position",
		},
		IntentFareQuery: {
			"what is the fare",
			"ticket price from Kannur to Mumbai",
			"how much does a ticket cost",
			"fare between two stations",
			"cost of a sleeper class ticket",
		},
		IntentRoute: {
			"what is the route of the train",
			"which stations does the train stop at",
			"show the route",
			"list of stops for train 16604",
			"does this train pass through Thrissur",
		},
		IntentGeneral: {
			"hello",
			"thank you",
			"what can you do",
			"help me",
			"good morning",
		},
	}
}
