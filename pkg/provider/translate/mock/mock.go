// Package mock provides a test double for translate.Translator.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/railvox/pkg/provider/translate"
)

var _ translate.Translator = (*Translator)(nil)

// TranslateCall records one invocation of Translate.
type TranslateCall struct {
	Text string
	From string
	To   string
}

// Translator is a mock implementation of translate.Translator.
type Translator struct {
	mu sync.Mutex

	// Dictionary maps input text to its translation. Unknown text is
	// returned unchanged.
	Dictionary map[string]string

	// Err, if non-nil, is returned by Translate.
	Err error

	// Calls records every call to Translate.
	Calls []TranslateCall
}

// Translate records the call and looks text up in Dictionary.
func (m *Translator) Translate(_ context.Context, text, from, to string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, TranslateCall{Text: text, From: from, To: to})
	if m.Err != nil {
		return "", m.Err
	}
	if out, ok := m.Dictionary[text]; ok {
		return out, nil
	}
	return text, nil
}

// CallCount returns the number of Translate calls.
func (m *Translator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
