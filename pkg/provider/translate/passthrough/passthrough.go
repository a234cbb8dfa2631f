// Package passthrough provides a Translator that returns its input
// unchanged. It serves English-only deployments and is the fallback when
// the real translator is unavailable.
package passthrough

import (
	"context"

	"github.com/MrWong99/railvox/pkg/provider/translate"
)

var _ translate.Translator = Translator{}

// Translator returns text unchanged.
type Translator struct{}

// Translate implements translate.Translator.
func (Translator) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}
