// Package translate defines the Translator interface used to bring
// non-English queries into English for intent resolution and to carry the
// English reply back into the caller's language.
//
// Languages are ISO 639-1 codes ("en", "hi", "ml", ...).
//
// Implementations must be safe for concurrent use.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// English is the language intent resolution works in.
const English = "en"

// ErrUnsupported is returned when a translator cannot handle a language pair.
var ErrUnsupported = errors.New("translate: unsupported language pair")

// Translator is the abstraction over any translation backend.
type Translator interface {
	// Translate renders text from language from into language to. Equal
	// languages return text unchanged.
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// LanguageName returns the English name of an ISO 639-1 code, or the code
// itself when it is not known.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"ml": "Malayalam",
	"ta": "Tamil",
	"te": "Telugu",
	"kn": "Kannada",
	"mr": "Marathi",
	"bn": "Bengali",
	"gu": "Gujarati",
	"pa": "Punjabi",
	"ur": "Urdu",
	"or": "Odia",
	"as": "Assamese",
}

// SystemPrompt is the instruction given to LLM-backed translators.
func SystemPrompt(from, to string) string {
	return fmt.Sprintf(
		"You translate railway enquiries and answers from %s to %s. "+
			"Keep station names, train numbers, PNR numbers, dates and times exactly as written. "+
			"Reply with the translation only.",
		LanguageName(from), LanguageName(to))
}

// Same reports whether from and to name the same language. An empty code
// counts as English.
func Same(from, to string) bool {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return English
		}
		// "en-IN" and "en" are the same language.
		s, _, _ = strings.Cut(s, "-")
		return s
	}
	return norm(from) == norm(to)
}
