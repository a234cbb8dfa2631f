package nlu

import (
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// DateParser finds a date expression in free text. Relative expressions
// ("tomorrow", "next friday") are resolved against now.
type DateParser interface {
	ParseDate(text string, now time.Time) (time.Time, bool)
}

// WhenParser is a [DateParser] backed by the olebedev/when rule engine with
// the English and language-independent rule sets.
type WhenParser struct {
	w *when.Parser
}

var _ DateParser = (*WhenParser)(nil)

// NewWhenParser returns a [WhenParser] with the English and common rules
// loaded.
func NewWhenParser() *WhenParser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &WhenParser{w: w}
}

// ParseDate implements [DateParser].
func (p *WhenParser) ParseDate(text string, now time.Time) (time.Time, bool) {
	r, err := p.w.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

// DateParserFunc adapts a plain function to [DateParser].
type DateParserFunc func(text string, now time.Time) (time.Time, bool)

// ParseDate implements [DateParser].
func (f DateParserFunc) ParseDate(text string, now time.Time) (time.Time, bool) {
	return f(text, now)
}
