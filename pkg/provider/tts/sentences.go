package tts

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/railvox/pkg/audio"
)

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("tts: empty text")

// lookahead bounds how many sentences are synthesised concurrently.
const lookahead = 4

// SplitSentences splits text after '.', '!', '?' and the danda '।' when they
// end the text or are followed by whitespace. Decimals such as "12.30" stay
// intact. Empty pieces are dropped.
func SplitSentences(text string) []string {
	var out []string
	for {
		idx, size := sentenceBoundary(text)
		if idx < 0 {
			break
		}
		if s := strings.TrimSpace(text[:idx+size]); s != "" {
			out = append(out, s)
		}
		text = text[idx+size:]
	}
	if s := strings.TrimSpace(text); s != "" {
		out = append(out, s)
	}
	return out
}

// sentenceBoundary returns the byte index and width of the first sentence
// terminator in s, or -1.
func sentenceBoundary(s string) (int, int) {
	for i, r := range s {
		if r != '.' && r != '!' && r != '?' && r != '।' {
			continue
		}
		next := i + len(string(r))
		if next >= len(s) {
			return i, next - i
		}
		following, _ := firstRune(s[next:])
		if unicode.IsSpace(following) {
			return i, next - i
		}
	}
	return -1, 0
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}

// SynthesizeSentences splits text into sentences, renders up to lookahead of
// them concurrently with fn and joins the clips in order in format. A zero
// format keeps the format of the first sentence. The first error cancels
// the remaining work.
func SynthesizeSentences(ctx context.Context, text string, format audio.Format,
	fn func(ctx context.Context, sentence string) (audio.Clip, error),
) (audio.Clip, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return audio.Clip{}, ErrEmptyText
	}
	clips := make([]audio.Clip, len(sentences))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookahead)
	for i, s := range sentences {
		g.Go(func() error {
			c, err := fn(gctx, s)
			if err != nil {
				return err
			}
			clips[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return audio.Clip{}, err
	}
	if format == (audio.Format{}) && len(clips) > 0 {
		format = clips[0].Format
	}
	return audio.Concat(format, clips...), nil
}
