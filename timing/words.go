// Package timing holds per-word timing for a segment's narration, either as
// reported by the speech provider or derived from the text when the provider
// has none.
package timing

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// Kind tells where word timing came from
type Kind int

const (
	Provided Kind = iota + 1
	Derived
)

func (k Kind) String() string {
	switch k {
	case Provided:
		return "provided"
	case Derived:
		return "derived"
	}
	return "unknown"
}

// Words is the WordTiming sequence of one segment, tagged with its origin
type Words struct {
	Kind  Kind
	Words []types.WordTiming
}

// FromProvider wraps provider-reported timing
func FromProvider(words []types.WordTiming) Words {
	return Words{Kind: Provided, Words: words}
}

// Tokenize splits narration into spoken words in reading order
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Normalize lowercases a token and strips surrounding punctuation so
// "Garage." and "garage" compare equal.
func Normalize(token string) string {
	return strings.ToLower(strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}

// Derive approximates word timing by spreading total across words in
// proportion to their character length. Speech rate is roughly constant within
// a segment, so character position is a usable proxy for spoken onset.
func Derive(text string, total time.Duration) Words {
	tokens := Tokenize(text)
	out := Words{Kind: Derived, Words: make([]types.WordTiming, 0, len(tokens))}
	if len(tokens) == 0 || total <= 0 {
		return out
	}

	var chars int64
	for _, tok := range tokens {
		chars += int64(utf8.RuneCountInString(tok))
	}

	var cum int64
	for i, tok := range tokens {
		start := time.Duration(int64(total) * cum / chars)
		cum += int64(utf8.RuneCountInString(tok))
		end := time.Duration(int64(total) * cum / chars)
		if i == len(tokens)-1 {
			end = total
		}
		out.Words = append(out.Words, types.WordTiming{Word: tok, Start: start, End: end})
	}
	return out
}

// Available reports whether any word timing exists
func (w Words) Available() bool {
	return len(w.Words) > 0
}

// Find returns the index of the first word at or after from whose normalized
// form equals trigger, or -1.
func (w Words) Find(trigger string, from int) int {
	want := Normalize(trigger)
	if want == "" {
		return -1
	}
	if from < 0 {
		from = 0
	}
	for i := from; i < len(w.Words); i++ {
		if Normalize(w.Words[i].Word) == want {
			return i
		}
	}
	return -1
}

// Clamp trims timing to [0, total] and keeps starts non-decreasing. Providers
// occasionally report a final word ending a few ms past the measured audio.
func (w Words) Clamp(total time.Duration) Words {
	out := Words{Kind: w.Kind, Words: make([]types.WordTiming, len(w.Words))}
	var prev time.Duration
	for i, word := range w.Words {
		if word.Start < prev {
			word.Start = prev
		}
		if word.Start > total {
			word.Start = total
		}
		if word.End < word.Start {
			word.End = word.Start
		}
		if word.End > total {
			word.End = total
		}
		prev = word.Start
		out.Words[i] = word
	}
	return out
}
