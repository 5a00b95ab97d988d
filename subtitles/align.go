// Package subtitles groups timed words into display cues and writes them as SRT.
package subtitles

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rissalhedna/Financial-Video-Generator/timing"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// Aligner chunks a segment's words into cues. Cues never span a visual cut.
type Aligner struct {
	MaxChars   int
	MinDisplay time.Duration
}

func NewAligner(maxChars int, minDisplay time.Duration) Aligner {
	if maxChars <= 0 {
		maxChars = 42
	}
	return Aligner{MaxChars: maxChars, MinDisplay: minDisplay}
}

// Align returns cues relative to the segment start. cutWords are indices of
// words a visual cut happens at; a new cue always starts there. No cue ends
// after segEnd.
func (a Aligner) Align(words timing.Words, cutWords []int, segEnd time.Duration) []types.SubtitleCue {
	if !words.Available() {
		return nil
	}
	cuts := make(map[int]bool, len(cutWords))
	for _, i := range cutWords {
		cuts[i] = true
	}

	type group struct{ first, last int }
	var groups []group
	cur := group{first: -1}
	chars := 0
	flush := func() {
		if cur.first >= 0 {
			groups = append(groups, cur)
		}
		cur, chars = group{first: -1}, 0
	}

	for i, w := range words.Words {
		n := utf8.RuneCountInString(w.Word)
		if cur.first >= 0 && (cuts[i] || chars+1+n > a.MaxChars) {
			flush()
		}
		if cur.first < 0 {
			cur.first = i
		} else {
			chars++
		}
		cur.last = i
		chars += n

		shown := w.End - words.Words[cur.first].Start
		if endsSentence(w.Word) && shown >= a.MinDisplay {
			flush()
		}
	}
	flush()

	cues := make([]types.SubtitleCue, 0, len(groups))
	var carry string
	for gi, g := range groups {
		start := words.Words[g.first].Start
		end := words.Words[g.last].End
		if end < start+a.MinDisplay {
			end = start + a.MinDisplay
		}
		limit := segEnd
		if gi+1 < len(groups) {
			limit = words.Words[groups[gi+1].first].Start
		}
		if end > limit {
			end = limit
		}
		text := joinWords(words.Words[g.first : g.last+1])
		if carry != "" {
			text, carry = carry+" "+text, ""
		}
		if end <= start {
			// zero-length chunk: fold it into a neighbour on the same side of any cut
			if gi+1 < len(groups) && !cuts[groups[gi+1].first] {
				carry = text
			} else if k := len(cues) - 1; k >= 0 {
				cues[k].Text += " " + text
			}
			continue
		}
		cues = append(cues, types.SubtitleCue{Start: start, End: end, Text: text})
	}
	return cues
}

// Shift moves cues by offset, turning segment-relative times absolute
func Shift(cues []types.SubtitleCue, offset time.Duration) []types.SubtitleCue {
	out := make([]types.SubtitleCue, len(cues))
	for i, c := range cues {
		out[i] = types.SubtitleCue{Start: c.Start + offset, End: c.End + offset, Text: c.Text}
	}
	return out
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]”’`)
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}

func joinWords(words []types.WordTiming) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Word
	}
	return strings.Join(parts, " ")
}
