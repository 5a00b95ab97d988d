package audio

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/rissalhedna/Financial-Video-Generator/timing"
)

type prosody struct {
	rate  int // percent
	pitch float64
}

var emotionProsody = map[string]prosody{
	"excited":     {115, 2},
	"sad":         {85, -2},
	"serious":     {90, -1},
	"urgent":      {125, 1},
	"dramatic":    {85, -1.5},
	"curious":     {105, 1},
	"informative": {100, 0},
}

// markName is the SSML mark placed before word i
func markName(i int) string { return "w" + strconv.Itoa(i) }

func markIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, "w") {
		return 0, false
	}
	i, err := strconv.Atoi(name[1:])
	return i, err == nil && i >= 0
}

// BuildSSML wraps narration in emotion prosody and puts a <mark> before every
// word so the engine reports per-word time points. Studio voices reject pitch.
func BuildSSML(text, emotion string, allowPitch bool) string {
	var b strings.Builder
	b.WriteString("<speak>")

	p, ok := emotionProsody[strings.ToLower(strings.TrimSpace(emotion))]
	open := ok && (p.rate != 100 || (allowPitch && p.pitch != 0))
	if open {
		fmt.Fprintf(&b, `<prosody rate="%d%%"`, p.rate)
		if allowPitch && p.pitch != 0 {
			fmt.Fprintf(&b, ` pitch="%+.1fst"`, p.pitch)
		}
		b.WriteString(">")
	}

	for i, tok := range timing.Tokenize(text) {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, `<mark name="%s"/>%s`, markName(i), html.EscapeString(tok))
	}

	if open {
		b.WriteString("</prosody>")
	}
	b.WriteString("</speak>")
	return b.String()
}
