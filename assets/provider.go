package assets

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// Query is what a footage provider searches for
type Query struct {
	Tags    []string
	Emotion string
	Target  time.Duration // span the clip is expected to cover
	Limit   int
}

// Text joins the leading normalized tags into a search phrase
func (q Query) Text() string {
	tags := NormalizeTags(q.Tags)
	if len(tags) > 3 {
		tags = tags[:3]
	}
	return strings.Join(tags, " ")
}

// Candidate is one search hit. Remote hits carry URL; local ones LocalPath.
type Candidate struct {
	ID        string
	Source    string
	Kind      types.AssetKind
	URL       string
	LocalPath string
	Width     int
	Height    int
	Duration  time.Duration
}

// Provider is one footage source in the fallback chain
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Candidate, error)
}

// Rank orders candidates by resolution, duration and orientation fit for the
// target frame, best first.
func Rank(cands []Candidate, width, height int, target time.Duration) []Candidate {
	out := append([]Candidate(nil), cands...)
	portrait := height > width
	score := func(c Candidate) float64 {
		var res float64
		if c.Width > 0 && c.Height > 0 && width > 0 && height > 0 {
			ratio := minf(float64(c.Width)/float64(width), float64(c.Height)/float64(height))
			res = minf(ratio, 1.5) * 25
		}

		var dur float64
		switch {
		case c.Kind == types.AssetImage:
			dur = 20
		case target <= 0 || c.Duration >= target:
			dur = 35
		case c.Duration >= target/2:
			dur = 20
		default:
			dur = c.Duration.Seconds() / target.Seconds() * 15
		}

		aspect := 5.0
		switch {
		case c.Width == c.Height:
			aspect = 20
		case (c.Height > c.Width) == portrait:
			aspect = 30
		}
		return res + dur + aspect
	}
	sort.SliceStable(out, func(i, j int) bool { return score(out[i]) > score(out[j]) })
	return out
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
