// Package allocate tiles a segment's true duration with its visual clips.
//
// Cut points come from trigger words when the narration timing contains
// them, otherwise from duration weights, otherwise from an equal split.
// Requests whose asset could not be resolved hand their span to a
// neighbour so the segment never has an uncovered stretch.
package allocate

import (
	"errors"
	"strings"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/logger"
	"github.com/rissalhedna/Financial-Video-Generator/timing"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// ErrNoUsableClip means every request of a segment failed resolution
var ErrNoUsableClip = errors.New("no resolvable clip in segment")

// Outcome is the resolver's answer for one request
type Outcome struct {
	Asset types.Asset
	Err   error
}

// Span is one request's slice of the segment before assets are applied
type Span struct {
	Offset   time.Duration
	Duration time.Duration
	// CutWord is the index of the trigger word this span starts at, -1 if
	// the span does not start at a trigger cut
	CutWord int
}

// End returns the span's end offset
func (s Span) End() time.Duration { return s.Offset + s.Duration }

// Result is the allocation for one segment
type Result struct {
	Clips []types.ResolvedClip
	// CutWords are word indices where a visual cut happens at a trigger
	CutWords []int
	Degraded int
}

type Allocator struct {
	FPS  int
	Snap bool
	log  *logger.Logger
}

func New(fps int, snap bool, log *logger.Logger) *Allocator {
	return &Allocator{FPS: fps, Snap: snap, log: log.Stage("allocate")}
}

// ImplicitRequest stands in for a segment that asked for no clips
func ImplicitRequest(tags []string) []types.ClipRequest {
	return []types.ClipRequest{{Tags: tags}}
}

// Spans computes the tiling of total for reqs. The first span starts at 0,
// the last ends at total and every span is longer than zero.
func (a *Allocator) Spans(total time.Duration, reqs []types.ClipRequest, words timing.Words) []Span {
	n := len(reqs)
	if n == 0 || total <= 0 {
		return nil
	}

	// bounds[i] is where span i starts; bounds[n] is total
	bounds := make([]time.Duration, n+1)
	fixed := make([]bool, n+1)
	cutWord := make([]int, n+1)
	for i := range cutWord {
		cutWord[i] = -1
	}
	bounds[n], fixed[0], fixed[n] = total, true, true

	// A request's trigger ends its own span; the last request has no cut after it.
	if words.Available() {
		from, lastIdx := 0, 0
		last := time.Duration(0)
		for i := 0; i < n-1; i++ {
			trig := strings.TrimSpace(reqs[i].Trigger)
			if trig == "" {
				continue
			}
			idx := words.Find(trig, from)
			if idx < 0 {
				continue
			}
			at := words.Words[idx].Start
			// unfixed spans between the previous cut and this one need room
			if at >= total || at-last < time.Duration(i+1-lastIdx) {
				continue
			}
			bounds[i+1], fixed[i+1], cutWord[i+1] = at, true, idx
			last, lastIdx, from = at, i+1, idx+1
		}
	}

	// Fill each stretch between fixed bounds by weight
	for lo := 0; lo < n; {
		hi := lo + 1
		for !fixed[hi] {
			hi++
		}
		distribute(bounds, reqs, lo, hi)
		lo = hi
	}

	if a.Snap && a.FPS > 0 {
		a.snap(bounds, cutWord)
	}

	spans := make([]Span, n)
	for i := range spans {
		spans[i] = Span{Offset: bounds[i], Duration: bounds[i+1] - bounds[i], CutWord: cutWord[i]}
	}
	return spans
}

// distribute sets bounds[lo+1 .. hi-1] inside [bounds[lo], bounds[hi]].
// Requests without a weight get the mean of the weights given in the
// stretch; with no weights at all the stretch is split equally.
func distribute(bounds []time.Duration, reqs []types.ClipRequest, lo, hi int) {
	if hi-lo < 2 {
		return
	}
	weights := make([]float64, hi-lo)
	var given float64
	var count int
	for i := lo; i < hi; i++ {
		if w := reqs[i].Weight; w > 0 {
			given += w
			count++
		}
	}
	mean := 1.0
	if count > 0 {
		mean = given / float64(count)
	}
	var sum float64
	for i := lo; i < hi; i++ {
		w := reqs[i].Weight
		if w <= 0 {
			w = mean
		}
		weights[i-lo] = w
		sum += w
	}

	start, length := bounds[lo], bounds[hi]-bounds[lo]
	var cum float64
	for k := 0; k < len(weights)-1; k++ {
		cum += weights[k]
		at := start + time.Duration(float64(length)*cum/sum)
		// keep every span strictly positive
		if lowest := bounds[lo+k] + 1; at < lowest {
			at = lowest
		}
		if highest := bounds[hi] - time.Duration(len(weights)-1-k); at > highest {
			at = highest
		}
		bounds[lo+k+1] = at
	}
}

// snap moves internal bounds onto the frame grid when that keeps spans
// positive. Trigger cuts stay on their word onset so cues break with them.
func (a *Allocator) snap(bounds []time.Duration, cutWord []int) {
	fps := time.Duration(a.FPS)
	for i := 1; i < len(bounds)-1; i++ {
		if cutWord[i] >= 0 {
			continue
		}
		frames := (bounds[i]*fps + time.Second/2) / time.Second
		at := frames * time.Second / fps
		if at > bounds[i-1] && at < bounds[i+1] {
			bounds[i] = at
		}
	}
}

// Allocate tiles total with reqs and binds each span to its resolved asset.
// outcomes[i] belongs to reqs[i]. A failed request's span extends the
// preceding clip, or the following one when it is the first.
func (a *Allocator) Allocate(segment int, total time.Duration, reqs []types.ClipRequest, outcomes []Outcome, words timing.Words) (Result, error) {
	if len(reqs) != len(outcomes) {
		return Result{}, errors.New("allocate: requests and outcomes differ in length")
	}
	spans := a.Spans(total, reqs, words)

	var res Result
	var leading time.Duration
	for i, sp := range spans {
		out := outcomes[i]
		if out.Err != nil {
			res.Degraded++
			a.log.Warn("asset unavailable, extending neighbour", "segment", segment,
				"tags", strings.Join(reqs[i].Tags, ","), "error", out.Err)
			if k := len(res.Clips) - 1; k >= 0 {
				res.Clips[k].Duration += sp.Duration
				res.Clips[k].Extended = true
			} else {
				leading += sp.Duration
			}
			continue
		}
		clip := types.ResolvedClip{
			Request:  reqs[i],
			Asset:    out.Asset,
			Offset:   sp.Offset,
			Duration: sp.Duration,
			Cut:      sp.CutWord >= 0,
		}
		if len(res.Clips) == 0 && leading > 0 {
			clip.Offset -= leading
			clip.Duration += leading
			clip.Extended = true
			clip.Cut = false
		}
		if clip.Cut {
			res.CutWords = append(res.CutWords, sp.CutWord)
		}
		res.Clips = append(res.Clips, clip)
	}
	if len(res.Clips) == 0 {
		return res, ErrNoUsableClip
	}
	return res, nil
}
