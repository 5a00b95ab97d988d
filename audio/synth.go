// Package audio synthesizes narration per segment and binds the result,
// with its measured duration and word timings, back onto the segment.
package audio

import (
	"context"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// Request is one segment's synthesis call
type Request struct {
	Segment int
	Text    string
	Emotion string
	Voice   string
	OutFile string
}

// Synthesis is what an engine produced. Duration and Words are optional;
// engines that cannot report them leave them zero.
type Synthesis struct {
	File     string
	Duration time.Duration
	Words    []types.WordTiming
}

// Synthesizer is a text-to-speech engine
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (Synthesis, error)
}

// Prober measures an audio file
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}
