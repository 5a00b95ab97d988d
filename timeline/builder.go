// Package timeline places reconciled segments end to end and validates the
// resulting render plan before anything is rendered.
package timeline

import (
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/subtitles"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// Part is one finished segment pipeline: the segment with its true duration
// and clips, plus its cues relative to the segment start
type Part struct {
	Segment types.Segment
	Cues    []types.SubtitleCue
}

type Builder struct {
	FPS int
}

// Build concatenates parts in order and validates the plan. Any violation is
// PlanInconsistent.
func (b Builder) Build(runID string, parts []Part) (types.RenderPlan, error) {
	plan := types.RenderPlan{RunID: runID, FPS: b.FPS, CreatedAt: time.Now().UTC()}

	var at time.Duration
	for i, p := range parts {
		seg := p.Segment
		if i > 0 && seg.Index <= parts[i-1].Segment.Index {
			return types.RenderPlan{}, apperr.ErrPlanInconsistentf(
				"segment %d follows segment %d", seg.Index, parts[i-1].Segment.Index)
		}
		ps := types.PlanSegment{
			Index:     seg.Index,
			Start:     at,
			Duration:  seg.ActualDuration,
			AudioFile: seg.AudioFile,
			Clips:     make([]types.ResolvedClip, len(seg.ResolvedClips)),
			Cues:      subtitles.Shift(p.Cues, at),
		}
		for j, c := range seg.ResolvedClips {
			c.Start = at + c.Offset
			ps.Clips[j] = c
		}
		plan.Segments = append(plan.Segments, ps)
		plan.Cues = append(plan.Cues, ps.Cues...)
		at += seg.ActualDuration
	}
	plan.TotalDuration = at

	if err := Validate(plan); err != nil {
		return types.RenderPlan{}, err
	}
	return plan, nil
}

// Validate checks the plan is gapless, every segment is exactly tiled by its
// clips and cues are ordered and contained in their segments
func Validate(plan types.RenderPlan) error {
	fail := func(format string, args ...interface{}) error {
		return apperr.ErrPlanInconsistentf(format, args...)
	}
	if len(plan.Segments) == 0 {
		return fail("plan has no segments")
	}

	var at, lastCueEnd time.Duration
	cues := 0
	for _, s := range plan.Segments {
		if s.Duration <= 0 {
			return fail("segment %d has non-positive duration %s", s.Index, s.Duration)
		}
		if s.Start != at {
			return fail("segment %d starts at %s, want %s", s.Index, s.Start, at)
		}
		if s.AudioFile == "" {
			return fail("segment %d has no audio", s.Index)
		}
		if len(s.Clips) == 0 {
			return fail("segment %d has no clips", s.Index)
		}

		var off, sum time.Duration
		for j, c := range s.Clips {
			switch {
			case c.Duration <= 0:
				return fail("segment %d clip %d has non-positive duration", s.Index, j)
			case c.Offset != off:
				return fail("segment %d clip %d starts at %s, want %s", s.Index, j, c.Offset, off)
			case c.Start != s.Start+c.Offset:
				return fail("segment %d clip %d absolute start %s, want %s", s.Index, j, c.Start, s.Start+c.Offset)
			case c.Asset.File == "":
				return fail("segment %d clip %d has no asset", s.Index, j)
			}
			off = c.End()
			sum += c.Duration
		}
		if sum != s.Duration {
			return fail("segment %d clips cover %s of %s", s.Index, sum, s.Duration)
		}

		end := s.Start + s.Duration
		for j, c := range s.Cues {
			switch {
			case c.End <= c.Start:
				return fail("segment %d cue %d is empty", s.Index, j)
			case c.Start < s.Start || c.End > end:
				return fail("segment %d cue %d [%s,%s) outside segment", s.Index, j, c.Start, c.End)
			case c.Start < lastCueEnd:
				return fail("segment %d cue %d overlaps previous cue", s.Index, j)
			}
			lastCueEnd = c.End
		}
		cues += len(s.Cues)
		at = end
	}

	if plan.TotalDuration != at {
		return fail("total %s differs from segment sum %s", plan.TotalDuration, at)
	}
	if len(plan.Cues) != cues {
		return fail("plan lists %d cues, segments carry %d", len(plan.Cues), cues)
	}
	return nil
}

// CheckAudio compares the concatenated narration length with the plan; they
// may differ by at most one frame
func CheckAudio(plan types.RenderPlan, audio time.Duration) error {
	frame := time.Second / 30
	if plan.FPS > 0 {
		frame = time.Second / time.Duration(plan.FPS)
	}
	diff := audio - plan.TotalDuration
	if diff < 0 {
		diff = -diff
	}
	if diff > frame {
		return apperr.ErrPlanInconsistentf(
			"concatenated audio is %s, plan total is %s", audio, plan.TotalDuration)
	}
	return nil
}
