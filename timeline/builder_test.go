package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

func clip(file string, off, dur time.Duration) types.ResolvedClip {
	return types.ResolvedClip{Asset: types.Asset{File: file}, Offset: off, Duration: dur}
}

func parts() []Part {
	return []Part{
		{
			Segment: types.Segment{
				Index: 0, ActualDuration: 6 * time.Second, AudioFile: "a0.mp3",
				ResolvedClips: []types.ResolvedClip{
					clip("x.mp4", 0, 1200*time.Millisecond),
					clip("y.mp4", 1200*time.Millisecond, 4800*time.Millisecond),
				},
			},
			Cues: []types.SubtitleCue{{Start: 0, End: time.Second, Text: "Started in a garage."}},
		},
		{
			Segment: types.Segment{
				Index: 1, ActualDuration: 7 * time.Second, AudioFile: "a1.mp3",
				ResolvedClips: []types.ResolvedClip{clip("z.mp4", 0, 7*time.Second)},
			},
			Cues: []types.SubtitleCue{{Start: 500 * time.Millisecond, End: 2 * time.Second, Text: "Then"}},
		},
	}
}

func TestBuildAbsoluteOffsets(t *testing.T) {
	plan, err := Builder{FPS: 30}.Build("run-1", parts())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.TotalDuration != 13*time.Second {
		t.Fatalf("total: want=13s got=%s", plan.TotalDuration)
	}
	s1 := plan.Segments[1]
	if s1.Start != 6*time.Second || s1.Clips[0].Start != 6*time.Second {
		t.Fatalf("segment 1 start: got=%s clip=%s", s1.Start, s1.Clips[0].Start)
	}
	if plan.Segments[0].Clips[1].Start != 1200*time.Millisecond {
		t.Fatalf("clip start: got=%s", plan.Segments[0].Clips[1].Start)
	}
	if len(plan.Cues) != 2 || plan.Cues[1].Start != 6500*time.Millisecond || plan.Cues[1].End != 8*time.Second {
		t.Fatalf("cues: got=%+v", plan.Cues)
	}
	if err := CheckAudio(plan, 13*time.Second+20*time.Millisecond); err != nil {
		t.Fatalf("CheckAudio within a frame: %v", err)
	}
	if err := CheckAudio(plan, 13*time.Second+50*time.Millisecond); !errors.Is(err, apperr.ErrPlanInconsistent) {
		t.Fatalf("CheckAudio beyond a frame: want PlanInconsistent got %v", err)
	}
}

func TestBuildRejectsBrokenPlans(t *testing.T) {
	cases := map[string]func(ps []Part){
		"gap between clips": func(ps []Part) {
			ps[0].Segment.ResolvedClips[1].Offset += time.Millisecond
		},
		"clips short of segment": func(ps []Part) {
			ps[1].Segment.ResolvedClips[0].Duration -= time.Millisecond
		},
		"cue past segment end": func(ps []Part) {
			ps[0].Cues[0].End = 7 * time.Second
		},
		"no audio": func(ps []Part) {
			ps[1].Segment.AudioFile = ""
		},
		"out of order": func(ps []Part) {
			ps[1].Segment.Index = 0
		},
		"no clips": func(ps []Part) {
			ps[1].Segment.ResolvedClips = nil
		},
		"zero duration": func(ps []Part) {
			ps[1].Segment.ActualDuration = 0
		},
	}
	for name, mutate := range cases {
		ps := parts()
		mutate(ps)
		_, err := Builder{FPS: 30}.Build("run", ps)
		if !errors.Is(err, apperr.ErrPlanInconsistent) {
			t.Fatalf("%s: want PlanInconsistent got %v", name, err)
		}
		if !apperr.CodePlanInconsistent.Fatal() {
			t.Fatal("PlanInconsistent must be fatal")
		}
	}
}

func TestValidateEmptyPlan(t *testing.T) {
	if err := Validate(types.RenderPlan{}); !errors.Is(err, apperr.ErrPlanInconsistent) {
		t.Fatalf("want PlanInconsistent got %v", err)
	}
}
