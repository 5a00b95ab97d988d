package assembly

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/assets"
	"github.com/rissalhedna/Financial-Video-Generator/audio"
	"github.com/rissalhedna/Financial-Video-Generator/config"
	"github.com/rissalhedna/Financial-Video-Generator/logger"
	"github.com/rissalhedna/Financial-Video-Generator/media"
	"github.com/rissalhedna/Financial-Video-Generator/timeline"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

type fakeResolver struct {
	missing   map[string]bool
	fallbacks atomic.Int32
}

func (f *fakeResolver) Resolve(ctx context.Context, req assets.Request) (types.Asset, error) {
	for _, t := range req.Tags {
		if f.missing[t] {
			return types.Asset{}, apperr.ErrAssetUnavailableFor(req.Tags, errors.New("no results"))
		}
	}
	return types.Asset{Key: assets.TagKey(req.Tags), File: "/clips/" + strings.Join(req.Tags, "-") + ".mp4", Kind: types.AssetVideo}, nil
}

func (f *fakeResolver) ResolveChart(ctx context.Context, segment int, data types.ChartData) (types.Asset, error) {
	return types.Asset{Key: assets.ChartKey(data), File: "/clips/chart.mp4", Kind: types.AssetChart}, nil
}

func (f *fakeResolver) Fallback(ctx context.Context) (types.Asset, error) {
	f.fallbacks.Add(1)
	return types.Asset{Key: "fallback", File: "/clips/card.mp4", Kind: types.AssetFallback}, nil
}

type fakeBinder struct {
	durations map[int]time.Duration
	fail      map[int]bool
	block     bool
	calls     atomic.Int32
}

func (f *fakeBinder) Bind(ctx context.Context, seg types.Segment, voice string) (audio.Result, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return audio.Result{}, apperr.ErrAudioSynthesis(seg.Index, ctx.Err())
	}
	if f.fail[seg.Index] {
		return audio.Result{}, apperr.ErrAudioSynthesis(seg.Index, errors.New("quota exceeded"))
	}
	return audio.Result{Segment: seg.Index, File: fmt.Sprintf("/audio/segment_%03d.mp3", seg.Index), Duration: f.durations[seg.Index]}, nil
}

type fakeTools struct {
	mu     sync.Mutex
	concat []string
	total  time.Duration
}

func (f *fakeTools) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	return f.total, nil
}

func (f *fakeTools) ConcatAudio(ctx context.Context, files []string, outFile string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.concat = append([]string(nil), files...)
	return nil
}

func (f *fakeTools) ColorCard(ctx context.Context, outFile string, opts media.CardOptions) error {
	return nil
}

type countingFlusher struct{ n atomic.Int32 }

func (c *countingFlusher) Flush() error { c.n.Add(1); return nil }

func testScript() *types.Script {
	return &types.Script{
		Title: "Apple",
		Segments: []types.Segment{
			{
				Index:             0,
				Narration:         "Started in a garage. Now worth three trillion.",
				EstimatedDuration: 5 * time.Second,
				Clips: []types.ClipRequest{
					{Tags: []string{"garage"}, Trigger: "garage"},
					{Tags: []string{"money"}, Trigger: "trillion"},
					{Tags: []string{"missing"}},
				},
			},
			{
				Index:             1,
				Narration:         "Revenue grew every year.",
				EstimatedDuration: 3 * time.Second,
				ChartPlaceholder:  true,
				Chart:             &types.ChartData{ChartType: "bar", Labels: []string{"a"}, Values: []float64{1}},
			},
			{
				Index:             2,
				Narration:         "Can it keep growing?",
				EstimatedDuration: 2 * time.Second,
				VisualTags:        []string{"missing"},
			},
		},
	}
}

func newAssembler(t *testing.T, r Resolver, b Binder, tools media.Tools, f Flusher) *Assembler {
	t.Helper()
	cfg := config.Default()
	cfg.Assembly.Workers = 2
	cfg.Assembly.RunTimeout = 5 * time.Second
	return New(&cfg, r, b, tools, f, logger.Nop())
}

func TestAssembleBuildsValidPlan(t *testing.T) {
	resolver := &fakeResolver{missing: map[string]bool{"missing": true}}
	binder := &fakeBinder{durations: map[int]time.Duration{0: 7 * time.Second, 1: 3 * time.Second, 2: 2500 * time.Millisecond}}
	tools := &fakeTools{total: 12500 * time.Millisecond}
	flusher := &countingFlusher{}
	a := newAssembler(t, resolver, binder, tools, flusher)
	runDir := t.TempDir()

	s := testScript()
	plan, report, err := a.Assemble(context.Background(), "run-1", runDir, s)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := timeline.Validate(plan); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if plan.TotalDuration != 12500*time.Millisecond {
		t.Fatalf("total: want=12.5s got=%s", plan.TotalDuration)
	}

	// 7s actual against a 5s estimate drifts; the others are within tolerance
	if len(report.Drifts) != 1 || report.Drifts[0].Segment != 0 {
		t.Fatalf("drifts: %+v", report.Drifts)
	}
	if s.Segments[0].ActualDuration != 7*time.Second {
		t.Fatalf("true duration: want=7s got=%s", s.Segments[0].ActualDuration)
	}

	// segment 0: third clip missing, second clip extended to the end
	seg0 := plan.Segments[0]
	if len(seg0.Clips) != 2 || !seg0.Clips[1].Extended || seg0.Clips[1].End() != 7*time.Second {
		t.Fatalf("segment 0 clips: %+v", seg0.Clips)
	}
	if plan.Segments[1].Clips[0].Asset.Kind != types.AssetChart {
		t.Fatalf("segment 1 should carry the chart clip: %+v", plan.Segments[1].Clips)
	}
	if plan.Segments[2].Clips[0].Asset.Kind != types.AssetFallback || resolver.fallbacks.Load() != 1 {
		t.Fatalf("segment 2 should fall back to the card: %+v", plan.Segments[2].Clips)
	}
	if report.Degraded != 2 {
		t.Fatalf("degraded: want=2 got=%d", report.Degraded)
	}

	want := []string{"/audio/segment_000.mp3", "/audio/segment_001.mp3", "/audio/segment_002.mp3"}
	if strings.Join(tools.concat, ",") != strings.Join(want, ",") {
		t.Fatalf("concat order: got=%v", tools.concat)
	}
	if plan.AudioFile != filepath.Join(runDir, "narration.mp3") {
		t.Fatalf("audio file: got=%s", plan.AudioFile)
	}
	if _, err := os.Stat(plan.SubtitleFile); err != nil {
		t.Fatalf("subtitles not written: %v", err)
	}
	if flusher.n.Load() != 1 {
		t.Fatalf("cache flushes: want=1 got=%d", flusher.n.Load())
	}
}

func TestAssembleAudioFailureAbortsRun(t *testing.T) {
	binder := &fakeBinder{
		durations: map[int]time.Duration{0: time.Second, 1: time.Second, 2: time.Second},
		fail:      map[int]bool{1: true},
	}
	a := newAssembler(t, &fakeResolver{}, binder, &fakeTools{total: 3 * time.Second}, nil)

	plan, _, err := a.Assemble(context.Background(), "run", t.TempDir(), testScript())
	if !errors.Is(err, apperr.ErrAudioSynthesisFailed) {
		t.Fatalf("want AudioSynthesisFailed got %v", err)
	}
	if len(plan.Segments) != 0 {
		t.Fatal("no partial plan may be returned")
	}
}

func TestAssembleTimeout(t *testing.T) {
	a := newAssembler(t, &fakeResolver{}, &fakeBinder{block: true}, &fakeTools{}, nil)
	a.Timeout = 50 * time.Millisecond

	_, _, err := a.Assemble(context.Background(), "run", t.TempDir(), testScript())
	if !errors.Is(err, apperr.ErrAssemblyTimeout) {
		t.Fatalf("want AssemblyTimeout got %v", err)
	}
}

func TestAssembleAudioLengthMismatch(t *testing.T) {
	binder := &fakeBinder{durations: map[int]time.Duration{0: time.Second, 1: time.Second, 2: time.Second}}
	a := newAssembler(t, &fakeResolver{}, binder, &fakeTools{total: 4 * time.Second}, nil)

	_, _, err := a.Assemble(context.Background(), "run", t.TempDir(), testScript())
	if !errors.Is(err, apperr.ErrPlanInconsistent) {
		t.Fatalf("want PlanInconsistent got %v", err)
	}
}

func TestAssembleEmptyScript(t *testing.T) {
	a := newAssembler(t, &fakeResolver{}, &fakeBinder{}, &fakeTools{}, nil)
	_, _, err := a.Assemble(context.Background(), "run", t.TempDir(), &types.Script{})
	if !errors.Is(err, apperr.ErrInvalidScript) {
		t.Fatalf("want InvalidScript got %v", err)
	}
}

func TestRequestsFor(t *testing.T) {
	got := requestsFor(types.Segment{Narration: "The smartphone changed the office forever"})
	if len(got) != 1 || len(got[0].Tags) == 0 || got[0].Tags[0] != "smartphone" {
		t.Fatalf("implicit request: %+v", got)
	}
	got = requestsFor(types.Segment{VisualTags: []string{"bank"}})
	if len(got) != 1 || got[0].Tags[0] != "bank" {
		t.Fatalf("visual tags request: %+v", got)
	}
}
