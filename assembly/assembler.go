// Package assembly runs the per-segment pipelines concurrently and joins them
// into one validated render plan.
//
//	segment ─┬─ audio bind ─────────┐
//	         └─ asset resolve (×n) ─┴─ reconcile → allocate → align ─┐
//	                                                                  ├─ timeline → plan
//	segment ─ ...                                                    ─┘
package assembly

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rissalhedna/Financial-Video-Generator/allocate"
	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/assets"
	"github.com/rissalhedna/Financial-Video-Generator/audio"
	"github.com/rissalhedna/Financial-Video-Generator/config"
	"github.com/rissalhedna/Financial-Video-Generator/logger"
	"github.com/rissalhedna/Financial-Video-Generator/media"
	"github.com/rissalhedna/Financial-Video-Generator/reconcile"
	"github.com/rissalhedna/Financial-Video-Generator/subtitles"
	"github.com/rissalhedna/Financial-Video-Generator/timeline"
	"github.com/rissalhedna/Financial-Video-Generator/timing"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

const implicitKeywords = 3

// Resolver obtains visual assets
type Resolver interface {
	Resolve(ctx context.Context, req assets.Request) (types.Asset, error)
	ResolveChart(ctx context.Context, segment int, data types.ChartData) (types.Asset, error)
	Fallback(ctx context.Context) (types.Asset, error)
}

// Binder obtains narration audio
type Binder interface {
	Bind(ctx context.Context, seg types.Segment, voice string) (audio.Result, error)
}

// Flusher persists shared state at run end
type Flusher interface {
	Flush() error
}

// Report summarises a finished run
type Report struct {
	Drifts   []reconcile.Observation
	Degraded int
	Elapsed  time.Duration
}

type Assembler struct {
	resolver   Resolver
	binder     Binder
	tools      media.Tools
	cache      Flusher
	reconciler *reconcile.Reconciler
	allocator  *allocate.Allocator
	aligner    subtitles.Aligner
	builder    timeline.Builder
	log        *logger.Logger

	Workers int
	Timeout time.Duration
}

func New(cfg *config.Config, resolver Resolver, binder Binder, tools media.Tools, cache Flusher, log *logger.Logger) *Assembler {
	return &Assembler{
		resolver:   resolver,
		binder:     binder,
		tools:      tools,
		cache:      cache,
		reconciler: reconcile.New(cfg.Assembly.DriftTolerance, log),
		allocator:  allocate.New(cfg.Assembly.FPS, cfg.Assembly.SnapToFrames, log),
		aligner:    subtitles.NewAligner(cfg.Subtitles.MaxCharsPerCue, cfg.Subtitles.MinDisplay()),
		builder:    timeline.Builder{FPS: cfg.Assembly.FPS},
		log:        log.Stage("assembly"),
		Workers:    cfg.Assembly.Workers,
		Timeout:    cfg.Assembly.RunTimeout,
	}
}

// segmentOutput is what one segment pipeline hands to the timeline builder
type segmentOutput struct {
	part     timeline.Part
	drift    reconcile.Observation
	degraded int
}

// Assemble produces the render plan for s, writing the concatenated narration
// and the SRT file into runDir. Either a complete, validated plan is returned
// or an error and no plan.
func (a *Assembler) Assemble(ctx context.Context, runID, runDir string, s *types.Script) (types.RenderPlan, Report, error) {
	start := time.Now()
	if s == nil || len(s.Segments) == 0 {
		return types.RenderPlan{}, Report{}, apperr.ErrInvalidScriptf("script has no segments")
	}

	runCtx := ctx
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	if a.cache != nil {
		defer func() {
			if err := a.cache.Flush(); err != nil {
				a.log.Warn("cache flush failed", "error", err)
			}
		}()
	}

	a.log.Info("assembly started", "run", runID, "segments", len(s.Segments), "workers", a.Workers)

	outputs := make([]segmentOutput, len(s.Segments))
	g, gctx := errgroup.WithContext(runCtx)
	if a.Workers > 0 {
		g.SetLimit(a.Workers)
	}
	for i := range s.Segments {
		i, seg := i, s.Segments[i]
		g.Go(func() error {
			out, err := a.segment(gctx, seg, s.VoiceID)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.RenderPlan{}, Report{}, a.failure(runCtx, start, err)
	}

	// barrier passed: every segment has audio, clips and cues
	report := Report{}
	parts := make([]timeline.Part, len(outputs))
	for i, o := range outputs {
		parts[i] = o.part
		report.Degraded += o.degraded
		if o.drift.Drifted {
			report.Drifts = append(report.Drifts, o.drift)
		}
		s.Segments[i] = o.part.Segment
	}

	plan, err := a.builder.Build(runID, parts)
	if err != nil {
		return types.RenderPlan{}, Report{}, err
	}

	narration := filepath.Join(runDir, "narration.mp3")
	files := make([]string, len(plan.Segments))
	for i, ps := range plan.Segments {
		files[i] = ps.AudioFile
	}
	if err := a.tools.ConcatAudio(runCtx, files, narration); err != nil {
		return types.RenderPlan{}, Report{}, a.failure(runCtx, start, fmt.Errorf("concat narration: %w", err))
	}
	total, err := a.tools.ProbeDuration(runCtx, narration)
	if err != nil {
		return types.RenderPlan{}, Report{}, a.failure(runCtx, start, fmt.Errorf("probe narration: %w", err))
	}
	if err := timeline.CheckAudio(plan, total); err != nil {
		return types.RenderPlan{}, Report{}, err
	}
	plan.AudioFile = narration

	srt := filepath.Join(runDir, "subtitles.srt")
	if err := subtitles.SaveSRT(srt, plan.Cues); err != nil {
		return types.RenderPlan{}, Report{}, fmt.Errorf("write subtitles: %w", err)
	}
	plan.SubtitleFile = srt

	report.Elapsed = time.Since(start)
	a.log.Info("assembly finished", "run", runID,
		"total", plan.TotalDuration, "cues", len(plan.Cues),
		"degraded_clips", report.Degraded, "drifted_segments", len(report.Drifts),
		"elapsed", report.Elapsed.Round(time.Millisecond))
	return plan, report, nil
}

// failure maps a run error, turning an expired run deadline into AssemblyTimeout
func (a *Assembler) failure(runCtx context.Context, start time.Time, err error) error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return apperr.ErrAssemblyTimeoutAfter(time.Since(start), err)
	}
	return err
}

// segment runs one segment's pipeline. Audio and asset calls run
// concurrently; only an audio failure is an error.
func (a *Assembler) segment(ctx context.Context, seg types.Segment, voice string) (segmentOutput, error) {
	reqs := requestsFor(seg)
	outcomes := make([]allocate.Outcome, len(reqs))
	var bound audio.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := a.binder.Bind(gctx, seg, voice)
		if err != nil {
			return err
		}
		bound = res
		return nil
	})
	if seg.ChartPlaceholder && seg.Chart != nil {
		g.Go(func() error {
			asset, err := a.resolver.ResolveChart(gctx, seg.Index, *seg.Chart)
			if err != nil {
				// charts degrade to stock footage for the segment's topic
				a.log.Warn("chart unavailable, using footage", "segment", seg.Index, "error", err)
				asset, err = a.resolver.Resolve(gctx, assets.Request{Tags: reqs[0].Tags, Emotion: seg.Emotion, Target: seg.EstimatedDuration})
			}
			outcomes[0] = allocate.Outcome{Asset: asset, Err: err}
			return nil
		})
	} else {
		target := seg.EstimatedDuration / time.Duration(len(reqs))
		for i, r := range reqs {
			i, r := i, r
			g.Go(func() error {
				asset, err := a.resolver.Resolve(gctx, assets.Request{Tags: r.Tags, Emotion: seg.Emotion, Target: target})
				outcomes[i] = allocate.Outcome{Asset: asset, Err: err}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return segmentOutput{}, err
	}

	drift, err := a.reconciler.Reconcile(&seg, bound.Duration)
	if err != nil {
		return segmentOutput{}, err
	}
	seg.AudioFile = bound.File

	words := bound.Words
	if !words.Available() {
		words = timing.Derive(seg.Narration, seg.ActualDuration)
	}

	alloc, err := a.allocator.Allocate(seg.Index, seg.ActualDuration, reqs, outcomes, words)
	if errors.Is(err, allocate.ErrNoUsableClip) {
		alloc, err = a.fallback(ctx, seg, reqs, words)
	}
	if err != nil {
		return segmentOutput{}, err
	}
	seg.ResolvedClips = alloc.Clips

	cues := a.aligner.Align(words, alloc.CutWords, seg.ActualDuration)
	return segmentOutput{
		part:     timeline.Part{Segment: seg, Cues: cues},
		drift:    drift,
		degraded: alloc.Degraded,
	}, nil
}

// fallback covers a segment whose every request failed with one colour card
func (a *Assembler) fallback(ctx context.Context, seg types.Segment, reqs []types.ClipRequest, words timing.Words) (allocate.Result, error) {
	card, err := a.resolver.Fallback(ctx)
	if err != nil {
		return allocate.Result{}, apperr.ErrPlanInconsistentf(
			"segment %d has no visual and no fallback card: %v", seg.Index, err)
	}
	a.log.Warn("no clip resolved, using fallback card", "segment", seg.Index, "requests", len(reqs))
	res, err := a.allocator.Allocate(seg.Index, seg.ActualDuration,
		[]types.ClipRequest{{Tags: reqs[0].Tags}}, []allocate.Outcome{{Asset: card}}, words)
	res.Degraded = len(reqs)
	return res, err
}

// requestsFor returns the segment's clip requests in screen order. A segment
// without any gets one implicit request from its visual tags or narration.
func requestsFor(seg types.Segment) []types.ClipRequest {
	if len(seg.Clips) > 0 && !seg.ChartPlaceholder {
		return seg.Clips
	}
	tags := seg.VisualTags
	if len(tags) == 0 {
		tags = assets.Keywords(seg.Narration, implicitKeywords)
	}
	return allocate.ImplicitRequest(tags)
}
