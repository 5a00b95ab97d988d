package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/logger"
	"github.com/rissalhedna/Financial-Video-Generator/timing"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// Result is one segment's narration audio with its measured duration and
// word timing
type Result struct {
	Segment  int
	File     string
	Duration time.Duration
	Words    timing.Words
}

// Binder drives a Synthesizer for one segment at a time with retries, then
// measures what came back
type Binder struct {
	synth  Synthesizer
	prober Prober
	dir    string
	log    *logger.Logger

	Voice       string
	MaxRetries  int
	CallTimeout time.Duration
	// RetryInterval is the first backoff wait; tests shrink it
	RetryInterval time.Duration
}

func NewBinder(synth Synthesizer, prober Prober, dir string, log *logger.Logger) *Binder {
	return &Binder{
		synth:         synth,
		prober:        prober,
		dir:           dir,
		log:           log.Stage("audio"),
		MaxRetries:    3,
		CallTimeout:   60 * time.Second,
		RetryInterval: time.Second,
	}
}

// Bind synthesizes seg's narration. voice overrides the binder default when
// set. Failures after all retries are AudioSynthesisFailed.
func (b *Binder) Bind(ctx context.Context, seg types.Segment, voice string) (Result, error) {
	if strings.TrimSpace(seg.Narration) == "" {
		return Result{}, apperr.ErrAudioSynthesis(seg.Index, errors.New("empty narration"))
	}
	if voice == "" {
		voice = b.Voice
	}
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return Result{}, apperr.ErrAudioSynthesis(seg.Index, fmt.Errorf("create audio dir: %w", err))
	}

	req := Request{
		Segment: seg.Index,
		Text:    seg.Narration,
		Emotion: seg.Emotion,
		Voice:   voice,
		OutFile: filepath.Join(b.dir, fmt.Sprintf("segment_%03d.mp3", seg.Index)),
	}

	var syn Synthesis
	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, b.CallTimeout)
		defer cancel()
		s, err := b.synth.Synthesize(callCtx, req)
		if err != nil {
			b.log.Warn("synthesis attempt failed", "segment", seg.Index, "attempt", attempt, "engine", b.synth.Name(), "error", err)
			return err
		}
		syn = s
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.RetryInterval
	bo.MaxInterval = 10 * b.RetryInterval
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(b.MaxRetries)), ctx)); err != nil {
		return Result{}, apperr.ErrAudioSynthesis(seg.Index, err)
	}

	dur := syn.Duration
	if dur <= 0 {
		d, err := b.prober.ProbeDuration(ctx, syn.File)
		if err != nil {
			return Result{}, apperr.ErrAudioSynthesis(seg.Index, fmt.Errorf("measure duration: %w", err))
		}
		dur = d
	}
	if dur <= 0 {
		return Result{}, apperr.ErrAudioSynthesis(seg.Index, fmt.Errorf("non-positive audio duration %s", dur))
	}

	var words timing.Words
	if len(syn.Words) > 0 {
		w := append([]types.WordTiming(nil), syn.Words...)
		if last := &w[len(w)-1]; last.End <= last.Start {
			last.End = dur
		}
		words = timing.FromProvider(w).Clamp(dur)
	} else {
		words = timing.Derive(seg.Narration, dur)
	}

	b.log.Info("segment audio ready", "segment", seg.Index, "duration", dur, "timing", words.Kind.String(), "file", filepath.Base(syn.File))
	return Result{Segment: seg.Index, File: syn.File, Duration: dur, Words: words}, nil
}
