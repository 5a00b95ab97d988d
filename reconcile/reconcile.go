// Package reconcile replaces script duration estimates with measured audio
// durations and reports how far the estimates were off.
package reconcile

import (
	"errors"
	"math"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/logger"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// Observation is the outcome of reconciling one segment
type Observation struct {
	Segment   int
	Estimated time.Duration
	Actual    time.Duration
	Deviation float64 // |actual-estimated| / estimated, 0 without an estimate
	Drifted   bool
}

// Err returns the DurationDrift error for a drifted observation, nil otherwise
func (o Observation) Err() error {
	if !o.Drifted {
		return nil
	}
	return apperr.ErrDrift(o.Segment, o.Estimated, o.Actual)
}

type Reconciler struct {
	Tolerance float64
	log       *logger.Logger
}

func New(tolerance float64, log *logger.Logger) *Reconciler {
	return &Reconciler{Tolerance: tolerance, log: log.Stage("reconcile")}
}

// Reconcile sets seg's true duration to actual. The estimate is kept on the
// segment for diagnostics only.
func (r *Reconciler) Reconcile(seg *types.Segment, actual time.Duration) (Observation, error) {
	if actual <= 0 {
		return Observation{}, apperr.ErrAudioSynthesis(seg.Index, errors.New("audio has no duration"))
	}
	seg.ActualDuration = actual

	obs := Observation{Segment: seg.Index, Estimated: seg.EstimatedDuration, Actual: actual}
	if seg.EstimatedDuration > 0 {
		obs.Deviation = math.Abs(float64(actual-seg.EstimatedDuration)) / float64(seg.EstimatedDuration)
		obs.Drifted = obs.Deviation > r.Tolerance
	}
	if obs.Drifted {
		r.log.Info("duration drift", "segment", seg.Index,
			"estimated", seg.EstimatedDuration, "actual", actual,
			"deviation", math.Round(obs.Deviation*1000)/1000, "error", obs.Err())
	}
	return obs, nil
}
