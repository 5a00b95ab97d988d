package types

import (
	"encoding/json"
	"time"
)

// ChartData is the payload handed to the chart collaborator for chart-placeholder segments
type ChartData struct {
	ChartType  string    `json:"chart_type" yaml:"chart_type" validate:"required,oneof=line bar pie"`
	Title      string    `json:"title,omitempty" yaml:"title"`
	Labels     []string  `json:"labels" yaml:"labels" validate:"required,min=1"`
	Values     []float64 `json:"values" yaml:"values" validate:"required,min=1"`
	XAxisLabel string    `json:"x_axis_label,omitempty" yaml:"x_axis_label"`
	YAxisLabel string    `json:"y_axis_label,omitempty" yaml:"y_axis_label"`
}

// ClipRequest is one visual request within a segment, in screen order
type ClipRequest struct {
	Tags    []string `json:"tags"`
	Trigger string   `json:"trigger,omitempty"`
	Weight  float64  `json:"weight,omitempty"` // duration_pct in the script file; 0 = unset
}

// AssetKind distinguishes moving footage from stills and chart clips
type AssetKind string

const (
	AssetVideo    AssetKind = "video"
	AssetImage    AssetKind = "image"
	AssetChart    AssetKind = "chart"
	AssetFallback AssetKind = "fallback"
)

// Asset is a concrete visual file on disk
type Asset struct {
	Key            string        `json:"key"`
	File           string        `json:"file"`
	Kind           AssetKind     `json:"kind"`
	Source         string        `json:"source"`
	NativeDuration time.Duration `json:"-"`
	Width          int           `json:"width,omitempty"`
	Height         int           `json:"height,omitempty"`
}

// ResolvedClip is a ClipRequest bound to an asset with a span inside its segment
type ResolvedClip struct {
	Request  ClipRequest   `json:"request"`
	Asset    Asset         `json:"asset"`
	Offset   time.Duration `json:"-"` // relative to the segment start
	Duration time.Duration `json:"-"`
	Start    time.Duration `json:"-"`        // absolute, set by the timeline builder
	Cut      bool          `json:"cut"`      // span starts at a trigger-word cut
	Extended bool          `json:"extended"` // span absorbed an unavailable neighbour
}

// End returns the clip's end offset within its segment
func (c ResolvedClip) End() time.Duration {
	return c.Offset + c.Duration
}

// WordTiming is a spoken word with offsets relative to its segment's audio
type WordTiming struct {
	Word  string        `json:"word"`
	Start time.Duration `json:"-"`
	End   time.Duration `json:"-"`
}

// SubtitleCue is one subtitle entry
type SubtitleCue struct {
	Start time.Duration `json:"-"`
	End   time.Duration `json:"-"`
	Text  string        `json:"text"`
}

// Segment is one narration beat
type Segment struct {
	Index             int            `json:"index"`
	Narration         string         `json:"narration"`
	Emotion           string         `json:"emotion,omitempty"`
	OnScreenText      string         `json:"on_screen_text,omitempty"`
	VisualTags        []string       `json:"visual_tags,omitempty"`
	Clips             []ClipRequest  `json:"clips,omitempty"`
	ChartPlaceholder  bool           `json:"chart_placeholder"`
	Chart             *ChartData     `json:"chart,omitempty"`
	EstimatedDuration time.Duration  `json:"-"`
	ActualDuration    time.Duration  `json:"-"`
	AudioFile         string         `json:"audio_file,omitempty"`
	ResolvedClips     []ResolvedClip `json:"resolved_clips,omitempty"`
}

// Script is the ordered segment sequence produced by script generation
type Script struct {
	Title    string    `json:"title"`
	VoiceID  string    `json:"voice_id,omitempty"`
	Segments []Segment `json:"segments"`
}

// PlanSegment is a segment placed on the render timeline
type PlanSegment struct {
	Index     int            `json:"index"`
	Start     time.Duration  `json:"-"`
	Duration  time.Duration  `json:"-"`
	AudioFile string         `json:"audio_file"`
	Clips     []ResolvedClip `json:"clips"`
	Cues      []SubtitleCue  `json:"cues"`
}

// RenderPlan is the validated, gapless timeline consumed by the renderer
type RenderPlan struct {
	RunID         string        `json:"run_id"`
	FPS           int           `json:"fps"`
	TotalDuration time.Duration `json:"-"`
	Segments      []PlanSegment `json:"segments"`
	Cues          []SubtitleCue `json:"-"`
	AudioFile     string        `json:"audio_file,omitempty"`
	SubtitleFile  string        `json:"subtitle_file,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// PipelineState tracks one assembly run for post-mortem inspection
type PipelineState struct {
	RunID       string `json:"run_id"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
	ScriptFile  string `json:"script_file"`
	PlanFile    string `json:"plan_file"`
	AudioFile   string `json:"audio_file"`
	SubtitleSRT string `json:"subtitle_srt"`
	Degraded    int    `json:"degraded_clips"`
	Drifted     int    `json:"drifted_segments"`
	Error       string `json:"error,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
}

func secs(d time.Duration) float64 { return d.Seconds() }

// MarshalJSON exports spans in seconds
func (c ResolvedClip) MarshalJSON() ([]byte, error) {
	type alias ResolvedClip
	return json.Marshal(struct {
		alias
		NativeSec float64 `json:"native_duration_sec"`
		OffsetSec float64 `json:"offset_sec"`
		DurSec    float64 `json:"duration_sec"`
		StartSec  float64 `json:"start_sec"`
	}{alias(c), secs(c.Asset.NativeDuration), secs(c.Offset), secs(c.Duration), secs(c.Start)})
}

// MarshalJSON exports cue times in seconds
func (c SubtitleCue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		StartSec float64 `json:"start_sec"`
		EndSec   float64 `json:"end_sec"`
		Text     string  `json:"text"`
	}{secs(c.Start), secs(c.End), c.Text})
}

// MarshalJSON exports segment placement in seconds
func (s PlanSegment) MarshalJSON() ([]byte, error) {
	type alias PlanSegment
	return json.Marshal(struct {
		alias
		StartSec float64 `json:"start_sec"`
		DurSec   float64 `json:"duration_sec"`
	}{alias(s), secs(s.Start), secs(s.Duration)})
}

// MarshalJSON exports the plan with its total duration in seconds
func (p RenderPlan) MarshalJSON() ([]byte, error) {
	type alias RenderPlan
	return json.Marshal(struct {
		alias
		TotalSec float64 `json:"total_sec"`
	}{alias(p), secs(p.TotalDuration)})
}
