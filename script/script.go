// Package script loads the video spec produced by script generation into
// the segment sequence the assembler works on.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/timing"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

const (
	wordsPerMin    = 150
	minEstimate    = 2 * time.Second
	defaultTitle   = "Untitled Video"
	defaultEmotion = "neutral"
)

// ClipSpec is one visual request as written in the spec file
type ClipSpec struct {
	Tags        []string `yaml:"tags" json:"tags"`
	DurationPct float64  `yaml:"duration_pct" json:"duration_pct" validate:"gte=0,lte=100"`
	Trigger     string   `yaml:"trigger" json:"trigger"`
}

// SegmentSpec is one narration beat as written in the spec file
type SegmentSpec struct {
	Text         string           `yaml:"text" json:"text" validate:"required"`
	Emotion      string           `yaml:"emotion" json:"emotion"`
	Visuals      []string         `yaml:"visuals" json:"visuals"`
	Clips        []ClipSpec       `yaml:"clips" json:"clips" validate:"dive"`
	Duration     float64          `yaml:"duration" json:"duration" validate:"gte=0"`
	OnScreenText string           `yaml:"on_screen_text" json:"on_screen_text"`
	Chart        *types.ChartData `yaml:"chart" json:"chart"`
}

// Spec is the whole video spec file
type Spec struct {
	Title    string        `yaml:"title" json:"title"`
	VoiceID  string        `yaml:"voice_id" json:"voice_id"`
	Segments []SegmentSpec `yaml:"segments" json:"segments" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Load reads a YAML or JSON spec file
func Load(path string) (*types.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var spec Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &spec)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &spec)
	default:
		return nil, apperr.ErrInvalidScriptf("unsupported script file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, apperr.ErrInvalidScriptf("parse %s: %v", filepath.Base(path), err)
	}
	return spec.Script()
}

// Script validates the spec and converts it
func (s Spec) Script() (*types.Script, error) {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, apperr.ErrInvalidScriptf("field %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, apperr.ErrInvalidScriptf("%v", err)
	}

	out := &types.Script{Title: s.Title, VoiceID: s.VoiceID}
	if out.Title == "" {
		out.Title = defaultTitle
	}

	for i, ss := range s.Segments {
		if ss.Chart != nil && len(ss.Clips) > 0 {
			return nil, apperr.ErrInvalidScriptf("segment %d has both clips and chart", i)
		}
		if ss.Chart != nil && len(ss.Chart.Labels) != len(ss.Chart.Values) {
			return nil, apperr.ErrInvalidScriptf("segment %d chart has %d labels and %d values", i, len(ss.Chart.Labels), len(ss.Chart.Values))
		}
		seg := types.Segment{
			Index:             i,
			Narration:         strings.TrimSpace(ss.Text),
			Emotion:           ss.Emotion,
			OnScreenText:      ss.OnScreenText,
			VisualTags:        ss.Visuals,
			ChartPlaceholder:  ss.Chart != nil,
			Chart:             ss.Chart,
			EstimatedDuration: Estimate(ss.Text, ss.Duration),
		}
		if seg.Emotion == "" {
			seg.Emotion = defaultEmotion
		}
		for _, c := range ss.Clips {
			seg.Clips = append(seg.Clips, types.ClipRequest{
				Tags:    c.Tags,
				Trigger: strings.TrimSpace(c.Trigger),
				Weight:  c.DurationPct,
			})
		}
		out.Segments = append(out.Segments, seg)
	}
	return out, nil
}

// Estimate returns the stated duration, or one derived from the word count
// at 150 words per minute with a 2s floor
func Estimate(text string, statedSec float64) time.Duration {
	if statedSec > 0 {
		return time.Duration(statedSec * float64(time.Second))
	}
	words := len(timing.Tokenize(text))
	d := time.Duration(words) * time.Minute / wordsPerMin
	if d < minEstimate {
		d = minEstimate
	}
	return d
}
