package script

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
)

func TestLoadYAML(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "apple.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Segments) != 3 {
		t.Fatalf("segments: want=3 got=%d", len(s.Segments))
	}
	first := s.Segments[0]
	if first.EstimatedDuration != 5*time.Second || len(first.Clips) != 3 || first.Clips[1].Trigger != "trillion" {
		t.Fatalf("first segment: %+v", first)
	}
	chart := s.Segments[1]
	if !chart.ChartPlaceholder || chart.Chart == nil || chart.Chart.ChartType != "line" {
		t.Fatalf("chart segment: %+v", chart)
	}
	last := s.Segments[2]
	if last.Emotion != "neutral" || last.EstimatedDuration != 2*time.Second || len(last.VisualTags) != 2 {
		t.Fatalf("last segment: %+v", last)
	}
	for i, seg := range s.Segments {
		if seg.Index != i {
			t.Fatalf("segment %d index: got=%d", i, seg.Index)
		}
	}
}

func TestLoadJSONDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.json")
	os.WriteFile(path, []byte(`{"segments":[{"text":"Hello world"}]}`), 0644)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Title != "Untitled Video" || s.VoiceID != "" || s.Segments[0].Emotion != "neutral" {
		t.Fatalf("defaults: %+v", s)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty.yaml":  "title: x\nsegments: []\n",
		"notext.yaml": "segments:\n  - emotion: sad\n",
		"both.yaml":   "segments:\n  - text: hi\n    clips: [{tags: [a]}]\n    chart: {chart_type: bar, labels: [a], values: [1]}\n",
		"chart.yaml":  "segments:\n  - text: hi\n    chart: {chart_type: donut, labels: [a], values: [1]}\n",
		"ragged.yaml": "segments:\n  - text: hi\n    chart: {chart_type: bar, labels: [a, b], values: [1]}\n",
		"spec.txt":    "segments: []\n",
	}
	dir := t.TempDir()
	for name, body := range cases {
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte(body), 0644)
		if _, err := Load(path); !errors.Is(err, apperr.ErrInvalidScript) {
			t.Fatalf("%s: want InvalidScript got %v", name, err)
		}
	}
}

func TestEstimate(t *testing.T) {
	if got := Estimate("word", 0); got != 2*time.Second {
		t.Fatalf("floor: want=2s got=%s", got)
	}
	text := ""
	for i := 0; i < 30; i++ {
		text += "word "
	}
	if got := Estimate(text, 0); got != 12*time.Second {
		t.Fatalf("30 words: want=12s got=%s", got)
	}
	if got := Estimate(text, 3.5); got != 3500*time.Millisecond {
		t.Fatalf("stated: want=3.5s got=%s", got)
	}
}
