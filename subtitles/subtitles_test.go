package subtitles

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/timing"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func evenWords(text string, each time.Duration) timing.Words {
	var out []types.WordTiming
	for i, tok := range timing.Tokenize(text) {
		out = append(out, types.WordTiming{Word: tok, Start: time.Duration(i) * each, End: time.Duration(i+1) * each})
	}
	return timing.FromProvider(out)
}

func checkCues(t *testing.T, cues []types.SubtitleCue, segEnd time.Duration) {
	t.Helper()
	var prev time.Duration
	for i, c := range cues {
		if c.End <= c.Start {
			t.Fatalf("cue %d: empty span [%s,%s)", i, c.Start, c.End)
		}
		if c.Start < prev {
			t.Fatalf("cue %d: overlaps previous (start %s < %s)", i, c.Start, prev)
		}
		if c.Start < 0 || c.End > segEnd {
			t.Fatalf("cue %d: outside segment [%s,%s)", i, c.Start, c.End)
		}
		prev = c.End
	}
}

func TestAlignMaxChars(t *testing.T) {
	a := NewAligner(16, 0)
	words := evenWords("one two three four five six seven", ms(300))
	cues := a.Align(words, nil, ms(2100))
	checkCues(t, cues, ms(2100))
	for _, c := range cues {
		if len(c.Text) > 16 {
			t.Fatalf("cue too long: %q", c.Text)
		}
	}
	if got := cues[0].Text; got != "one two three" {
		t.Fatalf("first cue: want=%q got=%q", "one two three", got)
	}
}

func TestAlignBreaksAtVisualCut(t *testing.T) {
	a := NewAligner(80, 0)
	words := evenWords("Started in a garage. Now worth three trillion.", ms(500))
	// cut at "garage." (index 3) and "trillion." (index 7)
	cues := a.Align(words, []int{3, 7}, ms(4000))
	checkCues(t, cues, ms(4000))
	want := []string{"Started in a", "garage.", "Now worth three", "trillion."}
	if len(cues) != len(want) {
		t.Fatalf("cues: want=%d got=%d (%+v)", len(want), len(cues), cues)
	}
	for i, w := range want {
		if cues[i].Text != w {
			t.Fatalf("cue %d: want=%q got=%q", i, w, cues[i].Text)
		}
	}
	if cues[1].Start != ms(1500) {
		t.Fatalf("cue at cut: want start 1.5s got %s", cues[1].Start)
	}
}

func TestAlignSentenceBreakRespectsMinDisplay(t *testing.T) {
	words := evenWords("Hi. Revenue doubled. Wow.", ms(200))
	cues := NewAligner(80, ms(500)).Align(words, nil, ms(1000))
	checkCues(t, cues, ms(1000))
	// "Hi." alone is shown 200ms < 500ms so it keeps going until "doubled."
	if cues[0].Text != "Hi. Revenue doubled." {
		t.Fatalf("first cue: got=%q", cues[0].Text)
	}
	// last cue is extended towards min display but capped at segment end
	if last := cues[len(cues)-1]; last.Text != "Wow." || last.End != ms(1000) {
		t.Fatalf("last cue: got=%+v", last)
	}
}

func TestAlignNoWords(t *testing.T) {
	if cues := NewAligner(42, ms(800)).Align(timing.Words{}, nil, time.Second); cues != nil {
		t.Fatalf("want nil got %+v", cues)
	}
}

func timedWords(words ...types.WordTiming) timing.Words { return timing.FromProvider(words) }

func TestAlignFoldsLeadingZeroLengthChunkForward(t *testing.T) {
	words := timedWords(
		types.WordTiming{Word: "Hi", Start: 0, End: 0},
		types.WordTiming{Word: "there", Start: 0, End: ms(1000)},
	)
	cues := NewAligner(5, 0).Align(words, nil, ms(1000))
	checkCues(t, cues, ms(1000))
	if len(cues) != 1 || cues[0].Text != "Hi there" {
		t.Fatalf("cues: want one %q got=%v", "Hi there", cues)
	}
}

func TestAlignZeroLengthChunkStaysAfterCut(t *testing.T) {
	words := timedWords(
		types.WordTiming{Word: "Alpha", Start: 0, End: ms(1000)},
		types.WordTiming{Word: "cut", Start: ms(1000), End: ms(1000)},
		types.WordTiming{Word: "next", Start: ms(1000), End: ms(2000)},
	)
	cues := NewAligner(5, 0).Align(words, []int{1}, ms(2000))
	checkCues(t, cues, ms(2000))
	if len(cues) != 2 {
		t.Fatalf("cues: want=2 got=%d (%v)", len(cues), cues)
	}
	if cues[0].Text != "Alpha" || cues[1].Text != "cut next" {
		t.Fatalf("texts: want=[Alpha, cut next] got=[%s, %s]", cues[0].Text, cues[1].Text)
	}
	if cues[1].Start != ms(1000) {
		t.Fatalf("second cue start: want=1s got=%s", cues[1].Start)
	}
}

func TestShift(t *testing.T) {
	cues := Shift([]types.SubtitleCue{{Start: ms(100), End: ms(900), Text: "x"}}, 5*time.Second)
	if cues[0].Start != ms(5100) || cues[0].End != ms(5900) {
		t.Fatalf("Shift: got=%+v", cues[0])
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00,000"},
		{ms(1200), "00:00:01,200"},
		{time.Hour + 2*time.Minute + ms(3004), "01:02:03,004"},
		{-time.Second, "00:00:00,000"},
	}
	for _, c := range cases {
		if got := FormatTimestamp(c.in); got != c.want {
			t.Fatalf("FormatTimestamp(%s): want=%s got=%s", c.in, c.want, got)
		}
	}
}

func TestWriteAndValidateSRT(t *testing.T) {
	cues := []types.SubtitleCue{
		{Start: 0, End: ms(1200), Text: "Started in a garage."},
		{Start: ms(1200), End: ms(4800), Text: "Now worth three trillion."},
	}
	var buf bytes.Buffer
	if err := WriteSRT(&buf, cues); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,200\nStarted in a garage.\n\n2\n00:00:01,200 --> 00:00:04,800\nNow worth three trillion.\n\n"
	if buf.String() != want {
		t.Fatalf("WriteSRT:\nwant=%q\ngot= %q", want, buf.String())
	}

	path := filepath.Join(t.TempDir(), "out", "subtitles.srt")
	if err := SaveSRT(path, cues); err != nil {
		t.Fatalf("SaveSRT: %v", err)
	}
}

func TestValidateSRTRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.srt")
	os.WriteFile(path, []byte("1\nno timing here\ntext\n\n"), 0644)
	if err := ValidateSRT(path); err == nil || !strings.Contains(err.Error(), "malformed timing") {
		t.Fatalf("want malformed timing error, got %v", err)
	}
}
