// Package media is the glue around the ffmpeg and ffprobe binaries.
//
// REQUIRED BINARIES: ffmpeg, ffprobe on PATH (or configured explicitly).
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/logger"
)

// Tools is what the assembly stages need from the media toolchain
type Tools interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
	ConcatAudio(ctx context.Context, files []string, outFile string) error
	ColorCard(ctx context.Context, outFile string, opts CardOptions) error
}

// CardOptions describes a solid-colour placeholder clip
type CardOptions struct {
	Color    string
	Width    int
	Height   int
	FPS      int
	Duration time.Duration
}

// FFmpeg implements Tools by shelling out
type FFmpeg struct {
	log        *logger.Logger
	FFmpegBin  string
	FFprobeBin string
}

func New(log *logger.Logger) *FFmpeg {
	return &FFmpeg{log: log.Stage("media"), FFmpegBin: "ffmpeg", FFprobeBin: "ffprobe"}
}

// ProbeDuration uses ffprobe to get the container duration
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, f.FFprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	return ParseProbeDuration(string(out))
}

// ParseProbeDuration parses ffprobe's bare "12.345000" output
func ParseProbeDuration(out string) (time.Duration, error) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", s, err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Microsecond), nil
}

// ConcatAudio joins segment audio files in order with ffmpeg's concat demuxer
func (f *FFmpeg) ConcatAudio(ctx context.Context, files []string, outFile string) error {
	if len(files) == 0 {
		return fmt.Errorf("no audio files to concatenate")
	}
	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		return err
	}
	listFile := strings.TrimSuffix(outFile, filepath.Ext(outFile)) + "_concat.txt"
	if err := os.WriteFile(listFile, []byte(ConcatList(files)), 0644); err != nil {
		return err
	}
	defer os.Remove(listFile)

	return f.run(ctx, "concat audio",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outFile,
	)
}

// ConcatList renders an ffmpeg concat demuxer list
func ConcatList(files []string) string {
	var b strings.Builder
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			abs = file
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return b.String()
}

// ColorCard renders a solid colour clip used when no footage is available
func (f *FFmpeg) ColorCard(ctx context.Context, outFile string, opts CardOptions) error {
	if opts.Duration <= 0 {
		opts.Duration = 5 * time.Second
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Color == "" {
		opts.Color = "black"
	}
	src := fmt.Sprintf("color=c=%s:s=%dx%d:d=%.3f", opts.Color, opts.Width, opts.Height, opts.Duration.Seconds())
	return f.run(ctx, "color card",
		"-y",
		"-f", "lavfi",
		"-i", src,
		"-r", strconv.Itoa(opts.FPS),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-an",
		outFile,
	)
}

func (f *FFmpeg) run(ctx context.Context, what string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.FFmpegBin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		f.log.Warn("ffmpeg failed", "op", what, "stderr", tail(stderr.String(), 400))
		return fmt.Errorf("ffmpeg %s: %w", what, err)
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
