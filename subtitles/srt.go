package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// FormatTimestamp renders d as an SRT timestamp, HH:MM:SS,mmm
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Round(time.Millisecond).Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// WriteSRT writes cues as sequentially numbered SRT blocks
func WriteSRT(w io.Writer, cues []types.SubtitleCue) error {
	bw := bufio.NewWriter(w)
	for i, c := range cues {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, FormatTimestamp(c.Start), FormatTimestamp(c.End), c.Text)
	}
	return bw.Flush()
}

// SaveSRT writes cues to path and checks the result reads back as SRT
func SaveSRT(path string, cues []types.SubtitleCue) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSRT(f, cues); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return ValidateSRT(path)
}

// ValidateSRT checks every block has an index, a timing line and text
func ValidateSRT(srtFile string) error {
	f, err := os.Open(srtFile)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineCount, blocks, line := 0, 0, 0
	for scanner.Scan() {
		lineCount++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			if line > 0 && line < 3 {
				return fmt.Errorf("SRT block %d is incomplete", blocks)
			}
			line = 0
			continue
		}
		line++
		switch line {
		case 1:
			blocks++
			if n, err := strconv.Atoi(text); err != nil || n != blocks {
				return fmt.Errorf("SRT line %d: want index %d, got %q", lineCount, blocks, text)
			}
		case 2:
			if !strings.Contains(text, " --> ") {
				return fmt.Errorf("SRT line %d: malformed timing %q", lineCount, text)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if line > 0 && line < 3 {
		return fmt.Errorf("SRT block %d is incomplete", blocks)
	}
	if blocks > 0 && lineCount < 4 {
		return fmt.Errorf("SRT file appears empty or malformed (%d lines)", lineCount)
	}
	return nil
}
