package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// ChartRenderer turns chart data into a video clip at outFile
type ChartRenderer interface {
	Render(ctx context.Context, data types.ChartData, outFile string) error
}

// CommandChart runs an external chart renderer:
//
//	<command> --input data.json --output chart.mp4 [--transparent]
type CommandChart struct {
	Command     string
	Transparent bool
}

func (c CommandChart) Render(ctx context.Context, data types.ChartData, outFile string) error {
	if strings.TrimSpace(c.Command) == "" {
		return errors.New("no chart command configured (set CHART_COMMAND)")
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	in := strings.TrimSuffix(outFile, filepath.Ext(outFile)) + ".input.json"
	if err := os.WriteFile(in, payload, 0644); err != nil {
		return err
	}
	defer os.Remove(in)

	fields := strings.Fields(c.Command)
	args := append(fields[1:], "--input", in, "--output", outFile)
	if c.Transparent {
		args = append(args, "--transparent")
	}
	cmd := exec.CommandContext(ctx, fields[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("chart command: %w: %s", err, tail(stderr.String(), 300))
	}
	if !present(outFile) {
		return fmt.Errorf("chart command produced no output at %s", outFile)
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
