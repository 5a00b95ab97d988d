package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rissalhedna/Financial-Video-Generator/logger"
)

// CommandSynthesizer calls an external TTS binary or script via shell.
// The command receives:
//
//	--text "..." --output path/to/file.mp3
//
// When no command is configured it falls back to edge-tts (free Microsoft TTS).
// Command engines report no word timings.
type CommandSynthesizer struct {
	command string
	log     *logger.Logger
}

func NewCommand(command string, log *logger.Logger) (*CommandSynthesizer, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		if _, err := exec.LookPath("edge-tts"); err != nil {
			return nil, errors.New("no TTS engine found: set TTS_COMMAND or install edge-tts (pip install edge-tts)")
		}
		command = "edge-tts"
		log.Info("using edge-tts as TTS engine")
	}
	return &CommandSynthesizer{command: command, log: log}, nil
}

func (c *CommandSynthesizer) Name() string { return "command" }

func (c *CommandSynthesizer) Synthesize(ctx context.Context, req Request) (Synthesis, error) {
	name, args := c.argv(req)
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		return Synthesis{}, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return Synthesis{File: req.OutFile}, nil
}

func (c *CommandSynthesizer) argv(req Request) (string, []string) {
	fields := strings.Fields(c.command)
	switch {
	case fields[0] == "edge-tts":
		voice := req.Voice
		if voice == "" || !strings.HasSuffix(voice, "Neural") {
			voice = "en-US-GuyNeural"
		}
		return "edge-tts", []string{"--voice", voice, "--text", req.Text, "--write-media", req.OutFile}
	case strings.HasSuffix(fields[0], ".py"):
		return "python3", append(fields, "--text", req.Text, "--output", req.OutFile)
	default:
		return fields[0], append(fields[1:], "--text", req.Text, "--output", req.OutFile)
	}
}
