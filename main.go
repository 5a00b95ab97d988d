package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/assembly"
	"github.com/rissalhedna/Financial-Video-Generator/assets"
	"github.com/rissalhedna/Financial-Video-Generator/audio"
	"github.com/rissalhedna/Financial-Video-Generator/config"
	"github.com/rissalhedna/Financial-Video-Generator/logger"
	"github.com/rissalhedna/Financial-Video-Generator/media"
	"github.com/rissalhedna/Financial-Video-Generator/script"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: financial-video-generator [-config config.yaml] <script.yaml|script.json>")
		os.Exit(2)
	}
	os.Exit(run(*configPath, flag.Arg(0)))
}

func run(configPath, scriptPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	// Create run ID and output dir for this run
	runID := uuid.NewString()[:8]
	runDir := filepath.Join(cfg.Paths.Output, runID)
	for _, dir := range []string{runDir, cfg.Paths.Logs, cfg.Assets.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("failed to create dir", "dir", dir, "error", err)
			return 1
		}
	}
	log = log.With("run", runID)
	log.Info("assembly run starting", "script", scriptPath, "output", runDir)

	state := &types.PipelineState{
		RunID:      runID,
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
		ScriptFile: scriptPath,
	}
	// Save state on exit
	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		saveJSON(log, filepath.Join(runDir, "pipeline_state.json"), state)
	}()
	fail := func(stage string, err error) int {
		code, fatal := classify(err)
		state.Error = fmt.Sprintf("%s: %v", stage, err)
		state.ErrorCode = code.String()
		if fatal {
			log.Error("run failed", "stage", stage, "code", code.String(), "error", err)
		} else {
			log.Warn("run stopped on a recoverable error", "stage", stage, "code", code.String(), "error", err)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := script.Load(scriptPath)
	if err != nil {
		return fail("script", err)
	}

	a, err := wire(ctx, cfg, filepath.Join(cfg.Paths.Audio, runID), log)
	if err != nil {
		return fail("setup", err)
	}

	plan, report, err := a.Assemble(ctx, runID, runDir, s)
	if err != nil {
		var ae apperr.AppError
		if errors.As(err, &ae) && len(ae.Details) > 0 {
			log.Info("assembly error details", "details", ae.Details)
		}
		return fail("assembly", err)
	}
	saveJSON(log, filepath.Join(runDir, "script.json"), s)

	planFile := filepath.Join(runDir, "render_plan.json")
	saveJSON(log, planFile, plan)
	state.PlanFile = planFile
	state.AudioFile = plan.AudioFile
	state.SubtitleSRT = plan.SubtitleFile
	state.Degraded = report.Degraded
	state.Drifted = len(report.Drifts)

	log.Info("render plan ready", "plan", planFile, "total", plan.TotalDuration, "segments", len(plan.Segments))
	return 0
}

// classify returns err's code and whether that code aborts a run. Errors
// without a code are treated as fatal.
func classify(err error) (apperr.ErrorCode, bool) {
	var ae apperr.AppError
	if errors.As(err, &ae) {
		return ae.Code, ae.Code.Fatal()
	}
	return "", true
}

// wire builds the assembler and its collaborators from config
func wire(ctx context.Context, cfg *config.Config, audioDir string, log *logger.Logger) (*assembly.Assembler, error) {
	tools := media.New(log)
	width, height, err := config.ParseResolution(cfg.Assets.Resolution)
	if err != nil {
		return nil, err
	}

	cache, err := assets.Open(cfg.Assets.CacheDir, log)
	if err != nil {
		return nil, err
	}

	var providers []assets.Provider
	for _, name := range cfg.Assets.Providers {
		switch name {
		case "library":
			lib, err := assets.NewLibrary(cfg.Assets.LibraryDir, cfg.Assets.LibraryTags, tools, log)
			if err != nil {
				return nil, err
			}
			providers = append(providers, lib)
		case "pexels":
			if cfg.Secrets.PexelsAPIKey == "" {
				log.Warn("PEXELS_API_KEY not set, skipping provider", "provider", name)
				continue
			}
			providers = append(providers, assets.NewPexels(cfg.Secrets.PexelsAPIKey, cfg.Assets.HTTPTimeout))
		case "pixabay":
			if cfg.Secrets.PixabayAPIKey == "" {
				log.Warn("PIXABAY_API_KEY not set, skipping provider", "provider", name)
				continue
			}
			providers = append(providers, assets.NewPixabay(cfg.Secrets.PixabayAPIKey, cfg.Assets.HTTPTimeout))
		case "pollinations":
			providers = append(providers, assets.NewPollinations(width, height))
		}
	}

	var charts assets.ChartRenderer
	if cfg.Secrets.ChartCommand != "" {
		charts = assets.CommandChart{Command: cfg.Secrets.ChartCommand, Transparent: cfg.Chart.Transparent}
	}

	resolver := assets.NewResolver(cache, providers, charts, assets.NewDownloader(cfg.Assets.HTTPTimeout), tools,
		assets.Options{
			Width:         width,
			Height:        height,
			FPS:           cfg.Assembly.FPS,
			MaxResults:    cfg.Assets.MaxResults,
			FallbackColor: cfg.Assets.FallbackColor,
		}, log)

	var synth audio.Synthesizer
	switch cfg.Audio.Engine {
	case "command":
		synth, err = audio.NewCommand(cfg.Secrets.TTSCommand, log)
	default:
		synth, err = audio.NewGoogle(ctx, audio.GoogleOptions{
			APIKey:       cfg.Secrets.GoogleAPIKey,
			LanguageCode: cfg.Audio.LanguageCode,
			SampleRate:   cfg.Audio.SampleRate,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("tts engine %s: %w", cfg.Audio.Engine, err)
	}

	binder := audio.NewBinder(synth, tools, audioDir, log)
	binder.Voice = cfg.Audio.Voice
	binder.MaxRetries = cfg.Audio.MaxRetries
	binder.CallTimeout = cfg.Audio.CallTimeout

	return assembly.New(cfg, resolver, binder, tools, cache, log), nil
}

func saveJSON(log *logger.Logger, path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn("could not marshal JSON", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn("could not save file", "path", path, "error", err)
	}
}
