package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
)

type Config struct {
	Assembly  AssemblyConfig  `yaml:"assembly"`
	Audio     AudioConfig     `yaml:"audio"`
	Assets    AssetsConfig    `yaml:"assets"`
	Chart     ChartConfig     `yaml:"chart"`
	Subtitles SubtitlesConfig `yaml:"subtitles"`
	Paths     PathsConfig     `yaml:"paths"`
	Logging   LoggingConfig   `yaml:"logging"`
	Secrets   Secrets         `yaml:"-"`
}

type AssemblyConfig struct {
	Workers        int           `yaml:"workers" validate:"gte=1,lte=64"`
	RunTimeout     time.Duration `yaml:"run_timeout" validate:"gt=0"`
	DriftTolerance float64       `yaml:"drift_tolerance" validate:"gte=0"`
	FPS            int           `yaml:"fps" validate:"gte=1,lte=240"`
	SnapToFrames   bool          `yaml:"snap_to_frames"`
}

type AudioConfig struct {
	Engine       string        `yaml:"engine" validate:"oneof=google command"`
	Voice        string        `yaml:"voice"`
	LanguageCode string        `yaml:"language_code"`
	SampleRate   int           `yaml:"sample_rate" validate:"gte=8000"`
	MaxRetries   int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	CallTimeout  time.Duration `yaml:"call_timeout" validate:"gt=0"`
}

type AssetsConfig struct {
	CacheDir      string        `yaml:"cache_dir" validate:"required"`
	LibraryDir    string        `yaml:"library_dir"`
	LibraryTags   string        `yaml:"library_tags"`
	Providers     []string      `yaml:"providers" validate:"dive,oneof=library pexels pixabay pollinations"`
	MaxResults    int           `yaml:"max_results" validate:"gte=1,lte=30"`
	HTTPTimeout   time.Duration `yaml:"http_timeout" validate:"gt=0"`
	Resolution    string        `yaml:"resolution" validate:"required"`
	FallbackColor string        `yaml:"fallback_color"`
}

type ChartConfig struct {
	Transparent bool `yaml:"transparent"`
}

type SubtitlesConfig struct {
	MaxCharsPerCue int     `yaml:"max_chars_per_cue" validate:"gte=8"`
	MinDisplaySec  float64 `yaml:"min_display_sec" validate:"gte=0"`
}

type PathsConfig struct {
	Output string `yaml:"output" validate:"required"`
	Audio  string `yaml:"audio"`
	Logs   string `yaml:"logs"`
}

type LoggingConfig struct {
	Mode string `yaml:"mode"`
}

// Secrets come from the environment (or .env), never from config.yaml
type Secrets struct {
	GoogleAPIKey  string `envconfig:"GOOGLE_API_KEY"`
	PexelsAPIKey  string `envconfig:"PEXELS_API_KEY"`
	PixabayAPIKey string `envconfig:"PIXABAY_API_KEY"`
	TTSCommand    string `envconfig:"TTS_COMMAND"`
	ChartCommand  string `envconfig:"CHART_COMMAND"`
}

// MinDisplay returns the subtitle minimum display time as a duration
func (c SubtitlesConfig) MinDisplay() time.Duration {
	return time.Duration(c.MinDisplaySec * float64(time.Second))
}

// Default returns the configuration used when config.yaml omits a value
func Default() Config {
	return Config{
		Assembly: AssemblyConfig{
			Workers:        4,
			RunTimeout:     10 * time.Minute,
			DriftTolerance: 0.25,
			FPS:            30,
			SnapToFrames:   true,
		},
		Audio: AudioConfig{
			Engine:       "google",
			Voice:        "en-US-Studio-O",
			LanguageCode: "en-US",
			SampleRate:   44100,
			MaxRetries:   3,
			CallTimeout:  60 * time.Second,
		},
		Assets: AssetsConfig{
			CacheDir:      "tmp/videos",
			LibraryTags:   "assets/video/tags.json",
			LibraryDir:    "assets/video",
			Providers:     []string{"library", "pexels", "pixabay"},
			MaxResults:    8,
			HTTPTimeout:   20 * time.Second,
			Resolution:    "720x1280",
			FallbackColor: "0x0b1020",
		},
		Subtitles: SubtitlesConfig{
			MaxCharsPerCue: 42,
			MinDisplaySec:  0.8,
		},
		Paths: PathsConfig{
			Output: "out",
			Audio:  "tmp/audio",
			Logs:   "logs",
		},
		Logging: LoggingConfig{Mode: "development"},
	}
}

// Load reads config.yaml over the defaults, then secrets from the environment
func Load(path string) (*Config, error) {
	// Load .env (local dev only)
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, apperr.ErrConfig(fmt.Errorf("parse %s: %w", path, err))
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	default:
		return nil, apperr.ErrConfig(err)
	}

	if err := envconfig.Process("", &cfg.Secrets); err != nil {
		return nil, apperr.ErrConfig(fmt.Errorf("read secrets: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and cross-field requirements. Failures
// carry the CONFIG_INVALID code.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return apperr.ErrConfig(err)
	}
	if c.Audio.Engine == "command" && c.Secrets.TTSCommand == "" {
		return apperr.ErrConfig(errors.New("audio.engine=command requires TTS_COMMAND"))
	}
	if _, _, err := ParseResolution(c.Assets.Resolution); err != nil {
		return apperr.ErrConfig(err)
	}
	return nil
}

// ParseResolution splits "WIDTHxHEIGHT"
func ParseResolution(res string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(res, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution %q", res)
	}
	return w, h, nil
}
