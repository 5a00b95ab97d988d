package audio

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1beta1"

	"github.com/rissalhedna/Financial-Video-Generator/timing"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

// GoogleSynthesizer calls Cloud Text-to-Speech with SSML marks so every word
// comes back with its start time.
type GoogleSynthesizer struct {
	svc          *texttospeech.Service
	languageCode string
	sampleRate   int
}

// GoogleOptions configure the Cloud TTS client
type GoogleOptions struct {
	APIKey       string
	LanguageCode string
	SampleRate   int
	Endpoint     string
}

// ClientOptions resolves credentials: an API key wins, then inline or file
// credentials from the environment, then application default credentials.
func ClientOptions(ctx context.Context, opts GoogleOptions) ([]option.ClientOption, error) {
	var out []option.ClientOption
	if opts.Endpoint != "" {
		out = append(out, option.WithEndpoint(opts.Endpoint))
	}
	if opts.APIKey != "" {
		return append(out, option.WithAPIKey(opts.APIKey)), nil
	}

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if strings.HasPrefix(creds, "{") {
		return append(out, option.WithCredentialsJSON([]byte(creds))), nil
	}

	ts, err := google.DefaultTokenSource(ctx, texttospeech.CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	return append(out, option.WithTokenSource(ts)), nil
}

func NewGoogle(ctx context.Context, opts GoogleOptions, clientOpts ...option.ClientOption) (*GoogleSynthesizer, error) {
	if len(clientOpts) == 0 {
		var err error
		clientOpts, err = ClientOptions(ctx, opts)
		if err != nil {
			return nil, err
		}
	}
	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("texttospeech service: %w", err)
	}
	lang := opts.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	return &GoogleSynthesizer{svc: svc, languageCode: lang, sampleRate: opts.SampleRate}, nil
}

func (g *GoogleSynthesizer) Name() string { return "google" }

func (g *GoogleSynthesizer) Synthesize(ctx context.Context, req Request) (Synthesis, error) {
	tokens := timing.Tokenize(req.Text)
	if len(tokens) == 0 {
		return Synthesis{}, fmt.Errorf("segment %d has no narration", req.Segment)
	}

	resp, err := g.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{
			Ssml: BuildSSML(req.Text, req.Emotion, supportsPitch(req.Voice)),
		},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.languageCode,
			Name:         req.Voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "MP3",
			SampleRateHertz: int64(g.sampleRate),
		},
		EnableTimePointing: []string{"SSML_MARK"},
	}).Context(ctx).Do()
	if err != nil {
		return Synthesis{}, fmt.Errorf("synthesize: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return Synthesis{}, fmt.Errorf("decode audio: %w", err)
	}
	if len(data) == 0 {
		return Synthesis{}, fmt.Errorf("empty audio for segment %d", req.Segment)
	}
	if err := os.WriteFile(req.OutFile, data, 0644); err != nil {
		return Synthesis{}, err
	}

	var marks []mark
	for _, tp := range resp.Timepoints {
		if tp == nil {
			continue
		}
		if i, ok := markIndex(tp.MarkName); ok {
			marks = append(marks, mark{i, secondsToDuration(tp.TimeSeconds)})
		}
	}
	return Synthesis{File: req.OutFile, Words: wordsFromMarks(tokens, marks)}, nil
}

type mark struct {
	index int
	at    time.Duration
}

// wordsFromMarks turns per-word start marks into spans. A word ends where the
// next one starts; the last end stays zero until the duration is known. Any
// missing mark makes the timing unusable.
func wordsFromMarks(tokens []string, marks []mark) []types.WordTiming {
	if len(marks) != len(tokens) {
		return nil
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].index < marks[j].index })
	words := make([]types.WordTiming, len(tokens))
	for i, m := range marks {
		if m.index != i {
			return nil
		}
		words[i] = types.WordTiming{Word: tokens[i], Start: m.at}
		if i > 0 {
			words[i-1].End = m.at
		}
	}
	return words
}

func supportsPitch(voice string) bool {
	v := strings.ToLower(voice)
	return !strings.Contains(v, "studio") && !strings.Contains(v, "journey") && !strings.Contains(v, "chirp")
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}
