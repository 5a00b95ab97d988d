package assets

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"

	"github.com/rissalhedna/Financial-Video-Generator/types"
)

const pollinationsAPI = "https://image.pollinations.ai"

// Pollinations generates a still image for the tags (free, no key needed).
// It is the last provider in the chain: it always offers one candidate.
type Pollinations struct {
	baseURL string
	Width   int
	Height  int
}

func NewPollinations(width, height int) *Pollinations {
	return &Pollinations{baseURL: pollinationsAPI, Width: width, Height: height}
}

func (p *Pollinations) WithBaseURL(u string) *Pollinations {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *Pollinations) Name() string { return "pollinations" }

func (p *Pollinations) Search(_ context.Context, q Query) ([]Candidate, error) {
	base := strings.Join(NormalizeTags(q.Tags), ", ")
	if base == "" {
		return nil, nil
	}
	prompt := enhancePrompt(base, q.Emotion)

	// deterministic seed per tag set for reproducibility
	h := fnv.New32a()
	h.Write([]byte(TagKey(q.Tags)))
	seed := h.Sum32() % 100000

	imageURL := fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&nologo=true&model=flux&seed=%d",
		p.baseURL, url.PathEscape(prompt), p.Width, p.Height, seed)

	return []Candidate{{
		ID:     fmt.Sprintf("pollinations-%d", seed),
		Source: p.Name(),
		Kind:   types.AssetImage,
		URL:    imageURL,
		Width:  p.Width,
		Height: p.Height,
	}}, nil
}

// enhancePrompt adds finance-explainer style modifiers to the base prompt
func enhancePrompt(base, emotion string) string {
	styles := map[string]string{
		"excited":     "vibrant colors, dynamic composition, bright studio lighting, 4K",
		"curious":     "soft natural light, shallow depth of field, inviting composition",
		"serious":     "muted tones, clean corporate look, dramatic contrast",
		"dramatic":    "cinematic lighting, high contrast, moody atmosphere",
		"hopeful":     "golden hour light, warm tones, upward perspective",
		"concerned":   "overcast light, desaturated colors, tense framing",
		"informative": "clean infographic-like composition, neutral background, sharp focus",
	}

	style, ok := styles[strings.ToLower(emotion)]
	if !ok {
		style = "cinematic, professional lighting, photorealistic, 4K"
	}
	return fmt.Sprintf("%s, %s, no text, no watermark, no logos", base, style)
}
