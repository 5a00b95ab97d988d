package assets

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/types"
)

const pixabayAPI = "https://pixabay.com"

var keywordCategory = map[string]string{
	"technology": "computer", "tech": "computer", "software": "computer", "computer": "computer",
	"laptop": "computer", "smartphone": "computer", "phone": "computer", "data": "computer",
	"business": "business", "office": "business", "meeting": "business", "finance": "business",
	"money": "business", "stock": "business", "market": "business", "trading": "business",
	"growth": "business", "company": "business",
	"people": "people", "team": "people", "crowd": "people",
	"city": "places", "street": "places", "building": "buildings", "architecture": "buildings",
	"factory": "industry", "manufacturing": "industry", "warehouse": "industry",
	"car": "transportation", "travel": "travel",
}

// Pixabay searches the Pixabay video API
type Pixabay struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	MinWidth    int
	rateLimited atomic.Bool
}

func NewPixabay(apiKey string, timeout time.Duration) *Pixabay {
	return &Pixabay{
		apiKey:     apiKey,
		baseURL:    pixabayAPI,
		httpClient: &http.Client{Timeout: timeout},
		MinWidth:   1280,
	}
}

func (p *Pixabay) WithBaseURL(u string) *Pixabay {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *Pixabay) Name() string { return "pixabay" }

type pixabayFile struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type pixabayResponse struct {
	Hits []struct {
		ID       int `json:"id"`
		Duration int `json:"duration"`
		Videos   struct {
			Large  pixabayFile `json:"large"`
			Medium pixabayFile `json:"medium"`
			Small  pixabayFile `json:"small"`
		} `json:"videos"`
	} `json:"hits"`
}

func (p *Pixabay) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if p.apiKey == "" || p.rateLimited.Load() {
		return nil, nil
	}
	query := q.Text()
	if len(query) > 100 {
		query = query[:100]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	var data pixabayResponse
	err := getJSON(ctx, p.httpClient, func(ctx context.Context) (*http.Request, error) {
		params := url.Values{}
		params.Set("key", p.apiKey)
		params.Set("q", query)
		params.Set("per_page", strconv.Itoa(max(min(limit*2, 50), 3)))
		params.Set("safesearch", "true")
		if cat := detectCategory(query); cat != "" {
			params.Set("category", cat)
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/videos/?"+params.Encode(), nil)
	}, &data)
	if errors.Is(err, errRateLimited) {
		p.rateLimited.Store(true)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, h := range data.Hits {
		var best pixabayFile
		for _, f := range []pixabayFile{h.Videos.Large, h.Videos.Medium, h.Videos.Small} {
			if f.URL != "" && f.Width >= p.MinWidth {
				best = f
				break
			}
		}
		if best.URL == "" {
			best = h.Videos.Medium
		}
		if best.URL == "" {
			continue
		}
		out = append(out, Candidate{
			ID:       strconv.Itoa(h.ID),
			Source:   p.Name(),
			Kind:     types.AssetVideo,
			URL:      best.URL,
			Width:    best.Width,
			Height:   best.Height,
			Duration: time.Duration(h.Duration) * time.Second,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func detectCategory(query string) string {
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if cat, ok := keywordCategory[w]; ok {
			return cat
		}
	}
	return ""
}
