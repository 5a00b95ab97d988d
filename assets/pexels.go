package assets

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/types"
)

const pexelsAPI = "https://api.pexels.com"

// Pexels searches the Pexels video API
type Pexels struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	MinDuration time.Duration
	MinWidth    int
	rateLimited atomic.Bool
}

func NewPexels(apiKey string, timeout time.Duration) *Pexels {
	return &Pexels{
		apiKey:      apiKey,
		baseURL:     pexelsAPI,
		httpClient:  &http.Client{Timeout: timeout},
		MinDuration: 3 * time.Second,
		MinWidth:    1080,
	}
}

// WithBaseURL points the client at another endpoint (tests, proxies)
func (p *Pexels) WithBaseURL(u string) *Pexels {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *Pexels) Name() string { return "pexels" }

type pexelsResponse struct {
	Videos []struct {
		ID         int    `json:"id"`
		URL        string `json:"url"`
		Duration   int    `json:"duration"`
		VideoFiles []struct {
			Link     string `json:"link"`
			FileType string `json:"file_type"`
			Width    int    `json:"width"`
			Height   int    `json:"height"`
		} `json:"video_files"`
	} `json:"videos"`
}

func (p *Pexels) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if p.apiKey == "" || p.rateLimited.Load() {
		return nil, nil
	}
	query := q.Text()
	if query == "" {
		query = "business technology"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	var data pexelsResponse
	err := getJSON(ctx, p.httpClient, func(ctx context.Context) (*http.Request, error) {
		params := url.Values{}
		params.Set("query", query)
		params.Set("per_page", strconv.Itoa(min(limit*2, 30)))
		params.Set("size", "large")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/videos/search?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", p.apiKey)
		return req, nil
	}, &data)
	if errors.Is(err, errRateLimited) {
		p.rateLimited.Store(true)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, v := range data.Videos {
		dur := time.Duration(v.Duration) * time.Second
		if dur < p.MinDuration {
			continue
		}
		files := v.VideoFiles[:0:0]
		for _, f := range v.VideoFiles {
			if f.FileType == "video/mp4" && f.Width >= p.MinWidth {
				files = append(files, f)
			}
		}
		if len(files) == 0 {
			for _, f := range v.VideoFiles {
				if f.FileType == "video/mp4" {
					files = append(files, f)
				}
			}
		}
		if len(files) == 0 {
			continue
		}
		sort.SliceStable(files, func(i, j int) bool {
			return files[i].Width*files[i].Height > files[j].Width*files[j].Height
		})
		best := files[0]
		out = append(out, Candidate{
			ID:       strconv.Itoa(v.ID),
			Source:   p.Name(),
			Kind:     types.AssetVideo,
			URL:      best.Link,
			Width:    best.Width,
			Height:   best.Height,
			Duration: dur,
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
