package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/logger"
	"github.com/rissalhedna/Financial-Video-Generator/media"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

const fallbackCardLength = 10 * time.Second

// Toolkit is the subset of the media toolchain the resolver needs
type Toolkit interface {
	Prober
	ColorCard(ctx context.Context, outFile string, opts media.CardOptions) error
}

// claimer is implemented by providers that hand out each clip once per run
type claimer interface {
	Claim(c Candidate)
}

// Request asks for footage matching a tag set
type Request struct {
	Tags    []string
	Emotion string
	Target  time.Duration
}

// Options tune the resolver
type Options struct {
	Width         int
	Height        int
	FPS           int
	MaxResults    int
	FallbackColor string
}

// Resolver turns tag sets and chart data into cached assets. Concurrent
// callers asking for the same key share one fetch.
type Resolver struct {
	cache      *Cache
	providers  []Provider
	charts     ChartRenderer
	downloader *Downloader
	tools      Toolkit
	opts       Options
	log        *logger.Logger
	group      singleflight.Group
}

func NewResolver(cache *Cache, providers []Provider, charts ChartRenderer, dl *Downloader, tools Toolkit, opts Options, log *logger.Logger) *Resolver {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.FallbackColor == "" {
		opts.FallbackColor = "black"
	}
	return &Resolver{
		cache:      cache,
		providers:  providers,
		charts:     charts,
		downloader: dl,
		tools:      tools,
		opts:       opts,
		log:        log.Stage("assets"),
	}
}

// Resolve returns the asset bound to req's tag set, fetching it on a miss.
// Every provider failing yields an AssetUnavailable error.
func (r *Resolver) Resolve(ctx context.Context, req Request) (types.Asset, error) {
	key := TagKey(req.Tags)
	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		if e, ok := r.cache.Lookup(key); ok {
			r.log.Debug("cache hit", "key", key, "file", filepath.Base(e.File))
			return e.Asset(), nil
		}
		return r.fetch(ctx, key, req)
	})
	if err != nil {
		return types.Asset{}, err
	}
	if shared {
		r.log.Debug("shared in-flight fetch", "key", key)
	}
	return v.(types.Asset), nil
}

func (r *Resolver) fetch(ctx context.Context, key string, req Request) (types.Asset, error) {
	q := Query{Tags: NormalizeTags(req.Tags), Emotion: req.Emotion, Target: req.Target, Limit: r.opts.MaxResults}
	var lastErr error
	for _, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return types.Asset{}, err
		}
		cands, err := p.Search(ctx, q)
		if err != nil {
			r.log.Warn("provider search failed", "provider", p.Name(), "query", q.Text(), "error", err)
			lastErr = err
			continue
		}
		for _, c := range Rank(cands, r.opts.Width, r.opts.Height, req.Target) {
			e, err := r.materialize(ctx, key, req, c)
			if err != nil {
				r.log.Warn("candidate rejected", "provider", p.Name(), "id", c.ID, "error", err)
				lastErr = err
				continue
			}
			if cl, ok := p.(claimer); ok {
				cl.Claim(c)
			}
			r.log.Info("asset resolved", "key", key, "provider", p.Name(), "query", q.Text(), "file", filepath.Base(e.File))
			return e.Asset(), nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no candidates")
	}
	return types.Asset{}, apperr.ErrAssetUnavailableFor(req.Tags, lastErr)
}

func (r *Resolver) materialize(ctx context.Context, key string, req Request, c Candidate) (Entry, error) {
	e := Entry{
		Key:         key,
		Kind:        c.Kind,
		Tags:        req.Tags,
		Query:       Query{Tags: req.Tags}.Text(),
		Source:      c.Source,
		URL:         c.URL,
		Width:       c.Width,
		Height:      c.Height,
		DurationSec: c.Duration.Seconds(),
	}

	if c.LocalPath != "" {
		if !present(c.LocalPath) {
			return Entry{}, fmt.Errorf("local file missing: %s", c.LocalPath)
		}
		e.File = c.LocalPath
		return e, r.cache.Record(e)
	}

	ext := extFor(c)
	tmp, err := r.cache.TempPath(key, ext)
	if err != nil {
		return Entry{}, err
	}
	if err := r.downloader.Fetch(ctx, c.URL, tmp); err != nil {
		os.Remove(tmp)
		return Entry{}, err
	}
	if c.Kind == types.AssetVideo && r.tools != nil {
		if d, err := r.tools.ProbeDuration(ctx, tmp); err == nil {
			e.DurationSec = d.Seconds()
		}
	}
	return r.cache.Commit(tmp, e, ext)
}

// ResolveChart renders (or reuses) the chart clip for a segment
func (r *Resolver) ResolveChart(ctx context.Context, segment int, data types.ChartData) (types.Asset, error) {
	if r.charts == nil {
		return types.Asset{}, apperr.ErrChartUnavailable(segment, errors.New("no chart renderer"))
	}
	key := ChartKey(data)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if e, ok := r.cache.Lookup(key); ok {
			return e.Asset(), nil
		}
		tmp, err := r.cache.TempPath(key, ".mp4")
		if err != nil {
			return nil, err
		}
		if err := r.charts.Render(ctx, data, tmp); err != nil {
			os.Remove(tmp)
			return nil, err
		}
		e := Entry{Key: key, Kind: types.AssetChart, Source: "chart", Query: data.Title}
		if r.tools != nil {
			if d, err := r.tools.ProbeDuration(ctx, tmp); err == nil {
				e.DurationSec = d.Seconds()
			}
		}
		e, err = r.cache.Commit(tmp, e, ".mp4")
		if err != nil {
			return nil, err
		}
		r.log.Info("chart rendered", "segment", segment, "type", data.ChartType, "file", filepath.Base(e.File))
		return e.Asset(), nil
	})
	if err != nil {
		return types.Asset{}, apperr.ErrChartUnavailable(segment, err)
	}
	return v.(types.Asset), nil
}

// Fallback returns the solid-colour card used when a segment has no
// resolvable visual at all
func (r *Resolver) Fallback(ctx context.Context) (types.Asset, error) {
	color := strings.TrimPrefix(strings.TrimPrefix(r.opts.FallbackColor, "#"), "0x")
	key := fmt.Sprintf("fallback-%s-%dx%d", color, r.opts.Width, r.opts.Height)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if e, ok := r.cache.Lookup(key); ok {
			return e.Asset(), nil
		}
		if r.tools == nil {
			return nil, errors.New("no media tools for fallback card")
		}
		tmp, err := r.cache.TempPath(key, ".mp4")
		if err != nil {
			return nil, err
		}
		err = r.tools.ColorCard(ctx, tmp, media.CardOptions{
			Color:    r.opts.FallbackColor,
			Width:    r.opts.Width,
			Height:   r.opts.Height,
			FPS:      r.opts.FPS,
			Duration: fallbackCardLength,
		})
		if err != nil {
			os.Remove(tmp)
			return nil, err
		}
		e, err := r.cache.Commit(tmp, Entry{
			Key:         key,
			Kind:        types.AssetFallback,
			Source:      "fallback",
			Width:       r.opts.Width,
			Height:      r.opts.Height,
			DurationSec: fallbackCardLength.Seconds(),
		}, ".mp4")
		if err != nil {
			return nil, err
		}
		return e.Asset(), nil
	})
	if err != nil {
		return types.Asset{}, fmt.Errorf("fallback card: %w", err)
	}
	return v.(types.Asset), nil
}

func extFor(c Candidate) string {
	if u := c.URL; u != "" {
		p := u
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		if ext := strings.ToLower(path.Ext(p)); ext == ".mp4" || ext == ".mov" || ext == ".webm" || ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
			return ext
		}
	}
	if c.Kind == types.AssetImage {
		return ".jpg"
	}
	return ".mp4"
}
