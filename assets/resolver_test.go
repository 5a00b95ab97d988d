package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/apperr"
	"github.com/rissalhedna/Financial-Video-Generator/logger"
	"github.com/rissalhedna/Financial-Video-Generator/media"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

type countingProvider struct {
	name     string
	url      string
	searches atomic.Int32
	err      error
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Search(ctx context.Context, q Query) ([]Candidate, error) {
	p.searches.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return []Candidate{{ID: "1", Source: p.name, Kind: types.AssetVideo, URL: p.url + "/clip.mp4", Width: 720, Height: 1280, Duration: 10 * time.Second}}, nil
}

type fakeTools struct {
	cards atomic.Int32
}

func (f *fakeTools) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	return 8 * time.Second, nil
}

func (f *fakeTools) ColorCard(ctx context.Context, outFile string, opts media.CardOptions) error {
	f.cards.Add(1)
	return writeFile(outFile, strings.Repeat("c", 200))
}

func clipServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte(strings.Repeat("v", 512)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(t *testing.T, dir string, providers ...Provider) (*Resolver, *fakeTools) {
	t.Helper()
	cache, err := Open(dir, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tools := &fakeTools{}
	opts := Options{Width: 720, Height: 1280, FPS: 30, MaxResults: 3, FallbackColor: "0x000000"}
	return NewResolver(cache, providers, nil, NewDownloader(5*time.Second), tools, opts, logger.Nop()), tools
}

func TestResolveFetchesOncePerTagSet(t *testing.T) {
	var hits atomic.Int32
	srv := clipServer(t, &hits)
	p := &countingProvider{name: "stub", url: srv.URL}
	dir := t.TempDir()
	r, _ := newTestResolver(t, dir, p)

	orders := [][]string{{"garage", "computer"}, {"computer", "garage"}, {"Garage", "COMPUTER"}}
	var wg sync.WaitGroup
	files := make([]string, 9)
	errs := make([]error, 9)
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := r.Resolve(context.Background(), Request{Tags: orders[i%3]})
			files[i], errs[i] = a.File, err
		}(i)
	}
	wg.Wait()

	for i := range files {
		if errs[i] != nil {
			t.Fatalf("Resolve %d: %v", i, errs[i])
		}
		if files[i] != files[0] {
			t.Fatalf("Resolve %d: want file=%s got=%s", i, files[0], files[i])
		}
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("network fetches: want=1 got=%d", n)
	}

	// a second run with a fresh resolver over the same cache dir
	r2, _ := newTestResolver(t, dir, p)
	a, err := r2.Resolve(context.Background(), Request{Tags: []string{"computer", "garage"}})
	if err != nil {
		t.Fatalf("Resolve second run: %v", err)
	}
	if a.File != files[0] || hits.Load() != 1 {
		t.Fatalf("second run: want cached file %s without fetch, got %s (fetches=%d)", files[0], a.File, hits.Load())
	}
	if a.NativeDuration != 8*time.Second {
		t.Fatalf("probed duration: want=8s got=%s", a.NativeDuration)
	}
}

func TestResolveFallsThroughProviders(t *testing.T) {
	var hits atomic.Int32
	srv := clipServer(t, &hits)
	bad := &countingProvider{name: "bad", err: errors.New("boom")}
	good := &countingProvider{name: "good", url: srv.URL}
	r, _ := newTestResolver(t, t.TempDir(), bad, good)

	a, err := r.Resolve(context.Background(), Request{Tags: []string{"office"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.Source != "good" {
		t.Fatalf("source: want=good got=%s", a.Source)
	}
	if bad.searches.Load() != 1 {
		t.Fatalf("bad provider searches: want=1 got=%d", bad.searches.Load())
	}
}

func TestResolveUnavailable(t *testing.T) {
	bad := &countingProvider{name: "bad", err: errors.New("boom")}
	r, _ := newTestResolver(t, t.TempDir(), bad)

	_, err := r.Resolve(context.Background(), Request{Tags: []string{"nothing"}})
	if !errors.Is(err, apperr.ErrAssetUnavailable) {
		t.Fatalf("want AssetUnavailable got %v", err)
	}
	var ae apperr.AppError
	if !errors.As(err, &ae) || ae.Details["tags"] != "nothing" {
		t.Fatalf("details: got %+v", ae)
	}
}

func TestFallbackCardIsCached(t *testing.T) {
	r, tools := newTestResolver(t, t.TempDir())
	a1, err := r.Fallback(context.Background())
	if err != nil {
		t.Fatalf("Fallback: %v", err)
	}
	a2, err := r.Fallback(context.Background())
	if err != nil {
		t.Fatalf("Fallback: %v", err)
	}
	if a1.File != a2.File || a1.Kind != types.AssetFallback {
		t.Fatalf("fallback assets: %+v %+v", a1, a2)
	}
	if n := tools.cards.Load(); n != 1 {
		t.Fatalf("cards rendered: want=1 got=%d", n)
	}
}

type fakeChart struct{ calls atomic.Int32 }

func (f *fakeChart) Render(ctx context.Context, data types.ChartData, outFile string) error {
	f.calls.Add(1)
	return writeFile(outFile, strings.Repeat("c", 300))
}

func TestResolveChart(t *testing.T) {
	r, _ := newTestResolver(t, t.TempDir())
	charts := &fakeChart{}
	r.charts = charts
	data := types.ChartData{ChartType: "line", Labels: []string{"2020", "2021"}, Values: []float64{1, 2}}

	for i := 0; i < 2; i++ {
		a, err := r.ResolveChart(context.Background(), 3, data)
		if err != nil {
			t.Fatalf("ResolveChart: %v", err)
		}
		if a.Kind != types.AssetChart {
			t.Fatalf("kind: want=chart got=%s", a.Kind)
		}
	}
	if charts.calls.Load() != 1 {
		t.Fatalf("renders: want=1 got=%d", charts.calls.Load())
	}

	r.charts = nil
	_, err := r.ResolveChart(context.Background(), 4, types.ChartData{ChartType: "pie"})
	if !errors.Is(err, apperr.ErrAssetUnavailable) {
		t.Fatalf("want AssetUnavailable got %v", err)
	}
}
