package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rissalhedna/Financial-Video-Generator/logger"
	"github.com/rissalhedna/Financial-Video-Generator/types"
)

const manifestFile = "cache_manifest.json"

// Entry is the recorded binding of a cache key to a file on disk
type Entry struct {
	Key         string          `json:"key"`
	File        string          `json:"file_path"`
	Kind        types.AssetKind `json:"kind"`
	Tags        []string        `json:"tags,omitempty"`
	Query       string          `json:"query,omitempty"`
	Source      string          `json:"source"`
	URL         string          `json:"url,omitempty"`
	Width       int             `json:"width,omitempty"`
	Height      int             `json:"height,omitempty"`
	DurationSec float64         `json:"duration_seconds"`
	FileSize    int64           `json:"file_size"`
	CreatedAt   string          `json:"created_at"`
}

// Asset converts the entry into the plan's asset reference
func (e Entry) Asset() types.Asset {
	return types.Asset{
		Key:            e.Key,
		File:           e.File,
		Kind:           e.Kind,
		Source:         e.Source,
		NativeDuration: time.Duration(e.DurationSec * float64(time.Second)).Round(time.Millisecond),
		Width:          e.Width,
		Height:         e.Height,
	}
}

// Cache is the on-disk asset cache shared across segment pipelines and runs.
// Files and their metadata sidecars are published by atomic rename, so two
// writers racing on one key leave one complete, identical entry behind.
type Cache struct {
	dir     string
	log     *logger.Logger
	mu      sync.RWMutex
	entries map[string]Entry
}

// Open prepares the cache directory and loads the last flushed manifest
func Open(dir string, log *logger.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &Cache{dir: dir, log: log.Stage("cache"), entries: make(map[string]Entry)}

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			// A torn manifest only costs re-reading sidecars
			c.log.Warn("ignoring unreadable cache manifest", "error", err)
			c.entries = make(map[string]Entry)
		}
	}
	return c, nil
}

// TagKey is a stable key for a tag set: order-independent, case-insensitive
func TagKey(tags []string) string {
	norm := NormalizeTags(tags)
	if len(norm) == 0 {
		return "tags-default"
	}
	return "tags-" + shortHash([]byte(strings.Join(norm, "|")))
}

// NormalizeTags lowercases, trims, dedupes and sorts tags. Everything sent to
// a provider is built from this form so one cache key means one query.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	norm := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		norm = append(norm, t)
	}
	sort.Strings(norm)
	return norm
}

// ChartKey is a stable key for chart data
func ChartKey(data types.ChartData) string {
	b, _ := json.Marshal(data)
	return "chart-" + shortHash(b)
}

func shortHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}

// Lookup returns the entry for key if its file is still present on disk
func (c *Cache) Lookup(key string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		data, err := os.ReadFile(c.sidecarPath(key))
		if err != nil {
			return Entry{}, false
		}
		if err := json.Unmarshal(data, &e); err != nil {
			return Entry{}, false
		}
	}
	if !present(e.File) {
		return Entry{}, false
	}
	if !ok {
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
	}
	return e, true
}

// TempPath returns a unique scratch path inside the cache directory, on the
// same filesystem as the final file so Commit can rename atomically.
func (c *Cache) TempPath(key, ext string) (string, error) {
	f, err := os.CreateTemp(c.dir, "."+key+"-*"+ext)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

// FinalPath is where a committed file for key lives
func (c *Cache) FinalPath(key, ext string) string {
	return filepath.Join(c.dir, key+ext)
}

// Commit publishes tmp as the file for key and records the binding
func (c *Cache) Commit(tmp string, e Entry, ext string) (Entry, error) {
	final := c.FinalPath(e.Key, ext)
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return Entry{}, fmt.Errorf("publish cache file: %w", err)
	}
	e.File = final
	return e, c.Record(e)
}

// Record persists the binding for a file that is already in place
func (c *Cache) Record(e Entry) error {
	info, err := os.Stat(e.File)
	if err != nil {
		return err
	}
	e.FileSize = info.Size()
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomic(c.sidecarPath(e.Key), data); err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[e.Key] = e
	c.mu.Unlock()
	return nil
}

// Flush writes the aggregate manifest; called once at run end
func (c *Cache) Flush() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(c.dir, manifestFile), data); err != nil {
		return err
	}
	st := c.Stats()
	c.log.Info("cache manifest flushed", "entries", st.Entries, "bytes", st.TotalSize, "sources", st.Sources)
	return nil
}

// Stats summarises the cache contents
type Stats struct {
	Entries   int
	TotalSize int64
	Sources   map[string]int
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{Sources: make(map[string]int)}
	for _, e := range c.entries {
		s.Entries++
		s.TotalSize += e.FileSize
		s.Sources[e.Source]++
	}
	return s
}

func (c *Cache) sidecarPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func present(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
