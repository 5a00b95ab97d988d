package assets

import (
	"context"
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

// Prober reads a media file's duration
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// Library picks clips from a local folder described by a tags.json file
// mapping filename to tags. A clip is handed out at most once per run.
type Library struct {
	dir    string
	tags   map[string][]string
	prober Prober
	log    *logger.Logger

	mu        sync.Mutex
	usedInRun map[string]bool
}

// NewLibrary loads the tag index. A missing index yields an empty library.
func NewLibrary(dir, tagsFile string, prober Prober, log *logger.Logger) (*Library, error) {
	log = log.Stage("library")
	tags, err := loadTagsJSON(tagsFile)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("tags.json not found, no library clips will be used", "path", tagsFile)
		tags = map[string][]string{}
	} else if err != nil {
		return nil, fmt.Errorf("load library tags: %w", err)
	}
	return &Library{
		dir:       dir,
		tags:      tags,
		prober:    prober,
		log:       log,
		usedInRun: make(map[string]bool),
	}, nil
}

func (l *Library) Name() string { return "library" }

// Search scores every unused clip against the query. Clips matching no tag
// are not offered, so an unrelated library never shadows remote providers.
func (l *Library) Search(ctx context.Context, q Query) ([]Candidate, error) {
	type scored struct {
		file  string
		score int
	}
	var ranked []scored

	l.mu.Lock()
	for file, clipTags := range l.tags {
		if l.usedInRun[file] {
			continue
		}
		if s := matchScore(q.Tags, clipTags, q.Emotion); s >= 10 {
			ranked = append(ranked, scored{file, s})
		}
	}
	l.mu.Unlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].file < ranked[j].file
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 3
	}
	var out []Candidate
	for _, r := range ranked {
		path := filepath.Join(l.dir, r.file)
		if !present(path) {
			continue
		}
		c := Candidate{
			ID:        r.file,
			Source:    l.Name(),
			Kind:      kindForFile(r.file),
			LocalPath: path,
		}
		if l.prober != nil && c.Kind == types.AssetVideo {
			if d, err := l.prober.ProbeDuration(ctx, path); err == nil {
				c.Duration = d
			}
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Claim marks a clip as used so later requests in the run pick another one
func (l *Library) Claim(c Candidate) {
	l.mu.Lock()
	l.usedInRun[c.ID] = true
	l.mu.Unlock()
	l.log.Debug("picked clip", "file", c.ID)
}

// matchScore scores a clip against required tags + mood
func matchScore(required []string, clipTags []string, mood string) int {
	clipTagSet := make(map[string]bool)
	for _, t := range clipTags {
		clipTagSet[strings.ToLower(t)] = true
	}

	score := 0
	for _, req := range required {
		if clipTagSet[strings.ToLower(req)] {
			score += 10
		}
	}
	if mood != "" && clipTagSet[strings.ToLower(mood)] {
		score += 15
	}
	return score
}

func loadTagsJSON(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// keys starting with "_" hold instructions for humans
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	result := make(map[string][]string)
	for k, v := range raw {
		if strings.HasPrefix(k, "_") {
			continue
		}
		var tags []string
		if err := json.Unmarshal(v, &tags); err != nil {
			continue
		}
		result[k] = tags
	}
	return result, nil
}

func kindForFile(name string) types.AssetKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return types.AssetImage
	}
	return types.AssetVideo
}
