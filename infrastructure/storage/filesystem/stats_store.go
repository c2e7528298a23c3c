package filesystem

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/felixgeelhaar/adcompliance/domain/analysis"
)

// StatsStore persists one usage statistics file per batch.
type StatsStore struct {
	dir string
}

// NewStatsStore creates a store rooted at dir (usually stats/tokens).
func NewStatsStore(dir string) *StatsStore {
	return &StatsStore{dir: dir}
}

// Dir returns the statistics directory.
func (s *StatsStore) Dir() string {
	return s.dir
}

// Save writes stats to token_stats_<ts>.json and returns the path.
func (s *StatsStore) Save(stats analysis.UsageStats, at time.Time) (string, error) {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create stats directory: %w", err)
	}
	path := filepath.Join(s.dir, "token_stats_"+at.Format(stampLayout)+".json")
	if err := writeJSON(path, stats); err != nil {
		return "", fmt.Errorf("failed to write stats: %w", err)
	}
	return path, nil
}

// LoadAll reads every statistics file in the directory, oldest first.
// A missing directory yields no files.
func (s *StatsStore) LoadAll() ([]analysis.UsageStats, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var all []analysis.UsageStats
	for _, p := range paths {
		data, err := os.ReadFile(p) // #nosec G304 -- files under the stats directory
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var st analysis.UsageStats
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", p, err)
		}
		all = append(all, st)
	}
	return all, nil
}

// Summary merges every saved file into one total.
func (s *StatsStore) Summary() (analysis.UsageStats, int, error) {
	all, err := s.LoadAll()
	if err != nil {
		return analysis.UsageStats{}, 0, err
	}
	var total analysis.UsageStats
	for _, st := range all {
		total.Merge(st)
	}
	return total, len(all), nil
}
