package manager

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"promai/internal/common/fsutil"
	"promai/pkg/types"
)

// maxRecent bounds the recent-models file.
const maxRecent = 10

// RecentModel is a previously loaded model.
type RecentModel struct {
	Path         string        `json:"-"`
	LastUsedUnix int64         `json:"last_used_unix"`
	Profile      types.Profile `json:"profile"`
}

// RecentModels returns recently loaded models, most recent first.
func (m *Manager) RecentModels() []RecentModel {
	return readRecent(m.recentPath)
}

func readRecent(path string) []RecentModel {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	var data map[string]RecentModel
	if err := dec.Decode(&data); err != nil {
		return nil
	}
	out := make([]RecentModel, 0, len(data))
	for p, r := range data {
		r.Path = p
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsedUnix > out[j].LastUsedUnix })
	return out
}

func (m *Manager) recordRecent(path string, profile types.Profile) {
	if m.recentPath == "" {
		return
	}
	recent := readRecent(m.recentPath)
	snap := make(map[string]RecentModel, len(recent)+1)
	snap[path] = RecentModel{Path: path, LastUsedUnix: time.Now().Unix(), Profile: profile}
	for _, r := range recent {
		if len(snap) >= maxRecent {
			break
		}
		if _, ok := snap[r.Path]; !ok {
			snap[r.Path] = r
		}
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	if err := fsutil.WriteFileAtomic(m.recentPath, b, 0o644); err != nil {
		m.log.Debug().Err(err).Str("path", m.recentPath).Msg("saving recent models")
	}
}
