package backup

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ApplyRetention deletes archives strictly older than the retention
// window and returns the removed paths. Archives whose names do not
// parse as backup timestamps are left alone.
func (e *Engine) ApplyRetention(now time.Time) ([]string, error) {
	archives, err := e.ListArchives()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, path := range archives {
		createdAt, ok := parseArchiveTime(path)
		if !ok {
			continue
		}
		if now.Sub(createdAt) <= e.retention {
			continue
		}
		if err := os.Remove(path); err != nil {
			e.log.Warn().Err(err).Str("path", path).Msg("failed to prune expired archive")
			continue
		}
		e.log.Info().Str("path", path).Time("created_at", createdAt).Msg("pruned expired archive")
		removed = append(removed, path)
	}

	return removed, nil
}

// parseArchiveTime recovers the creation time from an archive filename
func parseArchiveTime(path string) (time.Time, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	t, err := time.ParseInLocation(timestampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
