package compose

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// decodePS parses `docker compose ps --format json` output into typed
// rows. Compose v2.21+ emits one JSON object per line; older releases
// emit a single JSON array. Both are accepted.
func decodePS(out string) ([]ContainerRow, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	if strings.HasPrefix(out, "[") {
		var rows []ContainerRow
		if err := json.Unmarshal([]byte(out), &rows); err != nil {
			return nil, fmt.Errorf("failed to decode compose ps output: %w", err)
		}
		return rows, nil
	}

	var rows []ContainerRow
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		var row ContainerRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("failed to decode compose ps line: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FindService returns the row for the named service, if present
func FindService(rows []ContainerRow, service string) (ContainerRow, bool) {
	for _, row := range rows {
		if row.Service == service {
			return row, true
		}
	}
	return ContainerRow{}, false
}
