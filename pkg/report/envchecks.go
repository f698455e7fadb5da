package report

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
)

// VolumeLister returns the project's persistent volume names
type VolumeLister interface {
	ListVolumes(ctx context.Context) ([]string, error)
}

// LogSource returns project logs emitted within the window
type LogSource interface {
	Logs(ctx context.Context, window time.Duration) (string, error)
}

// DiskUsageCheck fails when the filesystem holding path is fuller than
// limitPercent
func DiskUsageCheck(path string, limitPercent int) EnvCheck {
	check := EnvCheck{Name: "disk-usage"}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		check.Detail = fmt.Sprintf("statfs %s: %v", path, err)
		return check
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	if total == 0 {
		check.Detail = fmt.Sprintf("statfs %s: zero-size filesystem", path)
		return check
	}

	usedPercent := int((total - free) * 100 / total)
	check.OK = usedPercent <= limitPercent
	check.Detail = fmt.Sprintf("%s: %d%% used of %s (limit %d%%)",
		path, usedPercent, humanize.IBytes(total), limitPercent)
	return check
}

// VolumesCheck verifies every expected persistent volume exists
func VolumesCheck(ctx context.Context, lister VolumeLister, expected []string) EnvCheck {
	check := EnvCheck{Name: "volumes"}

	present, err := lister.ListVolumes(ctx)
	if err != nil {
		check.Detail = fmt.Sprintf("volume listing failed: %v", err)
		return check
	}

	have := make(map[string]bool, len(present))
	for _, name := range present {
		have[name] = true
	}

	var missing []string
	for _, name := range expected {
		if !have[name] {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		check.Detail = "missing: " + strings.Join(missing, ", ")
		return check
	}

	check.OK = true
	check.Detail = fmt.Sprintf("%d expected volumes present", len(expected))
	return check
}

// LogScanCheck scans recent project logs for error lines
func LogScanCheck(ctx context.Context, source LogSource, window time.Duration) EnvCheck {
	check := EnvCheck{Name: "error-logs"}

	logs, err := source.Logs(ctx, window)
	if err != nil {
		check.Detail = fmt.Sprintf("log retrieval failed: %v", err)
		return check
	}

	count := countErrorLines(logs)
	if count > 0 {
		check.Detail = fmt.Sprintf("%d error lines in the last %s", count, window)
		return check
	}

	check.OK = true
	check.Detail = fmt.Sprintf("no errors in the last %s", window)
	return check
}

func countErrorLines(logs string) int {
	count := 0
	for _, line := range strings.Split(logs, "\n") {
		upper := strings.ToUpper(line)
		if strings.Contains(upper, " ERROR") || strings.Contains(upper, "FATAL") || strings.Contains(upper, "PANIC") {
			count++
		}
	}
	return count
}
