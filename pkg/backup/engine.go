package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/stackpilot/stackpilot/pkg/config"
	"github.com/stackpilot/stackpilot/pkg/types"
)

const (
	archivePrefix   = "stackpilot-backup-"
	archiveSuffix   = ".tar.gz"
	timestampLayout = "20060102-150405"
	manifestName    = "manifest.yaml"
)

// StackClient is the slice of the compose runner the engine needs
type StackClient interface {
	Exec(ctx context.Context, service string, cmd ...string) (string, error)
	ExecStdout(ctx context.Context, service string, w io.Writer, cmd ...string) error
	ExecStdin(ctx context.Context, service string, r io.Reader, cmd ...string) error
	CopyFrom(ctx context.Context, service, src, dst string) error
	CopyTo(ctx context.Context, service, src, dst string) error
}

// Targets names the stateful components of the stack
type Targets struct {
	DatabaseService string
	DatabaseUser    string
	DatabaseName    string

	CacheService      string
	CacheSnapshotPath string

	ObjectStoreService  string
	ObjectStoreDataPath string

	// ConfigPaths are the configuration and secret files copied verbatim
	// (read-only) into every backup
	ConfigPaths []string
}

// TargetsFromConfig derives backup targets from the stack configuration
func TargetsFromConfig(cfg *config.Config) Targets {
	return Targets{
		DatabaseService:     "postgres",
		DatabaseUser:        cfg.Backup.DatabaseUser,
		DatabaseName:        cfg.Backup.DatabaseName,
		CacheService:        "redis",
		CacheSnapshotPath:   "/data/dump.rdb",
		ObjectStoreService:  cfg.ObjectStore.Service,
		ObjectStoreDataPath: "/data",
		ConfigPaths: []string{
			filepath.Join(cfg.StackDir, cfg.ComposeFile),
			filepath.Join(cfg.StackDir, cfg.SecretsFile),
		},
	}
}

// Engine produces, verifies, restores, and prunes backup archives. The
// backup root directory is owned exclusively by one engine run at a
// time; concurrent runs are not supported and must be serialized by the
// caller.
type Engine struct {
	root      string
	retention time.Duration
	targets   Targets
	stack     StackClient
	log       zerolog.Logger

	now func() time.Time
}

// NewEngine creates a backup engine rooted at root
func NewEngine(root string, retention time.Duration, targets Targets, stack StackClient, logger zerolog.Logger) *Engine {
	return &Engine{
		root:      root,
		retention: retention,
		targets:   targets,
		stack:     stack,
		log:       logger,
		now:       time.Now,
	}
}

// Create takes a point-in-time backup of every stateful component plus
// configuration and materializes it as one verified compressed archive.
// Either the returned record is fully materialized and verified, or an
// error is returned and no valid record exists for this run.
//
// Services stay live during the backup, so the database dump and the
// object-store mirror are not guaranteed to be mutually
// transaction-consistent. That is an accepted limitation of online
// backups, not a defect.
func (e *Engine) Create(ctx context.Context) (*types.BackupRecord, error) {
	createdAt := e.now().UTC()
	id := createdAt.Format(timestampLayout)
	workDir := filepath.Join(e.root, archivePrefix+id)
	logger := e.log.With().Str("backup_id", id).Logger()

	// Retention is counted independently of this run's outcome
	defer func() {
		if _, err := e.ApplyRetention(e.now()); err != nil {
			logger.Warn().Err(err).Msg("retention pruning failed")
		}
	}()

	for _, sub := range []string{"database", "cache", "objectstore", "config"} {
		if err := os.MkdirAll(filepath.Join(workDir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("failed to allocate backup tree: %w", err)
		}
	}
	defer os.RemoveAll(workDir)

	var components []types.BackupComponent

	dbComp, err := e.dumpDatabase(ctx, workDir)
	if err != nil {
		return nil, err
	}
	components = append(components, dbComp)

	// Cache data is recoverable, a missing snapshot degrades the backup
	// but does not abort it
	components = append(components, e.snapshotCache(ctx, workDir, logger))
	components = append(components, e.mirrorObjectStore(ctx, workDir, logger))

	cfgComp, err := e.copyConfig(workDir)
	if err != nil {
		return nil, err
	}
	components = append(components, cfgComp)

	manifest, err := buildManifest(id, createdAt, workDir, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build manifest: %w", err)
	}
	if err := writeManifest(filepath.Join(workDir, manifestName), manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	archivePath := filepath.Join(e.root, archivePrefix+id+archiveSuffix)
	if err := compressTree(workDir, archivePath); err != nil {
		return nil, fmt.Errorf("failed to compress backup: %w", err)
	}
	// The uncompressed tree is deleted by the deferred RemoveAll; from
	// here on the archive is the only artifact

	if err := e.Verify(archivePath); err != nil {
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	record := &types.BackupRecord{
		ID:         id,
		Path:       archivePath,
		CreatedAt:  createdAt,
		Size:       info.Size(),
		Components: components,
		Verified:   true,
	}

	logger.Info().
		Str("path", archivePath).
		Str("size", humanize.Bytes(uint64(info.Size()))).
		Int("warnings", len(record.Warnings())).
		Msg("backup archive created")

	return record, nil
}

// dumpDatabase produces the compressed logical dump. An empty dump is an
// integrity failure: the database is the component backups exist for.
func (e *Engine) dumpDatabase(ctx context.Context, workDir string) (types.BackupComponent, error) {
	comp := types.BackupComponent{Kind: types.ComponentDatabase}
	dumpPath := filepath.Join(workDir, "database", "dump.sql.gz")

	f, err := os.Create(dumpPath)
	if err != nil {
		return comp, fmt.Errorf("failed to create dump file: %w", err)
	}

	gz := gzip.NewWriter(f)
	counter := &countingWriter{w: gz}

	dumpErr := e.stack.ExecStdout(ctx, e.targets.DatabaseService, counter,
		"pg_dump", "--clean", "--if-exists",
		"-U", e.targets.DatabaseUser, e.targets.DatabaseName)

	if err := gz.Close(); err != nil && dumpErr == nil {
		dumpErr = err
	}
	if err := f.Close(); err != nil && dumpErr == nil {
		dumpErr = err
	}

	if dumpErr != nil {
		return comp, types.NewExternalCommandError("database dump", dumpErr)
	}
	if counter.n == 0 {
		return comp, types.NewIntegrityError("database dump", fmt.Errorf("dump is empty"))
	}

	info, err := os.Stat(dumpPath)
	if err != nil {
		return comp, fmt.Errorf("failed to stat dump: %w", err)
	}

	comp.Status = types.ComponentOK
	comp.Files = 1
	comp.Bytes = info.Size()
	return comp, nil
}

// snapshotCache triggers a synchronous persistence point and copies the
// resulting snapshot file
func (e *Engine) snapshotCache(ctx context.Context, workDir string, logger zerolog.Logger) types.BackupComponent {
	comp := types.BackupComponent{Kind: types.ComponentCache, Status: types.ComponentMissing}

	if _, err := e.stack.Exec(ctx, e.targets.CacheService, "redis-cli", "save"); err != nil {
		logger.Warn().Err(err).Msg("cache persistence point failed, continuing without snapshot")
		return comp
	}

	dst := filepath.Join(workDir, "cache", filepath.Base(e.targets.CacheSnapshotPath))
	if err := e.stack.CopyFrom(ctx, e.targets.CacheService, e.targets.CacheSnapshotPath, dst); err != nil {
		logger.Warn().Err(err).Msg("cache snapshot missing, continuing without it")
		return comp
	}

	info, err := os.Stat(dst)
	if err != nil {
		logger.Warn().Err(err).Msg("cache snapshot unreadable, continuing without it")
		return comp
	}

	comp.Files = 1
	comp.Bytes = info.Size()
	comp.Status = types.ComponentOK
	if info.Size() == 0 {
		comp.Status = types.ComponentEmpty
	}
	return comp
}

// mirrorObjectStore copies all bucket data into the backup tree. An
// empty or unreachable mirror is a warning, not fatal.
func (e *Engine) mirrorObjectStore(ctx context.Context, workDir string, logger zerolog.Logger) types.BackupComponent {
	comp := types.BackupComponent{Kind: types.ComponentObjectStore, Status: types.ComponentMissing}
	dst := filepath.Join(workDir, "objectstore")

	if err := e.stack.CopyFrom(ctx, e.targets.ObjectStoreService, e.targets.ObjectStoreDataPath+"/.", dst); err != nil {
		logger.Warn().Err(err).Msg("object-store mirror failed, continuing without it")
		return comp
	}

	files, bytes := countTree(dst)
	comp.Files = files
	comp.Bytes = bytes
	if files == 0 {
		comp.Status = types.ComponentEmpty
		logger.Warn().Msg("object store is empty, recording mirror as empty")
	} else {
		comp.Status = types.ComponentOK
	}
	return comp
}

// copyConfig copies configuration and secret files verbatim. The
// sources are never modified.
func (e *Engine) copyConfig(workDir string) (types.BackupComponent, error) {
	comp := types.BackupComponent{Kind: types.ComponentConfig}

	for _, src := range e.targets.ConfigPaths {
		dst := filepath.Join(workDir, "config", filepath.Base(src))
		n, err := copyFile(src, dst)
		if err != nil {
			return comp, fmt.Errorf("failed to copy %s: %w", src, err)
		}
		comp.Files++
		comp.Bytes += n
	}

	comp.Status = types.ComponentOK
	return comp, nil
}

// ListArchives returns the archive paths under the backup root, oldest
// first (names sort by timestamp).
func (e *Engine) ListArchives() ([]string, error) {
	entries, err := os.ReadDir(e.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup root: %w", err)
	}

	var archives []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && strings.HasPrefix(name, archivePrefix) && strings.HasSuffix(name, archiveSuffix) {
			archives = append(archives, filepath.Join(e.root, name))
		}
	}
	return archives, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func countTree(root string) (int, int64) {
	var files int
	var bytes int64
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		// Engine-internal bookkeeping is not user data
		if d.IsDir() && d.Name() == ".minio.sys" {
			return filepath.SkipDir
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				files++
				bytes += info.Size()
			}
		}
		return nil
	})
	return files, bytes
}
