package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot/stackpilot/pkg/types"
)

// fakeStack simulates the compose surface the engine drives
type fakeStack struct {
	dump        []byte
	dumpErr     error
	saveErr     error
	cacheData   []byte
	cacheErr    error
	objectFiles map[string][]byte
	objectErr   error

	restoredSQL []byte
	copyToCalls []string
}

func (f *fakeStack) Exec(ctx context.Context, service string, cmd ...string) (string, error) {
	return "OK", f.saveErr
}

func (f *fakeStack) ExecStdout(ctx context.Context, service string, w io.Writer, cmd ...string) error {
	if f.dumpErr != nil {
		return f.dumpErr
	}
	_, err := w.Write(f.dump)
	return err
}

func (f *fakeStack) ExecStdin(ctx context.Context, service string, r io.Reader, cmd ...string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.restoredSQL = data
	return nil
}

func (f *fakeStack) CopyFrom(ctx context.Context, service, src, dst string) error {
	switch service {
	case "redis":
		if f.cacheErr != nil {
			return f.cacheErr
		}
		return os.WriteFile(dst, f.cacheData, 0o600)
	case "minio":
		if f.objectErr != nil {
			return f.objectErr
		}
		for rel, content := range f.objectFiles {
			path := filepath.Join(dst, rel)
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(path, content, 0o600); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.New("unexpected service " + service)
}

func (f *fakeStack) CopyTo(ctx context.Context, service, src, dst string) error {
	f.copyToCalls = append(f.copyToCalls, service+":"+dst)
	return nil
}

func newTestEngine(t *testing.T, stack StackClient) *Engine {
	t.Helper()

	root := t.TempDir()
	stackDir := t.TempDir()
	composeFile := filepath.Join(stackDir, "docker-compose.yaml")
	secretsFile := filepath.Join(stackDir, ".env")
	require.NoError(t, os.WriteFile(composeFile, []byte("services: {}\n"), 0o644))
	require.NoError(t, os.WriteFile(secretsFile, []byte("DATABASE_URL=postgres://idp@postgres/idp\n"), 0o600))

	targets := Targets{
		DatabaseService:     "postgres",
		DatabaseUser:        "idp",
		DatabaseName:        "idp",
		CacheService:        "redis",
		CacheSnapshotPath:   "/data/dump.rdb",
		ObjectStoreService:  "minio",
		ObjectStoreDataPath: "/data",
		ConfigPaths:         []string{composeFile, secretsFile},
	}

	return NewEngine(root, 30*24*time.Hour, targets, stack, zerolog.Nop())
}

func healthyStack() *fakeStack {
	return &fakeStack{
		dump:      []byte("CREATE TABLE users (id uuid PRIMARY KEY);\n"),
		cacheData: []byte("REDIS0011fakeRDB"),
		objectFiles: map[string][]byte{
			"idp-images/avatar.png": []byte("png-bytes"),
		},
	}
}

func TestCreateBackup(t *testing.T) {
	engine := newTestEngine(t, healthyStack())

	record, err := engine.Create(context.Background())
	require.NoError(t, err)

	assert.True(t, record.Verified)
	assert.Empty(t, record.Warnings())
	assert.Len(t, record.Components, 4)
	assert.FileExists(t, record.Path)
	assert.Greater(t, record.Size, int64(0))

	// The uncompressed tree is deleted after compression
	entries, err := os.ReadDir(engine.root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(record.Path), entries[0].Name())
}

func TestCreateBackupEmptyObjectStore(t *testing.T) {
	stack := healthyStack()
	stack.objectFiles = nil

	engine := newTestEngine(t, stack)
	record, err := engine.Create(context.Background())
	require.NoError(t, err)

	// Empty object store degrades the backup but does not invalidate it
	assert.True(t, record.Verified)
	warnings := record.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, types.ComponentObjectStore, warnings[0].Kind)
	assert.Equal(t, types.ComponentEmpty, warnings[0].Status)

	assert.NoError(t, engine.Verify(record.Path))
}

func TestCreateBackupMissingCacheSnapshot(t *testing.T) {
	stack := healthyStack()
	stack.cacheErr = errors.New("no such file dump.rdb")

	engine := newTestEngine(t, stack)
	record, err := engine.Create(context.Background())
	require.NoError(t, err)

	warnings := record.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, types.ComponentCache, warnings[0].Kind)
	assert.Equal(t, types.ComponentMissing, warnings[0].Status)
}

func TestCreateBackupEmptyDumpFails(t *testing.T) {
	stack := healthyStack()
	stack.dump = nil

	engine := newTestEngine(t, stack)
	_, err := engine.Create(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.KindIntegrity, types.KindOf(err))
}

func TestCreateBackupDumpCommandFails(t *testing.T) {
	stack := healthyStack()
	stack.dumpErr = errors.New("pg_dump: connection refused")

	engine := newTestEngine(t, stack)
	_, err := engine.Create(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.KindExternalCommand, types.KindOf(err))

	// No partial archive is left behind
	archives, err := engine.ListArchives()
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestVerifyRejectsCorruptArchive(t *testing.T) {
	engine := newTestEngine(t, healthyStack())
	path := filepath.Join(engine.root, archivePrefix+"20260101-000000"+archiveSuffix)
	require.NoError(t, os.WriteFile(path, []byte("not a tarball"), 0o600))

	err := engine.Verify(path)
	require.Error(t, err)
	assert.Equal(t, types.KindIntegrity, types.KindOf(err))
}

func TestVerifyRejectsManifestlessArchive(t *testing.T) {
	engine := newTestEngine(t, healthyStack())

	tree := filepath.Join(t.TempDir(), "tree")
	require.NoError(t, os.MkdirAll(tree, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "stray.txt"), []byte("x"), 0o600))

	path := filepath.Join(engine.root, archivePrefix+"20260101-000000"+archiveSuffix)
	require.NoError(t, compressTree(tree, path))

	err := engine.Verify(path)
	require.Error(t, err)
	assert.Equal(t, types.KindIntegrity, types.KindOf(err))
}

func TestRestoreRoundTrip(t *testing.T) {
	stack := healthyStack()
	engine := newTestEngine(t, stack)

	record, err := engine.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, engine.Restore(context.Background(), record))

	// The SQL fed back to psql matches what pg_dump produced
	assert.Equal(t, stack.dump, stack.restoredSQL)
	assert.Contains(t, stack.copyToCalls, "redis:/data/dump.rdb")
	assert.Contains(t, stack.copyToCalls, "minio:/data")
}

func TestRestoreRejectsUnverifiedRecord(t *testing.T) {
	engine := newTestEngine(t, healthyStack())

	err := engine.Restore(context.Background(), &types.BackupRecord{ID: "20260101-000000"})
	require.Error(t, err)
	assert.Equal(t, types.KindIntegrity, types.KindOf(err))
}
