package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot/stackpilot/pkg/types"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func record(id string, verified bool) *types.BackupRecord {
	return &types.BackupRecord{
		ID:        id,
		Path:      "/var/backups/stackpilot/stackpilot-backup-" + id + ".tar.gz",
		CreatedAt: time.Now().UTC(),
		Verified:  verified,
	}
}

func TestPutGetList(t *testing.T) {
	c := openTestCatalog(t)

	require.NoError(t, c.Put(record("20260801-120000", true)))
	require.NoError(t, c.Put(record("20260802-120000", true)))

	got, err := c.Get("20260801-120000")
	require.NoError(t, err)
	assert.True(t, got.Verified)

	_, err = c.Get("20260803-120000")
	assert.Error(t, err)

	records, err := c.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	// bbolt iterates keys in order, so the list is oldest first
	assert.Equal(t, "20260801-120000", records[0].ID)
	assert.Equal(t, "20260802-120000", records[1].ID)
}

func TestLatestVerifiedSkipsUnverified(t *testing.T) {
	c := openTestCatalog(t)

	require.NoError(t, c.Put(record("20260801-120000", true)))
	require.NoError(t, c.Put(record("20260802-120000", true)))
	// Newest record failed verification and must never win
	require.NoError(t, c.Put(record("20260803-120000", false)))

	latest, ok, err := c.LatestVerified()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "20260802-120000", latest.ID)
}

func TestLatestVerifiedEmpty(t *testing.T) {
	c := openTestCatalog(t)

	_, ok, err := c.LatestVerified()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkInvalid(t *testing.T) {
	c := openTestCatalog(t)

	require.NoError(t, c.Put(record("20260801-120000", true)))
	require.NoError(t, c.MarkInvalid("20260801-120000"))

	_, ok, err := c.LatestVerified()
	require.NoError(t, err)
	assert.False(t, ok)
}
