package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{
			name:     "precondition",
			err:      NewPreconditionError("validate", errors.New("compose file missing")),
			expected: KindPrecondition,
		},
		{
			name:     "timeout",
			err:      NewTimeoutError("wait idp-server", errors.New("60s elapsed")),
			expected: KindTimeout,
		},
		{
			name:     "wrapped keeps kind",
			err:      fmt.Errorf("phase restart: %w", NewTimeoutError("wait idp-server", nil)),
			expected: KindTimeout,
		},
		{
			name:     "untyped defaults to external-command",
			err:      errors.New("boom"),
			expected: KindExternalCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestIsDeclined(t *testing.T) {
	assert.True(t, IsDeclined(NewConfirmationDeclined("update gate")))
	assert.True(t, IsDeclined(fmt.Errorf("update: %w", NewConfirmationDeclined("gate"))))
	assert.False(t, IsDeclined(errors.New("boom")))
	assert.False(t, IsDeclined(nil))
}

func TestSortByRank(t *testing.T) {
	services := []ServiceDescriptor{
		{Name: "proxy", Rank: 60},
		{Name: "postgres", Rank: 10},
		{Name: "idp-server", Rank: 40},
		{Name: "redis", Rank: 20},
	}

	sorted := SortByRank(services)

	assert.Equal(t, "postgres", sorted[0].Name)
	assert.Equal(t, "redis", sorted[1].Name)
	assert.Equal(t, "idp-server", sorted[2].Name)
	assert.Equal(t, "proxy", sorted[3].Name)

	// Input order untouched
	assert.Equal(t, "proxy", services[0].Name)
}

func TestBackupRecordWarnings(t *testing.T) {
	record := &BackupRecord{
		Components: []BackupComponent{
			{Kind: ComponentDatabase, Status: ComponentOK},
			{Kind: ComponentCache, Status: ComponentMissing},
			{Kind: ComponentObjectStore, Status: ComponentEmpty},
		},
	}

	warnings := record.Warnings()
	assert.Len(t, warnings, 2)
	assert.Equal(t, ComponentCache, warnings[0].Kind)
	assert.Equal(t, ComponentObjectStore, warnings[1].Kind)
}
