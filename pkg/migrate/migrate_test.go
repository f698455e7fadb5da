package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot/stackpilot/pkg/types"
)

type fakeOneShot struct {
	calls  []string
	failAt string
}

func (f *fakeOneShot) RunOneShot(ctx context.Context, service string, cmd ...string) error {
	call := service + " " + strings.Join(cmd, " ")
	f.calls = append(f.calls, call)
	if f.failAt != "" && strings.Contains(call, f.failAt) {
		return errors.New("exit status 1")
	}
	return nil
}

func TestRunAllSteps(t *testing.T) {
	fake := &fakeOneShot{}
	runner := NewRunner(fake, DefaultSteps(), zerolog.Nop())

	require.NoError(t, runner.Run(context.Background()))
	assert.Len(t, fake.calls, 5)
	// Core schema runs first, portal last
	assert.Contains(t, fake.calls[0], "database migrate up")
	assert.Contains(t, fake.calls[4], "idp-portal")
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	fake := &fakeOneShot{failAt: "audit"}
	runner := NewRunner(fake, DefaultSteps(), zerolog.Nop())

	err := runner.Run(context.Background())
	require.Error(t, err)

	// Steps after the failed one are never attempted
	assert.Len(t, fake.calls, 2)
	assert.Equal(t, types.KindExternalCommand, types.KindOf(err))
	assert.Contains(t, err.Error(), "audit-schema")
}

func TestRunNoSteps(t *testing.T) {
	runner := NewRunner(&fakeOneShot{}, nil, zerolog.Nop())
	assert.NoError(t, runner.Run(context.Background()))
}
