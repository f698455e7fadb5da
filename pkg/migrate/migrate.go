package migrate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stackpilot/stackpilot/pkg/types"
)

// Step is one self-contained schema migration entry point
type Step struct {
	// Name identifies the step in logs and errors
	Name string

	// Service is the compose service whose image carries the migration
	// command
	Service string

	// Command is the migration entry point, run in a one-shot container
	Command []string
}

// DefaultSteps returns the stack's migrations in dependency order: the
// core schema first, then the schemas that reference it, the management
// portal last.
func DefaultSteps() []Step {
	return []Step{
		{Name: "core-schema", Service: "idp-server", Command: []string{"idp", "database", "migrate", "up"}},
		{Name: "audit-schema", Service: "idp-server", Command: []string{"idp", "audit", "database", "migrate", "up"}},
		{Name: "images-schema", Service: "idp-server", Command: []string{"idp", "images", "database", "migrate", "up"}},
		{Name: "search-schema", Service: "idp-server", Command: []string{"idp", "search", "database", "migrate", "up"}},
		{Name: "portal-schema", Service: "idp-portal", Command: []string{"idp-portal", "database", "migrate", "up"}},
	}
}

// OneShotRunner runs a command in a fresh container of a service
type OneShotRunner interface {
	RunOneShot(ctx context.Context, service string, cmd ...string) error
}

// Runner executes migration steps strictly in order
type Runner struct {
	compose OneShotRunner
	steps   []Step
	log     zerolog.Logger
}

// NewRunner creates a migration runner over the given steps
func NewRunner(compose OneShotRunner, steps []Step, logger zerolog.Logger) *Runner {
	return &Runner{compose: compose, steps: steps, log: logger}
}

// Run invokes every step in order. The first non-zero outcome is fatal
// and stops the sequence: schemas have ordering dependencies, so later
// migrations are never attempted after an earlier failure. There is no
// automatic down-migration; recovery is a backup restore.
func (r *Runner) Run(ctx context.Context) error {
	for i, step := range r.steps {
		logger := r.log.With().Str("migration", step.Name).Logger()
		logger.Info().Int("step", i+1).Int("of", len(r.steps)).Msg("running migration")

		if err := r.compose.RunOneShot(ctx, step.Service, step.Command...); err != nil {
			return types.NewExternalCommandError(
				fmt.Sprintf("migration %s", step.Name), err)
		}

		logger.Info().Msg("migration complete")
	}
	return nil
}
