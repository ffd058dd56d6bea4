package schema

import (
	"context"

	"github.com/kjrjay/vegabase/pkg/db"
)

// PlanAsync runs Plan on a session of its own and returns immediately.
func PlanAsync(ctx context.Context, d *db.Database, declared *Schema) *db.Future[[]Change] {
	return db.Go(ctx, func(ctx context.Context) ([]Change, error) {
		var changes []Change
		err := d.Connection(ctx, func(c *db.Conn) error {
			var err error
			changes, err = Plan(ctx, c, declared)
			return err
		})
		return changes, err
	})
}

// ApplyAsync runs Apply on a session of its own and returns immediately.
// On failure the result holds the applied prefix, as with Apply.
func ApplyAsync(ctx context.Context, d *db.Database, declared *Schema) *db.Future[[]Change] {
	return db.Go(ctx, func(ctx context.Context) ([]Change, error) {
		var applied []Change
		err := d.Connection(ctx, func(c *db.Conn) error {
			var err error
			applied, err = Apply(ctx, c, declared)
			return err
		})
		return applied, err
	})
}
