package native

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Spec names one artifact for batch staging. An empty SourcePath stores from
// the repository's packaged resources.
type Spec struct {
	Namespace  string
	Name       string
	SourcePath string
}

// StoreAll stages specs concurrently, at most Config.Parallelism at a time.
// Results are returned in input order; on failure the first error is
// returned and unscheduled specs are skipped.
func (r *Repository) StoreAll(ctx context.Context, specs []Spec) ([]*Artifact, error) {
	out := make([]*Artifact, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, spec := range specs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var (
				a   *Artifact
				err error
			)
			if spec.SourcePath != "" {
				a, err = r.StoreFile(spec.SourcePath, spec.Namespace, spec.Name)
			} else {
				a, err = r.Store(spec.Namespace, spec.Name)
			}
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}
	err := g.Wait()
	return out, err
}

// LoadAll loads artifacts one at a time in the given order, which callers
// use to express native dependency order.
func (r *Repository) LoadAll(ctx context.Context, artifacts []*Artifact) error {
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Load(a); err != nil {
			return err
		}
	}
	return nil
}
