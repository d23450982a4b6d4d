package intake

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of inspecting one file in a batch.
type Result struct {
	Path        string
	Report      *Report
	Err         error
	DuplicateOf string // earlier path with the same fingerprint
}

// InspectFiles inspects paths with at most workers files in flight.
// Results keep the order of paths. A rejected file does not stop the batch;
// only cancellation of ctx does, in which case ctx.Err() is returned.
// Accepted files are recorded in order, so DuplicateOf always names the
// earliest path carrying the same content.
func (in *Inspector) InspectFiles(ctx context.Context, paths []string, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(paths))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := in.InspectFile(path)
			results[i] = Result{Path: path, Report: report, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	for i := range results {
		r := &results[i]
		if r.Err != nil {
			continue
		}
		if first, dup := in.registry.Record(r.Report.Fingerprint, r.Path); dup {
			r.DuplicateOf = first
			in.log.Info("duplicate submission", zap.String("path", r.Path), zap.String("duplicate_of", first))
		}
	}
	return results, nil
}

// Rejected counts results that carry an error.
func Rejected(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
