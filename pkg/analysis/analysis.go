// Package analysis wires the pipeline together: purpose detection, column
// mapping, cascade evaluation, and report aggregation for one dataset.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"rulelens/pkg/cascade"
	"rulelens/pkg/catalog"
	"rulelens/pkg/dataset"
	"rulelens/pkg/detect"
	"rulelens/pkg/facts"
	"rulelens/pkg/log"
	"rulelens/pkg/mapping"
	"rulelens/pkg/report"
)

// Runner holds the validated catalog and its compiled cascades. Construct
// once at startup; safe for concurrent analysis runs.
type Runner struct {
	catalog *catalog.Catalog
	sets    map[string]*cascade.Set
	workers int
}

type RunnerOpt func(*Runner)

// WithWorkers bounds the record evaluation pool.
func WithWorkers(n int) RunnerOpt {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// NewRunner validates the catalog and compiles every purpose's cascades.
// Any failure is a catalog authoring error and is returned here, once,
// instead of surfacing per record.
func NewRunner(c *catalog.Catalog, opts ...RunnerOpt) (*Runner, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	r := &Runner{
		catalog: c,
		sets:    make(map[string]*cascade.Set, len(c.Purposes)),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, p := range c.Purposes {
		if len(p.Rules) == 0 {
			continue
		}

		set, err := cascade.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("purpose %q: %w", p.Name, err)
		}

		r.sets[p.Name] = set
	}

	return r, nil
}

// Analyze runs the full pipeline over one dataset. mlFacts may be nil; the
// cascade report never depends on it.
func (r *Runner) Analyze(ctx context.Context, ds *dataset.Dataset, mlFacts *facts.Facts) *report.Report {
	logger := log.WithContext(ctx)

	match := detect.Detect(r.catalog, ds.Columns)
	logger.Debug("detected purpose",
		slog.String("purpose", match.Purpose),
		slog.String("confidence", string(match.Confidence)),
		slog.Int("columns_matched", match.ColumnsMatched),
	)

	purpose := r.catalog.Purpose(match.Purpose)
	if purpose == nil {
		// No purpose cleared even the Low threshold. Still a well-formed
		// (empty) report, not an error.
		return report.Build(nil, match, nil, ds, nil, mlFacts)
	}

	m := mapping.Resolve(purpose, ds.Columns)
	for _, w := range m.Warnings {
		logger.Warn("column mapping", slog.String("warning", w))
	}

	var decisions []cascade.Decision

	if set, ok := r.sets[purpose.Name]; ok {
		decisions = r.evaluateAll(set, ds, m)
	}

	return report.Build(purpose, match, m, ds, decisions, mlFacts)
}

// evaluateAll fans records out across the worker pool. Records are
// independent, so completion order is irrelevant; results are reassembled in
// record-index order before aggregation.
func (r *Runner) evaluateAll(set *cascade.Set, ds *dataset.Dataset, m *mapping.Mapping) []cascade.Decision {
	workers := r.workers
	if workers > len(ds.Records) {
		workers = len(ds.Records)
	}

	if workers <= 1 {
		var decisions []cascade.Decision
		for idx, rec := range ds.Records {
			decisions = append(decisions, set.EvaluateRecord(idx, rec, m)...)
		}

		return decisions
	}

	perRecord := make([][]cascade.Decision, len(ds.Records))
	jobs := make(chan int)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range jobs {
				perRecord[idx] = set.EvaluateRecord(idx, ds.Records[idx], m)
			}
		}()
	}

	for idx := range ds.Records {
		jobs <- idx
	}

	close(jobs)
	wg.Wait()

	var decisions []cascade.Decision
	for _, recDecisions := range perRecord {
		decisions = append(decisions, recDecisions...)
	}

	return decisions
}
