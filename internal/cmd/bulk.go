package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/snowcap/emarsys-cli/internal/outfmt"
)

// DefaultConcurrency is the default number of concurrent workers
const DefaultConcurrency = 5

// BulkResult represents the outcome of a single bulk operation
type BulkResult struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
	Error   error  `json:"-"`
	Data    any    `json:"data,omitempty"`

	index int
}

// runBulkOperation executes operation for every key with bounded parallelism.
// Results come back in the order of keys. Keys skipped after cancellation are
// reported as failures carrying the context error.
func runBulkOperation[T any](
	ctx context.Context,
	keys []string,
	concurrency int64,
	progress bool,
	errOut io.Writer,
	operation func(ctx context.Context, key string) (T, error),
) []BulkResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if errOut == nil {
		errOut = io.Discard
	}

	sem := semaphore.NewWeighted(concurrency)
	var mu sync.Mutex
	results := make([]BulkResult, 0, len(keys))
	total := len(keys)
	var done int64

	g, ctx := errgroup.WithContext(ctx)

	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				results = append(results, BulkResult{Key: key, Error: err, index: i})
				mu.Unlock()
				return nil
			}
			defer sem.Release(1)

			if err := ctx.Err(); err != nil {
				mu.Lock()
				results = append(results, BulkResult{Key: key, Error: err, index: i})
				mu.Unlock()
				return nil
			}

			data, err := operation(ctx, key)

			mu.Lock()
			if err != nil {
				results = append(results, BulkResult{Key: key, Error: err, index: i})
			} else {
				results = append(results, BulkResult{Key: key, Success: true, Data: data, index: i})
			}
			mu.Unlock()

			if progress && total > 0 {
				current := atomic.AddInt64(&done, 1)
				mu.Lock()
				_, _ = fmt.Fprintf(errOut, "\rProcessed %d/%d", current, total)
				mu.Unlock()
			}

			// Individual failures never cancel the rest.
			return nil
		})
	}

	_ = g.Wait()

	if progress && total > 0 {
		_, _ = fmt.Fprintf(errOut, "\rProcessed %d/%d\n", atomic.LoadInt64(&done), total)
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].index < results[b].index })
	return results
}

// countResults returns success and failure counts from bulk results
func countResults(results []BulkResult) (success, failure int) {
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failure++
		}
	}
	return
}

// bulkSummary is the JSON shape of a finished bulk run.
type bulkSummary struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []bulkResult `json:"results"`
}

type bulkResult struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func summarizeBulk(results []BulkResult) bulkSummary {
	summary := bulkSummary{Results: make([]bulkResult, 0, len(results))}
	summary.Succeeded, summary.Failed = countResults(results)
	for _, r := range results {
		item := bulkResult{Key: r.Key, Success: r.Success, Data: r.Data}
		if r.Error != nil {
			item.Error = r.Error.Error()
		}
		summary.Results = append(summary.Results, item)
	}
	return summary
}

// bulkError is returned when at least one operation of a bulk run failed.
func bulkError(results []BulkResult) error {
	_, failed := countResults(results)
	if failed == 0 {
		return nil
	}
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("%d of %d operations failed; first error (%s): %w", failed, len(results), r.Key, r.Error)
		}
	}
	return nil
}

func newBulkTable(cmd *cobra.Command, headers ...string) *outfmt.Table {
	return outfmt.NewTable(cmd.OutOrStdout(), headers...)
}

// bulkCell is the data of a successful result or its error message.
func bulkCell(r BulkResult) string {
	if !r.Success {
		return "error: " + r.Error.Error()
	}
	return cellValue(r.Data)
}
