package extract

import (
	"context"

	"github.com/ppiankov/broadlistening/internal/worker"
)

// itemJob extracts one comment inside the fallback pool
type itemJob struct {
	extractor *Extractor
	text      string
	prompt    string
	model     string
}

type itemResult struct {
	items []string
	err   error
}

func (r itemResult) GetError() error {
	return r.err
}

// Execute runs the single-item request bound to the pool's shared context
func (j itemJob) Execute(ctx context.Context) worker.Result {
	items, err := j.extractor.extractOne(ctx, j.text, j.prompt, j.model)
	return itemResult{items: items, err: err}
}

// fallback extracts each comment separately on a pool of the given width.
// All requests share one deadline. A position gets its result only when its
// request finished in time without error; otherwise it stays empty.
func (e *Extractor) fallback(ctx context.Context, batch []string, prompt, model string, workers int) [][]string {
	pool := worker.NewPool(workers)
	for _, text := range batch {
		pool.Submit(itemJob{
			extractor: e,
			text:      text,
			prompt:    prompt,
			model:     model,
		})
	}

	outcomes := pool.Run(ctx, e.opts.FallbackTimeout)

	results := make([][]string, len(batch))
	for i, outcome := range outcomes {
		results[i] = []string{}
		e.metrics.RecordFallbackJob(outcome.Status.String())

		if err := outcome.Err(); err != nil {
			e.log.Warn().
				Err(err).
				Str("status", outcome.Status.String()).
				Str("input", batch[i]).
				Msg("fallback extraction produced no result")
			continue
		}
		if res, ok := outcome.Result.(itemResult); ok {
			results[i] = res.items
		}
	}

	return results
}
