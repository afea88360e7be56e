// Package extract turns comment bodies into lists of arguments using a
// language model, batching requests and degrading per item on failure.
package extract

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/broadlistening/internal/llm"
	"github.com/ppiankov/broadlistening/internal/metrics"
	"github.com/ppiankov/broadlistening/internal/parse"
)

// Options configures batching and fallback behaviour
type Options struct {
	// SubBatchSize is the number of comments bundled into one combined request
	SubBatchSize int

	// Workers is the fallback pool width used when a call passes zero
	Workers int

	// FallbackTimeout bounds the whole set of per-item fallback requests
	FallbackTimeout time.Duration

	// Retries is accepted for compatibility; each request is attempted once
	Retries int
}

// DefaultOptions returns the standard batching configuration
func DefaultOptions() Options {
	return Options{
		SubBatchSize:    5,
		Workers:         30,
		FallbackTimeout: 30 * time.Second,
		Retries:         1,
	}
}

// Extractor extracts arguments from comments
type Extractor struct {
	client  llm.Client
	parser  *parse.Parser
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates an extractor. Zero option fields take their defaults.
func New(client llm.Client, parser *parse.Parser, opts Options, log zerolog.Logger, m *metrics.Metrics) *Extractor {
	def := DefaultOptions()
	if opts.SubBatchSize <= 0 {
		opts.SubBatchSize = def.SubBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = def.FallbackTimeout
	}
	if opts.Retries > 1 {
		log.Debug().Int("retries", opts.Retries).Msg("retries configured; every request is attempted once")
	}

	return &Extractor{
		client:  client,
		parser:  parser,
		opts:    opts,
		log:     log,
		metrics: m,
	}
}

// ExtractBatch extracts arguments for every comment. The result has one
// entry per comment, in input order; a comment whose extraction failed maps
// to an empty list.
func (e *Extractor) ExtractBatch(ctx context.Context, comments []string, prompt, model string, workers int) [][]string {
	if workers <= 0 {
		workers = e.opts.Workers
	}

	results := make([][]string, len(comments))
	for start := 0; start < len(comments); start += e.opts.SubBatchSize {
		end := min(start+e.opts.SubBatchSize, len(comments))
		batch := comments[start:end]

		tier := e.combined(ctx, batch, prompt, model)
		if tier.ok {
			e.metrics.RecordCombined(metrics.OutcomeSuccess)
			copy(results[start:end], tier.assign(len(batch)))
			continue
		}

		e.metrics.RecordCombined(metrics.OutcomeFallback)
		e.log.Warn().
			Err(tier.reason).
			Int("offset", start).
			Int("size", len(batch)).
			Msg("combined extraction failed, falling back to per-comment requests")
		copy(results[start:end], e.fallback(ctx, batch, prompt, model, workers))
	}

	e.metrics.RecordComments(len(comments))
	return results
}

// tierOneResult is the outcome of a combined request: either the keyed
// groups the model returned, or the reason the request cannot be used.
type tierOneResult struct {
	ok     bool
	groups map[string][]string
	reason error
}

// assign maps groups onto positions by 1-based index key.
// Absent keys leave an empty result.
func (r tierOneResult) assign(n int) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = nonEmpty(r.groups[strconv.Itoa(i+1)])
	}
	return out
}

// combined issues one structured request covering the whole sub-batch
func (e *Extractor) combined(ctx context.Context, batch []string, prompt, model string) tierOneResult {
	resp, err := e.client.Send(ctx, llm.Request{
		Messages: llm.ChatMessages(prompt, formatBatch(batch)),
		Model:    model,
		JSON:     true,
	})
	if err != nil {
		return tierOneResult{reason: fmt.Errorf("combined request: %w", err)}
	}

	res, err := e.decodeCombined(resp, len(batch))
	if err != nil {
		if errors.Is(err, parse.ErrNoStructuredList) {
			e.metrics.RecordParseFailure()
		}
		e.log.Debug().Str("response", resp.Text).Msg("combined response not decodable")
		return tierOneResult{reason: fmt.Errorf("decode combined response: %w", err)}
	}
	if res.Kind != parse.KindKeyed {
		e.log.Debug().Str("response", resp.Text).Msg("combined response not keyed")
		return tierOneResult{reason: fmt.Errorf("combined response is a %s, want keyed object", res.Kind)}
	}

	return tierOneResult{ok: true, groups: res.Keyed}
}

// decodeCombined reads a combined reply. For a JSON object only the index
// keys of the sub-batch are checked; any other key is ignored.
func (e *Extractor) decodeCombined(resp *llm.Response, n int) (parse.Result, error) {
	v := resp.Value
	if v == nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Text)), &v); err != nil {
			return e.parser.Parse(resp.Text)
		}
	}

	if obj, ok := v.(map[string]any); ok {
		keys := make([]string, n)
		for i := range keys {
			keys[i] = strconv.Itoa(i + 1)
		}
		return parse.SelectKeyed(obj, keys)
	}
	return parse.FromValue(v)
}

// formatBatch enumerates comments as "- <1-based index>: <text>" lines
func formatBatch(batch []string) string {
	lines := make([]string, len(batch))
	for i, text := range batch {
		lines[i] = fmt.Sprintf("- %d: %s", i+1, text)
	}
	return strings.Join(lines, "\n")
}

// ExtractOne extracts arguments from a single comment. Failures are logged
// and yield an empty list.
func (e *Extractor) ExtractOne(ctx context.Context, text, prompt, model string) []string {
	items, err := e.extractOne(ctx, text, prompt, model)
	if err != nil {
		e.log.Warn().Err(err).Str("input", text).Msg("extraction request failed")
		return []string{}
	}
	return items
}

// extractOne returns request errors so the fallback pool can tell failed
// jobs from empty ones. Parse failures are absorbed here.
func (e *Extractor) extractOne(ctx context.Context, text, prompt, model string) ([]string, error) {
	resp, err := e.client.Send(ctx, llm.Request{
		Messages: llm.ChatMessages(prompt, text),
		Model:    model,
	})
	if err != nil {
		return nil, err
	}

	res, err := e.parser.Parse(resp.Text)
	if err != nil {
		e.metrics.RecordParseFailure()
		e.log.Error().
			Err(err).
			Str("input", text).
			Str("response", resp.Text).
			Msg("could not parse extraction response")
		return []string{}, nil
	}

	switch res.Kind {
	case parse.KindList:
		return nonEmpty(res.List), nil
	case parse.KindKeyed:
		return flattenKeyed(res.Keyed), nil
	default:
		e.log.Warn().
			Str("input", text).
			Str("response", resp.Text).
			Msg("extraction response is not a list")
		return []string{}, nil
	}
}

// flattenKeyed concatenates keyed groups in key order, numeric keys first
// and ascending
func flattenKeyed(groups map[string][]string) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)

	out := []string{}
	for _, k := range keys {
		out = append(out, nonEmpty(groups[k])...)
	}
	return out
}

func compareKeys(a, b string) int {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(ai, bi)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// nonEmpty drops empty strings, keeping order
func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
