// Package pipeline runs argument extraction over a comment table and
// persists the argument and relation tables.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ppiankov/broadlistening/internal/aggregate"
	"github.com/ppiankov/broadlistening/internal/extract"
	"github.com/ppiankov/broadlistening/internal/llm"
	"github.com/ppiankov/broadlistening/internal/metrics"
	"github.com/ppiankov/broadlistening/internal/model"
	"github.com/ppiankov/broadlistening/internal/parse"
	"github.com/ppiankov/broadlistening/internal/table"
)

// ErrNoPrompt is returned when neither a prompt nor a prompt file is configured
var ErrNoPrompt = errors.New("extraction prompt is empty")

// Pipeline orchestrates one extraction run
type Pipeline struct {
	config   *model.Config
	client   llm.Client
	log      zerolog.Logger
	progress Progress
	metrics  *metrics.Metrics
	runID    string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the run logger
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithProgress sets the progress reporter
func WithProgress(progress Progress) Option {
	return func(p *Pipeline) { p.progress = progress }
}

// WithMetrics records run metrics into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRunID overrides the generated run id
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// New creates a pipeline for cfg using client for all model calls
func New(cfg *model.Config, client llm.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:   cfg,
		client:   client,
		log:      zerolog.Nop(),
		progress: NopProgress{},
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("run_id", p.runID).Logger()
	return p
}

// Summary describes a completed run
type Summary struct {
	RunID         string
	Dataset       string
	Comments      int
	Arguments     int
	Relations     int
	ArgumentsPath string
	RelationsPath string
	Duration      time.Duration
}

// Run extracts arguments chunk by chunk and writes both tables once at the
// end. Nothing is written if no argument was extracted.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	cfg := p.config

	prompt, err := LoadPrompt(cfg.Extraction)
	if err != nil {
		return nil, err
	}

	// 1. Load input (validates configured columns before any model call)
	comments, err := table.LoadComments(cfg.Input.Path, table.Columns{
		ID:         cfg.Input.IDColumn,
		Body:       cfg.Input.BodyColumn,
		Properties: cfg.Input.Properties,
	}, cfg.Input.StripMarkup)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	if limit := cfg.Extraction.Limit; limit > 0 && limit < len(comments) {
		comments = comments[:limit]
	}

	p.log.Info().
		Str("dataset", cfg.Dataset).
		Str("model", cfg.Extraction.Model).
		Int("comments", len(comments)).
		Msg("starting extraction")

	extractor := extract.New(p.client, parse.New(p.log), extract.Options{
		SubBatchSize:    cfg.Extraction.SubBatchSize,
		Workers:         cfg.Extraction.Workers,
		FallbackTimeout: cfg.Extraction.FallbackTimeout,
		Retries:         cfg.Extraction.Retries,
	}, p.log, p.metrics)
	agg := aggregate.New()

	// 2. Extract in chunks, feeding the aggregator in comment order
	p.progress.Start(len(comments))
	chunkLen := cfg.Extraction.ChunkLen()
	for i := 0; i < len(comments); i += chunkLen {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction interrupted: %w", err)
		}

		chunk := comments[i:min(i+chunkLen, len(comments))]
		bodies := make([]string, len(chunk))
		for j, c := range chunk {
			bodies[j] = c.Body
		}

		results := extractor.ExtractBatch(ctx, bodies, prompt, cfg.Extraction.Model, cfg.Extraction.Workers)
		for j, c := range chunk {
			agg.Add(c.ID, results[j])
		}
		p.progress.Advance(len(chunk))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction interrupted: %w", err)
	}

	// 3. Aggregate
	tables, err := agg.Result()
	if err != nil {
		return nil, err
	}
	p.metrics.SetTables(len(tables.Arguments), len(tables.Relations))

	// 4. Persist once
	dir := filepath.Join(cfg.Output.Dir, cfg.Dataset)
	summary := &Summary{
		RunID:         p.runID,
		Dataset:       cfg.Dataset,
		Comments:      len(comments),
		Arguments:     len(tables.Arguments),
		Relations:     len(tables.Relations),
		ArgumentsPath: filepath.Join(dir, table.ArgumentsFile),
		RelationsPath: filepath.Join(dir, table.RelationsFile),
	}
	if err := table.WriteArguments(summary.ArgumentsPath, tables.Arguments); err != nil {
		return nil, fmt.Errorf("write arguments: %w", err)
	}
	if err := table.WriteRelations(summary.RelationsPath, tables.Relations); err != nil {
		return nil, fmt.Errorf("write relations: %w", err)
	}

	if path := cfg.Metrics.File; path != "" {
		if err := p.metrics.WriteTextfile(path); err != nil {
			p.log.Warn().Err(err).Msg("failed to export metrics")
		}
	}

	summary.Duration = time.Since(start)
	p.log.Info().
		Int("arguments", summary.Arguments).
		Int("relations", summary.Relations).
		Dur("duration", summary.Duration).
		Msg("extraction complete")

	return summary, nil
}

// LoadPrompt returns the configured prompt, reading PromptFile when set
func LoadPrompt(cfg model.ExtractionConfig) (string, error) {
	prompt := cfg.Prompt
	if cfg.PromptFile != "" {
		data, err := os.ReadFile(cfg.PromptFile)
		if err != nil {
			return "", fmt.Errorf("read prompt file: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", ErrNoPrompt
	}
	return prompt, nil
}
