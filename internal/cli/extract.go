package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/broadlistening/internal/aggregate"
	"github.com/ppiankov/broadlistening/internal/cache"
	"github.com/ppiankov/broadlistening/internal/llm"
	"github.com/ppiankov/broadlistening/internal/logger"
	"github.com/ppiankov/broadlistening/internal/metrics"
	"github.com/ppiankov/broadlistening/internal/model"
	"github.com/ppiankov/broadlistening/internal/pipeline"
	"github.com/ppiankov/broadlistening/internal/worker"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [input.csv]",
	Short: "Extract arguments from a comment table",
	Long: `Extract reads a CSV of comments (comment-id, comment-body and any
configured property columns), asks the language model for the arguments in
each comment, and writes args.csv and relations.csv to <output-dir>/<dataset>/.

Comments are sent in combined requests of a few at a time; when a combined
reply cannot be used, each comment in it is retried on its own.

Example:
  broadlistening extract comments.csv --dataset city-survey --prompt-file prompts/extraction.txt
  broadlistening extract comments.csv --provider anthropic --model claude-3-5-haiku-20241022
  broadlistening extract comments.csv --limit 50 --cache`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()

	// Input/output flags
	flags.String("dataset", "", "dataset name (output subdirectory)")
	flags.String("output-dir", "", "output directory")
	flags.StringSlice("properties", nil, "extra input columns to require and pass through")
	flags.Bool("strip-markup", false, "remove HTML markup from comment bodies")
	flags.Int("limit", 0, "process at most this many comments (0 = all)")

	// Extraction flags
	flags.String("model", "", "model name")
	flags.String("prompt", "", "extraction prompt")
	flags.String("prompt-file", "", "read the extraction prompt from a file")
	flags.Int("workers", 0, "fallback pool width and default chunk size")
	flags.Duration("fallback-timeout", 0, "shared timeout for per-comment fallback requests")

	// LLM flags
	flags.String("provider", "", "LLM provider (openai, azure, anthropic, ollama)")
	flags.String("base-url", "", "custom API base URL")
	flags.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	flags.Bool("cache", false, "cache model responses on disk")
	flags.Float64("rps", 0, "max model requests per second (0 = unlimited)")

	// Metrics
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile")

	for key, flag := range map[string]string{
		"dataset":                        "dataset",
		"output.dir":                     "output-dir",
		"input.properties":               "properties",
		"input.strip_markup":             "strip-markup",
		"extraction.limit":               "limit",
		"extraction.model":               "model",
		"extraction.prompt":              "prompt",
		"extraction.prompt_file":         "prompt-file",
		"extraction.workers":             "workers",
		"extraction.fallback_timeout":    "fallback-timeout",
		"llm.provider":                   "provider",
		"llm.base_url":                   "base-url",
		"llm.http_proxy":                 "http-proxy",
		"llm.https_proxy":                "https-proxy",
		"cache.enabled":                  "cache",
		"rate_limit.requests_per_second": "rps",
		"metrics.file":                   "metrics-file",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Input.Path = args[0]
	}
	if cfg.Input.Path == "" {
		return fmt.Errorf("no input file: pass one as an argument or set input.path")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	m := metrics.New()

	client, err := newClient(cfg, log, m)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, client,
		pipeline.WithLogger(logger.Component(log, "pipeline")),
		pipeline.WithProgress(pipeline.NewLogProgress(logger.Component(log, "progress"))),
		pipeline.WithMetrics(m),
	)

	summary, err := p.Run(ctx)
	if errors.Is(err, aggregate.ErrEmptyArguments) {
		return fmt.Errorf("%w: check the prompt and model access", err)
	}
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Processed %d comments\n", summary.Comments)
	fmt.Fprintf(out, "✓ Wrote %d arguments: %s\n", summary.Arguments, summary.ArgumentsPath)
	fmt.Fprintf(out, "✓ Wrote %d relations: %s\n", summary.Relations, summary.RelationsPath)

	return nil
}

// newClient builds the provider client and wraps it with the configured
// decorators. Cache hits skip the rate limiter.
func newClient(cfg *model.Config, log zerolog.Logger, m *metrics.Metrics) (llm.Client, error) {
	provider := strings.ToLower(cfg.LLM.Provider)

	if cfg.LLM.APIKey == "" {
		if env := llm.APIKeyEnv(provider); env != "" {
			cfg.LLM.APIKey = os.Getenv(env)
			if cfg.LLM.APIKey == "" {
				return nil, fmt.Errorf("%s environment variable not set", env)
			}
		}
	}
	if provider == "ollama" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	base, err := llm.NewClient(llm.ConfigFromModel(cfg.LLM, cfg.Extraction.Model))
	if err != nil {
		return nil, fmt.Errorf("init LLM provider: %w", err)
	}

	var client llm.Client = llm.NewInstrumentedClient(base, m)

	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := worker.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		client = llm.NewRateLimitedClient(client, limiter)
	}

	if cfg.Cache.Enabled {
		responses := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		client = llm.NewCachedClient(client, responses, 0, logger.Component(log, "cache"), m)
	}

	return client, nil
}
