package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/broadlistening/internal/aggregate"
	"github.com/ppiankov/broadlistening/internal/llm"
	"github.com/ppiankov/broadlistening/internal/metrics"
	"github.com/ppiankov/broadlistening/internal/model"
	"github.com/ppiankov/broadlistening/internal/table"
)

// splitClient answers deterministically: every comment yields its
// ";"-separated parts as arguments
type splitClient struct {
	calls atomic.Int32
	empty bool
}

func (c *splitClient) Name() string { return "split" }

func (c *splitClient) Send(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.calls.Add(1)
	content := req.Messages[len(req.Messages)-1].Content

	groups := map[string][]string{}
	if !c.empty {
		for _, line := range strings.Split(content, "\n") {
			idx, text, ok := strings.Cut(strings.TrimPrefix(line, "- "), ": ")
			if !ok {
				continue
			}
			for _, part := range strings.Split(text, ";") {
				groups[idx] = append(groups[idx], strings.TrimSpace(part))
			}
		}
	}
	raw, _ := json.Marshal(groups)
	return &llm.Response{Text: string(raw)}, nil
}

const input = `comment-id,comment-body,region
c1,more parks; safer roads,north
c2,safer roads,south
c3,more parks; quiet nights; safer roads,east
c4,,west
c5,bus lanes,north
`

func testConfig(t *testing.T, outDir string) *model.Config {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "comments.csv")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o644))

	cfg := model.DefaultConfig()
	cfg.Dataset = "city"
	cfg.Input.Path = path
	cfg.Input.Properties = []string{"region"}
	cfg.Output.Dir = outDir
	cfg.Extraction.Prompt = "Extract arguments as JSON."
	cfg.Extraction.Workers = 2
	cfg.Extraction.SubBatchSize = 2
	cfg.Extraction.FallbackTimeout = time.Second
	return cfg
}

type recordingProgress struct {
	mu       sync.Mutex
	total    int
	advances []int
}

func (p *recordingProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

func (p *recordingProgress) Advance(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advances = append(p.advances, n)
}

func TestRun_WritesTables(t *testing.T) {
	out := t.TempDir()
	progress := &recordingProgress{}

	summary, err := New(testConfig(t, out), &splitClient{}, WithProgress(progress), WithRunID("run-1")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 5, summary.Comments)
	assert.Equal(t, 4, summary.Arguments)
	assert.Equal(t, 7, summary.Relations)
	assert.Equal(t, filepath.Join(out, "city", table.ArgumentsFile), summary.ArgumentsPath)

	args, err := os.ReadFile(summary.ArgumentsPath)
	require.NoError(t, err)
	assert.Equal(t, "arg-id,argument\n"+
		"Ac1_0,more parks\n"+
		"Ac1_1,safer roads\n"+
		"Ac3_1,quiet nights\n"+
		"Ac5_0,bus lanes\n", string(args))

	relations, err := os.ReadFile(summary.RelationsPath)
	require.NoError(t, err)
	assert.Equal(t, "arg-id,comment-id\n"+
		"Ac1_0,c1\n"+
		"Ac1_1,c1\n"+
		"Ac1_1,c2\n"+
		"Ac1_0,c3\n"+
		"Ac3_1,c3\n"+
		"Ac1_1,c3\n"+
		"Ac5_0,c5\n", string(relations))

	assert.Equal(t, 5, progress.total)
	assert.Equal(t, []int{2, 2, 1}, progress.advances)
}

func TestRun_Reproducible(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()

	s1, err := New(testConfig(t, first), &splitClient{}).Run(context.Background())
	require.NoError(t, err)
	s2, err := New(testConfig(t, second), &splitClient{}).Run(context.Background())
	require.NoError(t, err)

	for _, pair := range [][2]string{
		{s1.ArgumentsPath, s2.ArgumentsPath},
		{s1.RelationsPath, s2.RelationsPath},
	} {
		a, err := os.ReadFile(pair[0])
		require.NoError(t, err)
		b, err := os.ReadFile(pair[1])
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
	assert.NotEqual(t, s1.RunID, s2.RunID)
}

func TestRun_EmptyArguments(t *testing.T) {
	out := t.TempDir()

	_, err := New(testConfig(t, out), &splitClient{empty: true}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, aggregate.ErrEmptyArguments))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "no artifacts may be written for an empty run")
}

func TestRun_MissingColumnBeforeModelCalls(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Input.Properties = []string{"age"}
	client := &splitClient{}

	_, err := New(cfg, client).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, table.ErrMissingColumn))
	assert.False(t, errors.Is(err, aggregate.ErrEmptyArguments))
	assert.EqualValues(t, 0, client.calls.Load())
}

func TestRun_DuplicateIDBeforeModelCalls(t *testing.T) {
	out := t.TempDir()
	cfg := testConfig(t, out)
	cfg.Input.Properties = nil
	require.NoError(t, os.WriteFile(cfg.Input.Path, []byte("comment-id,comment-body\n1,alpha\n1,beta\n"), 0o644))
	client := &splitClient{}

	_, err := New(cfg, client).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, table.ErrDuplicateID))
	assert.EqualValues(t, 0, client.calls.Load())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_Limit(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Extraction.Limit = 2

	summary, err := New(cfg, &splitClient{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Comments)
	assert.Equal(t, 2, summary.Arguments)
	assert.Equal(t, 3, summary.Relations)
}

func TestRun_MetricsTextfile(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Metrics.File = filepath.Join(t.TempDir(), "run.prom")

	_, err := New(cfg, &splitClient{}, WithMetrics(metrics.New())).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.Metrics.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "broadlistening_arguments 4")
}

func TestRun_Cancelled(t *testing.T) {
	out := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig(t, out), &splitClient{}).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadPrompt(t *testing.T) {
	_, err := LoadPrompt(model.ExtractionConfig{Prompt: "  \n"})
	assert.True(t, errors.Is(err, ErrNoPrompt))

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o644))

	prompt, err := LoadPrompt(model.ExtractionConfig{Prompt: "inline", PromptFile: path})
	require.NoError(t, err)
	assert.Equal(t, "from file", prompt)

	_, err = LoadPrompt(model.ExtractionConfig{PromptFile: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestLogProgress(t *testing.T) {
	var buf strings.Builder
	p := NewLogProgress(zerolog.New(&buf))

	p.Start(4)
	p.Advance(2)
	p.Advance(2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], `"done":4`)
	assert.Contains(t, lines[2], `"percent":100`)
}
