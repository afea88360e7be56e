package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/broadlistening/internal/metrics"
	"github.com/ppiankov/broadlistening/internal/model"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, setDefaults(v, model.DefaultConfig()))
	v.SetEnvPrefix("BROADLISTENING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// assertDefaults compares everything but nil-vs-empty slices
func assertDefaults(t *testing.T, cfg *model.Config) {
	t.Helper()
	def := model.DefaultConfig()

	assert.Equal(t, def.Dataset, cfg.Dataset)
	assert.Equal(t, def.Input.IDColumn, cfg.Input.IDColumn)
	assert.Equal(t, def.Input.BodyColumn, cfg.Input.BodyColumn)
	assert.Empty(t, cfg.Input.Properties)
	assert.Equal(t, def.Output, cfg.Output)
	assert.Equal(t, def.Extraction, cfg.Extraction)
	assert.Equal(t, def.LLM, cfg.LLM)
	assert.Equal(t, def.Cache, cfg.Cache)
	assert.Equal(t, def.RateLimit, cfg.RateLimit)
	assert.Equal(t, def.Log, cfg.Log)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newViper(t))
	require.NoError(t, err)

	assertDefaults(t, cfg)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BROADLISTENING_EXTRACTION_WORKERS", "8")
	t.Setenv("BROADLISTENING_EXTRACTION_FALLBACK_TIMEOUT", "45s")
	t.Setenv("BROADLISTENING_DATASET", "city")

	cfg, err := loadConfig(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Extraction.Workers)
	assert.Equal(t, 45*time.Second, cfg.Extraction.FallbackTimeout)
	assert.Equal(t, "city", cfg.Dataset)
	assert.Equal(t, 5, cfg.Extraction.SubBatchSize, "untouched keys keep defaults")
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extraction:\n  model: gpt-4o\n  limit: 10\ninput:\n  properties: [region, age]\n"), 0o644))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.MergeInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Extraction.Model)
	assert.Equal(t, 10, cfg.Extraction.Limit)
	assert.Equal(t, []string{"region", "age"}, cfg.Input.Properties)
	assert.Equal(t, 30, cfg.Extraction.Workers)
}

func TestLoadConfig_Verbose(t *testing.T) {
	v := newViper(t)
	v.Set("verbose", true)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Broadlistening Configuration File")
	assert.Contains(t, string(data), "sub_batch_size: 5")
	assert.NotContains(t, string(data), "api_key")

	// The written file must load back into the defaults
	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.MergeInConfig())
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assertDefaults(t, cfg)

	assert.Error(t, writeDefaultConfig(path), "existing config must not be overwritten")
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := model.DefaultConfig()
	_, err := newClient(cfg, zerolog.Nop(), metrics.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestNewClient_Decorators(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://ollama.internal:11434")

	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.Extraction.Model = "llama3.1:8b"
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = t.TempDir()
	cfg.RateLimit.RequestsPerSecond = 2

	client, err := newClient(cfg, zerolog.Nop(), metrics.New())
	require.NoError(t, err)

	assert.Equal(t, "ollama", client.Name())
	assert.Equal(t, "http://ollama.internal:11434", cfg.LLM.BaseURL)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, "broadlistening dev\n", out.String())
}
