package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Database.MaxConns)
	assert.Equal(t, 3, cfg.Library.ThumbnailWorkers)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "dev", cfg.Logging.Mode)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9000
database:
  url: postgres://file
  max_conns: 7
ai:
  provider: openai
  endpoint: https://api.example.com/v1
  model: vision-1
  embedding_model: embed-1
  timeout: 5s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("ASSETLIB_DATABASE_URL", "postgres://env")
	t.Setenv("ASSETLIB_AI_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, 7, cfg.Database.MaxConns)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "secret", cfg.AI.APIKey)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  provider: carrier-pigeon\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLocalProviderNeedsModelFiles(t *testing.T) {
	cfg := &Config{AI: AIConfig{Provider: "local"}, Database: DatabaseConfig{MaxConns: 5}}
	assert.Error(t, cfg.Validate())

	cfg.AI.Local = LocalAIConfig{ModelPath: "m.onnx", TokenizerPath: "t.json"}
	assert.NoError(t, cfg.Validate())
}
