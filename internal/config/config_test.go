package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/investments.json", cfg.Snapshot.Path)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SonnetModel)
	assert.Equal(t, "https://diavgeia.gov.gr/opendata", cfg.Diavgeia.BaseURL)
	assert.Equal(t, 100, cfg.Diavgeia.PageSize)
	assert.Equal(t, 5, cfg.Diavgeia.RequestsPerSec)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.Equal(t, 200, cfg.Geocode.ThrottleMS)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Revision.Keywords)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
snapshot:
  path: /var/data/investments.json
log:
  level: debug
  format: console
server:
  port: 9090
revision:
  keywords:
    - Τροποποίηση
    - Ανάκληση
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/data/investments.json", cfg.Snapshot.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"Τροποποίηση", "Ανάκληση"}, cfg.Revision.Keywords)
	// Defaults still apply for unset values
	assert.Equal(t, 100, cfg.Diavgeia.PageSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("INVEST_LOG_LEVEL", "warn")
	t.Setenv("INVEST_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadKeywordsFileReplacesDefaults(t *testing.T) {
	dir := chTempDir(t)

	keywordsPath := filepath.Join(dir, "keywords.yaml")
	require.NoError(t, os.WriteFile(keywordsPath, []byte("- Τροποποίηση\n- ΟΡΘΗ ΕΠΑΝΑΛΗΨΗ\n"), 0644))
	yaml := "revision:\n  keywords_file: " + keywordsPath + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Τροποποίηση", "ΟΡΘΗ ΕΠΑΝΑΛΗΨΗ"}, cfg.Revision.Keywords)
}

func TestLoadKeywordsFileMissing(t *testing.T) {
	dir := chTempDir(t)

	yaml := "revision:\n  keywords_file: " + filepath.Join(dir, "absent.yaml") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadKeywordsFileEmpty(t *testing.T) {
	dir := chTempDir(t)

	keywordsPath := filepath.Join(dir, "keywords.yaml")
	require.NoError(t, os.WriteFile(keywordsPath, []byte("[]\n"), 0644))
	yaml := "revision:\n  keywords_file: " + keywordsPath + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
