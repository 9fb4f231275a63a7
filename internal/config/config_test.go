package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config source at empty temp directories so only
// what the test writes is loaded.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, ".config"))
	for _, key := range []string{
		"PLANSTUDIO_CONFIG",
		"PLANSTUDIO_CONFIG_CONTENT",
		"PLANSTUDIO_SERVER_URL",
		"PLANSTUDIO_PLANNER",
		"PLANSTUDIO_PORT",
		"PLANSTUDIO_LOG_LEVEL",
		"PLANSTUDIO_DATA_DIR",
	} {
		t.Setenv(key, "")
	}
	return tmpDir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Planner)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.ServerURL)
}

func TestLoadProjectConfig(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	content := `{
		// local backend
		"serverUrl": "http://localhost:9090",
		"planner": "fast",
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planstudio.jsonc"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9090", cfg.ServerURL)
	assert.Equal(t, "fast", cfg.Planner)
	assert.Equal(t, 8080, cfg.Port, "unset fields keep defaults")
}

func TestProjectConfigOverridesGlobal(t *testing.T) {
	tmpDir := isolate(t)
	dir := t.TempDir()

	globalDir := filepath.Join(tmpDir, ".config", "planstudio")
	require.NoError(t, os.MkdirAll(globalDir, 0755))
	global := `{"serverUrl": "http://global:8000", "planner": "slow"}`
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "planstudio.json"), []byte(global), 0644))

	project := `{"planner": "fast"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planstudio.json"), []byte(project), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://global:8000", cfg.ServerURL)
	assert.Equal(t, "fast", cfg.Planner)
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	content := `{"serverUrl": "http://file:8000", "port": 9000}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planstudio.json"), []byte(content), 0644))

	t.Setenv("PLANSTUDIO_SERVER_URL", "http://env:8000")
	t.Setenv("PLANSTUDIO_PORT", "7000")
	t.Setenv("PLANSTUDIO_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://env:8000", cfg.ServerURL)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInlineConfigContent(t *testing.T) {
	isolate(t)
	t.Setenv("PLANSTUDIO_CONFIG_CONTENT", `{"planner": "inline"}`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "inline", cfg.Planner)
}

func TestEnvInterpolation(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv("PLAN_BACKEND", "http://interp:8000")

	content := `{"serverUrl": "{env:PLAN_BACKEND}"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planstudio.json"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://interp:8000", cfg.ServerURL)
}

func TestFileInterpolation(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "planner.txt"), []byte("from-file"), 0644))
	content := `{"planner": "{file:planner.txt}"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planstudio.json"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Planner)
}

func TestStorageDir(t *testing.T) {
	isolate(t)

	cfg := &Config{}
	assert.Equal(t, GetPaths().StoragePath(), cfg.StorageDir())

	cfg.DataDir = "/tmp/custom"
	assert.Equal(t, "/tmp/custom", cfg.StorageDir())
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "planstudio.json")

	cfg := &Config{ServerURL: "http://saved:8000", Planner: "fast", Port: 9000}
	require.NoError(t, Save(cfg, path))

	t.Setenv("PLANSTUDIO_CONFIG", path)
	loaded, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://saved:8000", loaded.ServerURL)
	assert.Equal(t, "fast", loaded.Planner)
	assert.Equal(t, 9000, loaded.Port)
}
