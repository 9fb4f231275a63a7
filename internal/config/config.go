package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config is the process configuration: where the backend lives, which
// planner to use, and how the local server and logging behave. It is
// distinct from user settings, which are store state and persisted per
// user through the settings repository.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// ServerURL is the base URL of the backend serving the project
	// resource and the planning endpoint.
	ServerURL string `json:"serverUrl,omitempty"`

	// Planner is the default planner ID for new sessions.
	Planner string `json:"planner,omitempty"`

	// Port is the listen port when running the local server.
	Port int `json:"port,omitempty"`

	// DataDir overrides where project documents and settings are stored.
	DataDir string `json:"dataDir,omitempty"`

	Log LogConfig `json:"log,omitempty"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Pretty bool   `json:"pretty,omitempty"`
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/planstudio/)
// 2. Project config (./planstudio.json[c], ./.planstudio/)
// 3. PLANSTUDIO_CONFIG file
// 4. PLANSTUDIO_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*Config, error) {
	config := &Config{
		Planner: "default",
		Port:    8080,
	}

	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Global config
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "planstudio.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "planstudio.jsonc"), globalPath)

	// 2. Project config
	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".planstudio")
		loadOnce(filepath.Join(directory, "planstudio.json"), directory)
		loadOnce(filepath.Join(directory, "planstudio.jsonc"), directory)
		loadOnce(filepath.Join(projectConfigDir, "planstudio.json"), projectConfigDir)
		loadOnce(filepath.Join(projectConfigDir, "planstudio.jsonc"), projectConfigDir)
	}

	// 3. PLANSTUDIO_CONFIG file override
	if configPath := os.Getenv("PLANSTUDIO_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	// 4. PLANSTUDIO_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("PLANSTUDIO_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig Config
		if err := json.Unmarshal([]byte(configContent), &inlineConfig); err == nil {
			mergeConfig(config, &inlineConfig)
		}
	}

	// 5. Environment variables (highest priority)
	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.ServerURL != "" {
		target.ServerURL = source.ServerURL
	}
	if source.Planner != "" {
		target.Planner = source.Planner
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.Log.Level != "" {
		target.Log.Level = source.Log.Level
	}
	if source.Log.Pretty {
		target.Log.Pretty = true
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *Config) {
	if url := os.Getenv("PLANSTUDIO_SERVER_URL"); url != "" {
		config.ServerURL = url
	}
	if planner := os.Getenv("PLANSTUDIO_PLANNER"); planner != "" {
		config.Planner = planner
	}
	if port := os.Getenv("PLANSTUDIO_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			config.Port = n
		}
	}
	if level := os.Getenv("PLANSTUDIO_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if dir := os.Getenv("PLANSTUDIO_DATA_DIR"); dir != "" {
		config.DataDir = dir
	}
}

// Save saves the configuration to a file.
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// StorageDir returns the directory backing project documents and
// settings, honoring the DataDir override.
func (c *Config) StorageDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return GetPaths().StoragePath()
}
