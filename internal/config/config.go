package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultBind     = "127.0.0.1:50061"
	DefaultHTTPBind = "127.0.0.1:8000"
)

type OpenAIConfig struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	APIKeyEnv      string `toml:"api_key_env"`
	DotEnvPath     string `toml:"dotenv_path"`
	MaxConcurrent  int    `toml:"max_concurrent"`
}

func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ModelConfig struct {
	Version       string `toml:"version"`
	SystemMessage string `toml:"system_message"`
	MaxContext    int    `toml:"max_context"`
}

type DebugConfig struct {
	LogRequests  bool   `toml:"log_requests"`
	LogResponses bool   `toml:"log_responses"`
	LogDirectory string `toml:"log_directory"`
}

type Config struct {
	Bind     string       `toml:"bind"`
	HTTPBind string       `toml:"http_bind"`
	WebDir   string       `toml:"web_dir"`
	DataDir  string       `toml:"data_dir"`
	OpenAI   OpenAIConfig `toml:"openai"`
	Model    ModelConfig  `toml:"model"`
	Debug    DebugConfig  `toml:"debug"`
}

func Default() Config {
	defaultDataDir := defaultDataDir()
	return Config{
		Bind:     DefaultBind,
		HTTPBind: DefaultHTTPBind,
		WebDir:   "",
		DataDir:  defaultDataDir,
		OpenAI: OpenAIConfig{
			Endpoint:       "https://api.openai.com/v1",
			TimeoutSeconds: 0,
			APIKeyEnv:      DefaultAPIKeyEnv,
			DotEnvPath:     ".env",
			MaxConcurrent:  4,
		},
		Model: ModelConfig{
			Version:       "gpt-4o-mini",
			SystemMessage: "default",
			MaxContext:    100000,
		},
		Debug: DebugConfig{
			LogRequests:  false,
			LogResponses: false,
			LogDirectory: filepath.Join(defaultDataDir, "debug"),
		},
	}
}

// LoadOrCreate reads the config at path, writing the defaults there first if
// the file does not exist yet. Environment overrides are applied last.
func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return config, err
			}

			configData, err := toml.Marshal(config)
			if err != nil {
				return config, err
			}

			if err := os.WriteFile(path, configData, 0o644); err != nil {
				return config, err
			}

			return ApplyEnv(config)
		}

		return config, err
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, err
	}

	config, err = ApplyEnv(config)
	if err != nil {
		return config, err
	}

	return normalize(config)
}

func normalize(config Config) (Config, error) {
	config.DataDir = expandPath(config.DataDir)
	config.WebDir = expandPath(config.WebDir)
	config.Debug.LogDirectory = expandPath(config.Debug.LogDirectory)
	config.OpenAI.DotEnvPath = expandPath(config.OpenAI.DotEnvPath)
	config.OpenAI.Endpoint = strings.TrimSpace(config.OpenAI.Endpoint)
	config.Bind = strings.TrimSpace(config.Bind)
	config.HTTPBind = strings.TrimSpace(config.HTTPBind)

	if config.OpenAI.Endpoint == "" {
		return config, errors.New("openai endpoint is required")
	}

	if config.Bind == "" {
		config.Bind = DefaultBind
	}

	if config.OpenAI.APIKeyEnv == "" {
		config.OpenAI.APIKeyEnv = DefaultAPIKeyEnv
	}

	if config.Model.MaxContext < 0 {
		return config, errors.New("model max_context must be positive")
	}

	return config, nil
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return ".chatdesk"
	}

	return filepath.Join(homeDir, ".chatdesk")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
