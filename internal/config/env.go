package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// envOverrides mirrors the subset of Config that may come from CHATDESK_*
// variables. Pointers distinguish "unset" from zero values.
type envOverrides struct {
	Bind           *string `envconfig:"BIND"`
	HTTPBind       *string `envconfig:"HTTP_BIND"`
	WebDir         *string `envconfig:"WEB_DIR"`
	DataDir        *string `envconfig:"DATA_DIR"`
	Endpoint       *string `envconfig:"ENDPOINT"`
	TimeoutSeconds *int    `envconfig:"TIMEOUT_SECONDS"`
	MaxConcurrent  *int    `envconfig:"MAX_CONCURRENT"`
	Model          *string `envconfig:"MODEL"`
	SystemMessage  *string `envconfig:"SYSTEM_MESSAGE"`
	MaxContext     *int    `envconfig:"MAX_CONTEXT"`
	LogRequests    *bool   `envconfig:"DEBUG_LOG_REQUESTS"`
	LogResponses   *bool   `envconfig:"DEBUG_LOG_RESPONSES"`
	LogDirectory   *string `envconfig:"DEBUG_LOG_DIRECTORY"`
}

// ApplyEnv overlays CHATDESK_* environment variables on cfg.
func ApplyEnv(cfg Config) (Config, error) {
	var env envOverrides
	if err := envconfig.Process("chatdesk", &env); err != nil {
		return cfg, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	setString(&cfg.Bind, env.Bind)
	setString(&cfg.HTTPBind, env.HTTPBind)
	setString(&cfg.WebDir, env.WebDir)
	setString(&cfg.DataDir, env.DataDir)
	setString(&cfg.OpenAI.Endpoint, env.Endpoint)
	setString(&cfg.Model.Version, env.Model)
	setString(&cfg.Model.SystemMessage, env.SystemMessage)
	setString(&cfg.Debug.LogDirectory, env.LogDirectory)

	if env.TimeoutSeconds != nil {
		cfg.OpenAI.TimeoutSeconds = *env.TimeoutSeconds
	}
	if env.MaxConcurrent != nil {
		cfg.OpenAI.MaxConcurrent = *env.MaxConcurrent
	}
	if env.MaxContext != nil {
		cfg.Model.MaxContext = *env.MaxContext
	}
	if env.LogRequests != nil {
		cfg.Debug.LogRequests = *env.LogRequests
	}
	if env.LogResponses != nil {
		cfg.Debug.LogResponses = *env.LogResponses
	}

	return cfg, nil
}

func setString(dst *string, value *string) {
	if value != nil && *value != "" {
		*dst = *value
	}
}
