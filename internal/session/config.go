package session

import (
	"strings"

	"github.com/erg0nix/chatdesk/internal/models"
)

const (
	DefaultSystemSentinel = "default"
	DefaultSystemMessage  = "You are a helpful assistant."
	DefaultMaxContext     = 100000
)

// ModelConfig is fixed once an engine is built. Changing the system message
// replaces the whole value.
type ModelConfig struct {
	Model         string
	SystemMessage string
	MaxContext    int
	APIKey        string
}

// Options are the caller-facing construction inputs. Zero values select defaults.
type Options struct {
	Model         string
	SystemMessage string
	APIKey        string
	MaxContext    int

	// LookupAPIKey is consulted when APIKey is empty.
	LookupAPIKey func() (string, error)
}

// NewModelConfig validates opts and fills in defaults.
func NewModelConfig(opts Options) (ModelConfig, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = models.Default
	}

	if !models.IsSupported(model) {
		return ModelConfig{}, NewError(KindConfiguration,
			"model version provided is not supported, got %s; expected one of %v", model, models.Supported())
	}

	apiKey := opts.APIKey
	if apiKey == "" && opts.LookupAPIKey != nil {
		resolved, err := opts.LookupAPIKey()
		if err != nil {
			return ModelConfig{}, WrapError(err, KindConfiguration, "resolve api key")
		}
		apiKey = resolved
	}

	if apiKey == "" {
		return ModelConfig{}, NewError(KindConfiguration, "must provide an api key or configure one in the environment")
	}

	maxContext := opts.MaxContext
	if maxContext == 0 {
		maxContext = DefaultMaxContext
	}

	if maxContext < 0 {
		return ModelConfig{}, NewError(KindConfiguration, "max context must be positive, got %d", maxContext)
	}

	return ModelConfig{
		Model:         model,
		SystemMessage: resolveSystemMessage(opts.SystemMessage),
		MaxContext:    maxContext,
		APIKey:        apiKey,
	}, nil
}

func (c ModelConfig) validate() error {
	if !models.IsSupported(c.Model) {
		return NewError(KindConfiguration, "model %q is not supported", c.Model)
	}
	if c.APIKey == "" {
		return NewError(KindConfiguration, "api key is required")
	}
	if c.MaxContext <= 0 {
		return NewError(KindConfiguration, "max context must be positive, got %d", c.MaxContext)
	}
	return nil
}

func (c ModelConfig) withSystemMessage(text string) ModelConfig {
	c.SystemMessage = text
	return c
}

func resolveSystemMessage(text string) string {
	if text == "" || text == DefaultSystemSentinel {
		return DefaultSystemMessage
	}
	return text
}
