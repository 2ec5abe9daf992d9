package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const DefaultAPIKeyEnv = "OPENAI_API_KEY"

var ErrNoAPIKey = errors.New("no api key found")

// APIKeyLookup resolves the credential when the caller did not pass one:
// first the process environment, then the dotenv file.
func (c OpenAIConfig) APIKeyLookup() func() (string, error) {
	name := c.APIKeyEnv
	if name == "" {
		name = DefaultAPIKeyEnv
	}

	return func() (string, error) {
		return LookupAPIKey(name, c.DotEnvPath)
	}
}

func LookupAPIKey(name, dotenvPath string) (string, error) {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value, nil
	}

	if dotenvPath == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrNoAPIKey, name)
	}

	values, err := godotenv.Read(dotenvPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s is not set and %s does not exist", ErrNoAPIKey, name, dotenvPath)
		}
		return "", fmt.Errorf("read %s: %w", dotenvPath, err)
	}

	value := values[name]
	if value == "" {
		return "", fmt.Errorf("%w: could not find %q in %s", ErrNoAPIKey, name, dotenvPath)
	}

	return value, nil
}
