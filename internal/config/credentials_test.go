package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupAPIKey_Environment(t *testing.T) {
	t.Setenv("CHATDESK_TEST_KEY", "sk-env")

	key, err := LookupAPIKey("CHATDESK_TEST_KEY", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", key)
}

func TestLookupAPIKey_DotEnv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("OTHER=1\nCHATDESK_TEST_KEY=sk-dotenv\n"), 0o600))

	key, err := LookupAPIKey("CHATDESK_TEST_KEY", dotenv)
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", key)
}

func TestLookupAPIKey_EnvironmentWinsOverDotEnv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("CHATDESK_TEST_KEY=sk-dotenv\n"), 0o600))
	t.Setenv("CHATDESK_TEST_KEY", "sk-env")

	key, err := LookupAPIKey("CHATDESK_TEST_KEY", dotenv)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", key)
}

func TestLookupAPIKey_Missing(t *testing.T) {
	dir := t.TempDir()

	_, err := LookupAPIKey("CHATDESK_TEST_MISSING", filepath.Join(dir, ".env"))
	assert.ErrorIs(t, err, ErrNoAPIKey)

	dotenv := filepath.Join(dir, "present.env")
	require.NoError(t, os.WriteFile(dotenv, []byte("SOMETHING_ELSE=1\n"), 0o600))
	_, err = LookupAPIKey("CHATDESK_TEST_MISSING", dotenv)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Contains(t, err.Error(), "CHATDESK_TEST_MISSING")

	_, err = LookupAPIKey("CHATDESK_TEST_MISSING", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestAPIKeyLookupUsesConfiguredName(t *testing.T) {
	t.Setenv("CHATDESK_TEST_NAMED", "sk-named")

	lookup := OpenAIConfig{APIKeyEnv: "CHATDESK_TEST_NAMED"}.APIKeyLookup()
	key, err := lookup()
	require.NoError(t, err)
	assert.Equal(t, "sk-named", key)
}
