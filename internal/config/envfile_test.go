package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// unsetForTest clears keys for the duration of the test and removes whatever
// LoadDotEnv set afterwards.
func unsetForTest(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDotEnv_FileSyntax(t *testing.T) {
	path := writeEnvFile(t, `# calculator web client
export CALC_HOST=calc.internal
API_BASE_URL=http://${CALC_HOST}:9000
LOG_LEVEL=debug # inline comment
SESSION_KEY=abc#123
GREETING="hello world"
MULTILINE="first\nsecond"
LITERAL='raw\n${CALC_HOST}'
  # indented comment
EMPTY=
`)
	unsetForTest(t, "CALC_HOST", "API_BASE_URL", "LOG_LEVEL", "SESSION_KEY", "GREETING", "MULTILINE", "LITERAL", "EMPTY")

	require.NoError(t, LoadDotEnv(path))

	cases := map[string]string{
		"CALC_HOST":    "calc.internal",
		"API_BASE_URL": "http://calc.internal:9000",
		"LOG_LEVEL":    "debug",
		"SESSION_KEY":  "abc#123",
		"GREETING":     "hello world",
		"MULTILINE":    "first\nsecond",
		"LITERAL":      `raw\n${CALC_HOST}`,
	}
	for key, want := range cases {
		got, ok := os.LookupEnv(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	got, ok := os.LookupEnv("EMPTY")
	assert.True(t, ok, "an empty assignment still defines the variable")
	assert.Empty(t, got)
}

func TestLoadDotEnv_ProcessEnvironmentWins(t *testing.T) {
	path := writeEnvFile(t, "LISTEN_ADDR=127.0.0.1:1111\nexport LOG_FORMAT=json\n")
	t.Setenv("LISTEN_ADDR", "127.0.0.1:2222")
	t.Setenv("LOG_FORMAT", "")

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "127.0.0.1:2222", os.Getenv("LISTEN_ADDR"))
	assert.Equal(t, "", os.Getenv("LOG_FORMAT"), "a variable set to empty is still set")
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoadDotEnv_MalformedFile(t *testing.T) {
	path := writeEnvFile(t, "GREETING=\"never closed\n")
	unsetForTest(t, "GREETING")

	assert.Error(t, LoadDotEnv(path))
	_, ok := os.LookupEnv("GREETING")
	assert.False(t, ok, "nothing is applied from a file that fails to parse")
}
