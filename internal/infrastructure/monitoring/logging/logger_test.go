package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// logTo builds a logger writing to a temp file, emits one line, and returns
// the file contents.
func logTo(t *testing.T, format string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.log")
	log, err := NewLogger(LogConfig{Level: "info", Format: format, OutputPaths: []string{path}})
	require.NoError(t, err)

	log.Info("format check", String("key", "value"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.TrimSpace(string(raw))
}

func TestNewLogger_JSONFormat(t *testing.T) {
	line := logTo(t, "json")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "format check", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	// "text" is the value the config layer documents and validates; it must
	// select the console encoder, not silently fall back to JSON.
	line := logTo(t, "text")
	assert.False(t, strings.HasPrefix(line, "{"))
	assert.Contains(t, line, "format check")
}

func TestNewLogger_ConsoleAlias(t *testing.T) {
	line := logTo(t, "console")
	assert.False(t, strings.HasPrefix(line, "{"))
	assert.Contains(t, line, "format check")
}

func TestNewLogger_UnknownFormatDefaultsToJSON(t *testing.T) {
	line := logTo(t, "banana")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
}
