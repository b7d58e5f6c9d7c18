package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCmd(t *testing.T) {
	cfg := writeConfig(t, writeDocs(t))

	out, err := execute(t, "", "--config", cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunks:     0")
	assert.Contains(t, out, "Store:      sqlite (")
	assert.Contains(t, out, "Embedder:   hashing")
	assert.Contains(t, out, "Dimensions: 384")
	assert.NotContains(t, out, "unreachable")

	_, err = execute(t, "", "--config", cfg, "ingest")
	require.NoError(t, err)
	out, err = execute(t, "", "--config", cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunks:     2")
}

func TestStatsCmd_UnreachableOllama(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "caserag.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(fmt.Sprintf(`embedder:
  type: ollama
  ollama:
    base_url: http://127.0.0.1:1
    timeout_secs: 2
vector_store:
  type: sqlite
  sqlite:
    path: %s
`, filepath.Join(dir, "index.db"))), 0o600))

	out, err := execute(t, "", "--config", cfg, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Embedder:   ollama:nomic-embed-text (unreachable:")
	assert.Contains(t, out, "cannot connect to ollama server")
}

func TestResetCmd(t *testing.T) {
	cfg := ingestedConfig(t)

	out, err := execute(t, "no\n", "--config", cfg, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Collection contains 2 chunks.")
	assert.Contains(t, out, "Aborted.")

	out, err = execute(t, "yes\n", "--config", cfg, "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Index reset (2 entries removed).")

	out, err = execute(t, "", "--config", cfg, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Index is already empty.")
}

func TestTUICmd_Registered(t *testing.T) {
	assert.Equal(t, "tui", tuiCmd.Use)
	assert.Contains(t, tuiCmd.Long, "source=")
}
