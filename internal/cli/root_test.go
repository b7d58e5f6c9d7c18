package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const floridaDoc = `Flood claims in Florida require notice within 60 days of the loss.
Adjusters must document standing water and photograph every affected room.
Residential flood policies cover the structure and contents separately.`

const texasDoc = `Hail damage in Texas is assessed by roof age and material.
Adjusters inspect shingles for bruising and granule loss after each storm.
Commercial hail claims need a licensed roofer estimate.`

// writeConfig creates a config with a SQLite index in a temp dir.
func writeConfig(t *testing.T, docsDir string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "caserag.yaml")
	content := fmt.Sprintf(`chunker:
  max_size: 800
  overlap: 100
  min_length: 10
vector_store:
  type: sqlite
  sqlite:
    path: %s
retrieval:
  top_k: 3
ingest:
  documents_dir: %s
`, filepath.Join(dir, "index.db"), docsDir)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Florida_Flood_Guidelines.txt"), []byte(floridaDoc), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Texas_Hail_Guidelines.md"), []byte(texasDoc), 0o600))
	return dir
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and stdin, returning its output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "caserag", rootCmd.Use)
	assert.Contains(t, rootCmd.Long, "page citations")
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	cfg := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)

	v := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, v)
	assert.Equal(t, "false", v.DefValue)
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"ingest", "search", "stats", "reset", "tui"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: -2\n"), 0o600))

	_, err := execute(t, "", "--config", path, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Contains(t, err.Error(), "top_k")
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"yes\n": true, "YES": true, "y\n": false, "no\n": false, "": false} {
		cmd := &cobra.Command{}
		out := new(bytes.Buffer)
		cmd.SetOut(out)
		cmd.SetIn(strings.NewReader(input))

		got, err := confirm(cmd, "Reset collection?")
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
		assert.Equal(t, "Reset collection? (yes/no): ", out.String())
	}
}
