package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caserag/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPaginate_FormFeeds(t *testing.T) {
	l := New(0)
	pages := l.Paginate("policy.txt", "page one\fpage two\f   \fpage four")

	require.Len(t, pages, 3)
	assert.Equal(t, domain.Page{SourceDocumentID: "policy.txt", PageNumber: 1, Text: "page one"}, pages[0])
	assert.Equal(t, 2, pages[1].PageNumber)
	assert.Equal(t, 4, pages[2].PageNumber, "blank pages keep their number")
}

func TestPaginate_SimulatedPages(t *testing.T) {
	l := New(10)
	pages := l.Paginate("doc.md", strings.Repeat("ab", 12))

	require.Len(t, pages, 3)
	assert.Equal(t, "ababababab", pages[0].Text)
	assert.Equal(t, "abab", pages[2].Text)
	assert.Equal(t, 3, pages[2].PageNumber)
}

func TestPaginate_CountsRunes(t *testing.T) {
	l := New(3)
	pages := l.Paginate("x.txt", "ééééé")
	require.Len(t, pages, 2)
	assert.Equal(t, "ééé", pages[0].Text)
	assert.Equal(t, "éé", pages[1].Text)
}

func TestPaginate_Empty(t *testing.T) {
	assert.Empty(t, New(0).Paginate("x.txt", ""))
	assert.Empty(t, New(0).Paginate("x.txt", " \n\t "))
}

func TestLoadFile_NormalizesLineEndings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Florida_Flood_Guidelines.txt", "line one\r\nline two")

	pages, err := New(0).LoadFile(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Florida_Flood_Guidelines.txt", pages[0].SourceDocumentID)
	assert.Equal(t, "line one\nline two", pages[0].Text)
}

func TestLoad_DirectoryAndSkips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "beta text")
	writeFile(t, dir, "a.md", "alpha text")
	writeFile(t, dir, "nested/c.txt", "gamma\fdelta")
	writeFile(t, dir, "scan.pdf", "%PDF-1.4")
	writeFile(t, dir, "empty.txt", "   ")

	res, err := New(0).Load([]string{dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.md", "b.txt", "nested/c.txt"}, res.Documents)
	assert.Len(t, res.Pages, 4)
	assert.Len(t, res.Skipped, 2)
	assert.Equal(t, "a.md", res.Pages[0].SourceDocumentID)
}

func TestLoad_GlobAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.txt", "beta")
	writeFile(t, dir, "c.md", "gamma")

	res, err := New(0).Load([]string{filepath.Join(dir, "*.txt"), a})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, res.Documents)
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := New(0).Load([]string{filepath.Join(t.TempDir(), "missing.txt")})
	assert.Error(t, err)
}

func TestLoad_SameNameInSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "florida/guidelines.txt", "Flood claims in Florida need notice.")
	writeFile(t, dir, "texas/guidelines.txt", "Hail claims in Texas need photos.")

	res, err := New(0).Load([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"florida/guidelines.txt", "texas/guidelines.txt"}, res.Documents)
	require.Len(t, res.Pages, 2)
	assert.NotEqual(t,
		domain.ChunkID(res.Pages[0].SourceDocumentID, 1, 0),
		domain.ChunkID(res.Pages[1].SourceDocumentID, 1, 0))
}

func TestLoad_RejectsCollidingSourceIDs(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		args  func(dir string) []string
	}{
		{
			name:  "same base name named directly",
			files: []string{"florida/guidelines.txt", "texas/guidelines.txt"},
			args: func(dir string) []string {
				return []string{filepath.Join(dir, "florida", "guidelines.txt"), filepath.Join(dir, "texas", "guidelines.txt")}
			},
		},
		{
			name:  "ids equal after sanitising",
			files: []string{"florida/guidelines.txt", "florida_guidelines.txt"},
			args:  func(dir string) []string { return []string{dir} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, dir, f, "Guideline text long enough to keep.")
			}
			_, err := New(0).Load(tt.args(dir))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), "same source document id")
		})
	}
}
