// Package loader reads source documents from disk and splits them into pages.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"caserag/internal/domain"
	"caserag/internal/logger"
)

// DefaultPageSize is the simulated page length, in runes, for documents
// without form-feed page breaks.
const DefaultPageSize = 2000

// pageBreak separates physical pages in plain-text exports.
const pageBreak = "\f"

var supported = map[string]bool{".txt": true, ".md": true, ".markdown": true}

// Result summarizes one load.
type Result struct {
	Pages []domain.Page
	// Documents lists the source ids that produced at least one page.
	Documents []string
	// Skipped lists files that were found but not loaded.
	Skipped []string
}

// Loader turns files into pages.
type Loader struct {
	pageSize int
}

// New creates a loader. A non-positive pageSize uses DefaultPageSize.
func New(pageSize int) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Loader{pageSize: pageSize}
}

// Load reads every supported file named by paths. A path may be a file, a
// directory (walked recursively) or a glob pattern. Files are processed in
// lexical order so page order is reproducible.
//
// Files found under a directory are identified by their slash-separated path
// relative to that directory; files named directly or by a glob by their base
// name. Two files whose identifiers would produce the same chunk ids are an
// error.
func (l *Loader) Load(paths []string) (Result, error) {
	files, err := expand(paths)
	if err != nil {
		return Result{}, err
	}

	var res Result
	owners := make(map[string]string)
	for _, f := range files {
		if !supported[strings.ToLower(filepath.Ext(f.path))] {
			logger.Warn("Unsupported file type %s for %s, skipping", filepath.Ext(f.path), f.id)
			res.Skipped = append(res.Skipped, f.path)
			continue
		}
		key := domain.ChunkID(f.id, 0, 0)
		if other, dup := owners[key]; dup {
			return res, fmt.Errorf("%w: %s and %s map to the same source document id",
				domain.ErrConfiguration, other, f.path)
		}
		owners[key] = f.path

		pages, err := l.readPages(f.path, f.id)
		if err != nil {
			return res, err
		}
		if len(pages) == 0 {
			logger.Warn("Skipping %s - no content extracted", f.id)
			res.Skipped = append(res.Skipped, f.path)
			continue
		}
		logger.Info("Loaded %s: %d pages", f.id, len(pages))
		res.Documents = append(res.Documents, f.id)
		res.Pages = append(res.Pages, pages...)
	}
	return res, nil
}

// LoadFile reads one file. The source document id is the file name.
func (l *Loader) LoadFile(path string) ([]domain.Page, error) {
	return l.readPages(path, filepath.Base(path))
}

func (l *Loader) readPages(path, sourceID string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	text := strings.ToValidUTF8(string(data), "�")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return l.Paginate(sourceID, text), nil
}

// Paginate splits text into 1-based pages. Form feeds mark physical pages;
// without them the text is cut every pageSize runes. Blank pages are
// dropped but still consume their page number.
func (l *Loader) Paginate(sourceID, text string) []domain.Page {
	var parts []string
	if strings.Contains(text, pageBreak) {
		parts = strings.Split(text, pageBreak)
	} else {
		parts = splitRunes(text, l.pageSize)
	}

	pages := make([]domain.Page, 0, len(parts))
	for i, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, domain.Page{SourceDocumentID: sourceID, PageNumber: i + 1, Text: p})
	}
	return pages
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// file is one input file and its source document id.
type file struct {
	path string
	id   string
}

// expand resolves paths to a de-duplicated list of regular files sorted by path.
func expand(paths []string) ([]file, error) {
	seen := make(map[string]bool)
	var files []file
	add := func(path, id string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, file{path: path, id: id})
		}
	}

	for _, p := range paths {
		matches := []string{p}
		if strings.ContainsAny(p, "*?[") {
			m, err := filepath.Glob(p)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
			}
			if len(m) == 0 {
				logger.Warn("No files match %s", p)
			}
			matches = m
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", m, err)
			}
			if !info.IsDir() {
				add(filepath.Clean(m), filepath.Base(m))
				continue
			}
			root := m
			err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.Type().IsRegular() {
					return nil
				}
				rel, err := filepath.Rel(root, path)
				if err != nil {
					return err
				}
				add(filepath.Clean(path), filepath.ToSlash(rel))
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walking %s: %w", m, err)
			}
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}
