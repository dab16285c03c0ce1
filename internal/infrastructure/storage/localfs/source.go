package localfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

// Source turns local paths into upload candidates. Files are opened only
// when the uploader dispatches them.
type Source struct {
	fsys fs.FS
	root string
}

// New resolves relative paths against root. An empty root means the
// current working directory.
func New(root string) *Source {
	if root == "" {
		root = "."
	}
	return &Source{fsys: os.DirFS(root), root: root}
}

// Collect expands paths in order. A directory contributes every regular
// file beneath it, walked in lexical order, like a folder picker.
// Unsupported files are kept so the caller can show total and valid counts.
func (s *Source) Collect(paths []string) ([]domain.CandidateFile, error) {
	var files []domain.CandidateFile
	for _, path := range paths {
		name, err := s.fsPath(path)
		if err != nil {
			return nil, err
		}
		info, err := fs.Stat(s.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, s.candidate(name, info.Size()))
			continue
		}

		err = fs.WalkDir(s.fsys, name, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.Type().IsRegular() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			files = append(files, s.candidate(p, fi.Size()))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	}
	return files, nil
}

func (s *Source) fsPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(s.absRoot(), path)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}
		path = rel
	}
	name := filepath.ToSlash(filepath.Clean(path))
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("resolve %s: outside %s", path, s.root)
	}
	return name, nil
}

func (s *Source) absRoot() string {
	abs, err := filepath.Abs(s.root)
	if err != nil {
		return s.root
	}
	return abs
}

func (s *Source) candidate(name string, size int64) domain.CandidateFile {
	fsys := s.fsys
	return domain.CandidateFile{
		Name: filepath.Base(filepath.FromSlash(name)),
		Size: size,
		Open: func() (io.ReadCloser, error) {
			f, err := fsys.Open(name)
			if err != nil {
				return nil, fmt.Errorf("open file: %w", err)
			}
			return f, nil
		},
	}
}
