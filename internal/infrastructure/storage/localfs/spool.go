package localfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

// Spool keeps request-scoped uploads on disk so a batch can outlive the
// request that delivered it. Files keep their selection order.
type Spool struct {
	dir    string
	files  []domain.CandidateFile
	create func(path string) (io.WriteCloser, error)
}

func NewSpool(basePath string) (*Spool, error) {
	if basePath != "" {
		if err := os.MkdirAll(basePath, 0o755); err != nil {
			return nil, fmt.Errorf("create spool base dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(basePath, "batch-*")
	if err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Spool{dir: dir, create: createFile}, nil
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// Add stores data under a positional key and records it as a candidate
// carrying the original file name.
func (s *Spool) Add(name string, data io.Reader) error {
	path := filepath.Join(s.dir, fmt.Sprintf("%05d", len(s.files)))
	f, err := s.create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	size, err := io.Copy(f, data)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("write file: %w", err)
	}
	// A failed close can drop buffered data; the candidate is not recorded.
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	s.files = append(s.files, domain.CandidateFile{
		Name: filepath.Base(name),
		Size: size,
		Open: func() (io.ReadCloser, error) {
			rc, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open file: %w", err)
			}
			return rc, nil
		},
	})
	return nil
}

func (s *Spool) Files() []domain.CandidateFile {
	return s.files
}

func (s *Spool) Close() error {
	return os.RemoveAll(s.dir)
}
