package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalFiles stores generated artifacts under a single directory. The
// reference stored on the job record is the absolute file path.
type LocalFiles struct {
	dir string
}

// NewLocalFiles creates the artifact directory if needed.
func NewLocalFiles(dir string) (*LocalFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &LocalFiles{dir: dir}, nil
}

// SaveResume writes the PDF and returns its path.
func (l *LocalFiles) SaveResume(pdf []byte, filename string) (string, error) {
	path := filepath.Join(l.dir, filepath.Base(filename))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write resume: %w", err)
	}
	return path, nil
}

// SaveCoverLetter writes the cover letter as a text file next to the
// resumes and returns its path.
func (l *LocalFiles) SaveCoverLetter(text, filename string) (string, error) {
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); ext != ".txt" {
		base = strings.TrimSuffix(base, ext) + ".txt"
	}
	path := filepath.Join(l.dir, base)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write cover letter: %w", err)
	}
	return path, nil
}

// DeleteResume removes a stored artifact. A missing file is not an error;
// cleanup must be idempotent.
func (l *LocalFiles) DeleteResume(ref string) error {
	if ref == "" {
		return nil
	}
	if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete resume: %w", err)
	}
	return nil
}
