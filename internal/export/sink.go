// Package export formats patient records into documents and writes them
// through an injected sink, keeping browser-level side effects out of the
// core flows.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Sink receives a finished document. Implementations decide where it goes:
// a directory on disk, a download response, a test buffer.
type Sink interface {
	Export(name string, content []byte) (location string, err error)
}

// FileSink writes documents into a fixed directory.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("export: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create directory: %w", err)
	}
	return &FileSink{Dir: dir}, nil
}

func (s *FileSink) Export(name string, content []byte) (string, error) {
	path := filepath.Join(s.Dir, sanitizeName(name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", name, err)
	}
	return path, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "document"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	return replacer.Replace(name)
}

// MemorySink captures exports for tests.
type MemorySink struct {
	mu    sync.Mutex
	Files map[string][]byte
	Err   error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{Files: make(map[string][]byte)}
}

func (s *MemorySink) Export(name string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.Files[name] = append([]byte(nil), content...)
	return "memory://" + name, nil
}
