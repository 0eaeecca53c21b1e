// Package sink provides destinations for exported documents.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bjjsocial/bjjsocial/internal/exporter"
)

// Sink errors.
var (
	ErrInvalidName = errors.New("sink: invalid file name")
)

// Locator is implemented by sinks that can report where a delivery landed.
// Sinks keep no record of past deliveries; callers that need locations take
// them from Put.
type Locator interface {
	exporter.Sink

	// Put delivers f and returns its location.
	Put(ctx context.Context, f exporter.File) (string, error)
}

// Put delivers f through s. The location is the one s reports when it is a
// Locator, otherwise the file name.
func Put(ctx context.Context, s exporter.Sink, f exporter.File) (string, error) {
	if l, ok := s.(Locator); ok {
		return l.Put(ctx, f)
	}
	if err := s.Deliver(ctx, f); err != nil {
		return "", err
	}
	return f.Name, nil
}

// Dir writes files into a local directory.
type Dir struct {
	root string
	perm os.FileMode
}

// NewDir creates a directory sink rooted at root. The directory is created on
// first delivery.
func NewDir(root string) *Dir {
	return &Dir{root: root, perm: 0o644}
}

// Deliver writes f to <root>/<f.Name>, replacing any existing file.
func (d *Dir) Deliver(ctx context.Context, f exporter.File) error {
	_, err := d.Put(ctx, f)
	return err
}

// Put writes f and returns its path.
func (d *Dir) Put(_ context.Context, f exporter.File) (string, error) {
	if err := validateName(f.Name); err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(d.root, f.Name)
	if err := os.WriteFile(path, f.Body, d.perm); err != nil {
		return "", fmt.Errorf("write %s: %w", f.Name, err)
	}
	return path, nil
}

// Memory records delivered files in order.
type Memory struct {
	mu    sync.Mutex
	files []exporter.File
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Deliver records a copy of f.
func (m *Memory) Deliver(_ context.Context, f exporter.File) error {
	body := make([]byte, len(f.Body))
	copy(body, f.Body)
	f.Body = body

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, f)
	return nil
}

// Files returns the delivered files in delivery order.
func (m *Memory) Files() []exporter.File {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]exporter.File, len(m.files))
	copy(out, m.files)
	return out
}

// Names returns the delivered file names in delivery order.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.files))
	for _, f := range m.files {
		names = append(names, f.Name)
	}
	return names
}

// Put records f and returns "memory://<name>".
func (m *Memory) Put(ctx context.Context, f exporter.File) (string, error) {
	if err := m.Deliver(ctx, f); err != nil {
		return "", err
	}
	return "memory://" + f.Name, nil
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// Ensure sinks implement exporter.Sink and Locator.
var (
	_ exporter.Sink = (*Dir)(nil)
	_ exporter.Sink = (*Memory)(nil)
	_ Locator       = (*Dir)(nil)
	_ Locator       = (*Memory)(nil)
)
