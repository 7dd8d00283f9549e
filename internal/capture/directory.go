package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // decoder registration
	_ "image/jpeg" // decoder registration
	_ "image/png"  // decoder registration
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp" // decoder registration
)

var stillExtensions = map[string]bool{ //nolint:gochecknoglobals // read-only lookup
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// directorySource replays the stills of a directory round-robin. It stands
// in for a camera on kiosks without live video and in tests.
type directorySource struct {
	dir string

	mu    sync.Mutex
	files []string
	next  int
}

// NewDirectoryDevice returns a camera backed by the still images in dir.
func NewDirectoryDevice(dir string, opts ...Option) *Camera {
	return newCamera(&directorySource{dir: dir}, opts)
}

func (s *directorySource) name() string { return "dir:" + s.dir }

func (s *directorySource) open(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, s.dir)
	case err != nil:
		return fmt.Errorf("%w: %s: %v", ErrNoDevice, s.dir, err) //nolint:errorlint // device kind is the wrapped sentinel
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !stillExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: %s has no stills", ErrNoDevice, s.dir)
	}
	sort.Strings(files)

	s.mu.Lock()
	s.files = files
	s.next = 0
	s.mu.Unlock()
	return nil
}

func (s *directorySource) grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	s.mu.Lock()
	if len(s.files) == 0 {
		s.mu.Unlock()
		return nil, ErrInactive
	}
	path := s.files[s.next%len(s.files)]
	s.next++
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCapture, filepath.Base(path), err)
	}
	return img, nil
}

func (s *directorySource) close() {
	s.mu.Lock()
	s.files = nil
	s.next = 0
	s.mu.Unlock()
}
