package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrStreamClosed is returned by Frame after Close.
var ErrStreamClosed = errors.New("stream closed")

// ErrNoFrame is returned when the source has not produced a frame yet.
var ErrNoFrame = errors.New("no frame available")

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// DirectoryCamera reads frames that an external grabber writes into a
// directory. The newest image file is the current frame.
type DirectoryCamera struct {
	Dir string
}

// NewDirectoryCamera creates a camera backed by dir.
func NewDirectoryCamera(dir string) *DirectoryCamera {
	return &DirectoryCamera{Dir: dir}
}

// Open checks that the frames directory is readable.
func (c *DirectoryCamera) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("frames directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frames directory %s is not a directory", c.Dir)
	}
	return &directoryStream{dir: c.Dir}, nil
}

type directoryStream struct {
	dir string

	mu     sync.Mutex
	closed bool
	last   string
	lastAt time.Time
	frame  image.Image
}

// Frame decodes the newest frame file, reusing the previous decode when the
// file has not changed.
func (s *directoryStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}

	path, modTime, err := newestFrame(s.dir)
	if err != nil {
		return nil, err
	}
	if path == s.last && modTime.Equal(s.lastAt) && s.frame != nil {
		return s.frame, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	img, err := DecodeFrame(data)
	if err != nil {
		return nil, err
	}
	s.last, s.lastAt, s.frame = path, modTime, img
	return img, nil
}

func (s *directoryStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.frame = nil
	return nil
}

func newestFrame(dir string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("list frames: %w", err)
	}

	var newest string
	var newestAt time.Time
	for _, entry := range entries {
		if entry.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest = filepath.Join(dir, entry.Name())
			newestAt = info.ModTime()
		}
	}
	if newest == "" {
		return "", time.Time{}, ErrNoFrame
	}
	return newest, newestAt, nil
}
