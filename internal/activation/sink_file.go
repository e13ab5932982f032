package activation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SurfacePlaceholder in a file sink path is replaced by the event surface,
// giving each of api, renderer and cli its own file.
const SurfacePlaceholder = "{surface}"

// FileSink appends events as JSON lines. Files are opened on first use.
type FileSink struct {
	pattern string

	mu    sync.Mutex
	files map[string]*jsonlFile
}

type jsonlFile struct {
	f *os.File
	w *bufio.Writer
}

func NewFileSink(pattern string) (*FileSink, error) {
	if pattern == "" {
		return nil, errors.New("file path is empty")
	}
	s := &FileSink{pattern: pattern, files: make(map[string]*jsonlFile)}
	if !strings.Contains(pattern, SurfacePlaceholder) {
		// A fixed path is opened eagerly so a bad path fails at startup.
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, err := s.open(pattern); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileSink) Name() string { return "file_jsonl:" + s.pattern }

// Path returns the file an event from surface is written to.
func (s *FileSink) Path(surface string) string {
	if surface == "" {
		surface = "unknown"
	}
	return strings.ReplaceAll(s.pattern, SurfacePlaceholder, surface)
}

func (s *FileSink) Deliver(_ context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.open(s.Path(ev.Meta.Surface))
	if err != nil {
		return err
	}
	if _, err := out.w.Write(data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := out.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// open returns the handle for path. Callers hold s.mu.
func (s *FileSink) open(path string) (*jsonlFile, error) {
	if out, ok := s.files[path]; ok {
		return out, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	out := &jsonlFile{f: f, w: bufio.NewWriter(f)}
	s.files[path] = out
	return out, nil
}

func (s *FileSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for path, out := range s.files {
		if err := out.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", path, err))
		}
		if err := out.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
		delete(s.files, path)
	}
	return errors.Join(errs...)
}
