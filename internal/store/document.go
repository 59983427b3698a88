package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Document is a JSON file holding a single value of type T. Every successful
// Update is written to disk before it becomes visible to readers.
type Document[T any] struct {
	mu    sync.RWMutex
	path  string
	value T
}

// Open loads the document at path. A missing file yields init(); a file that
// exists but does not parse is an error so that user data is never silently
// replaced.
func Open[T any](path string, init func() T) (*Document[T], error) {
	d := &Document[T]{path: path, value: init()}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(data) == 0 {
		return d, nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	d.value = value
	return d, nil
}

func (d *Document[T]) Path() string {
	return d.path
}

// Read calls fn with the current value. fn must not retain or modify it.
func (d *Document[T]) Read(fn func(T)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.value)
}

// Update passes a deep copy of the current value to fn and persists the
// result. If fn or the write fails, the in-memory value is left as it was.
func (d *Document[T]) Update(fn func(T) (T, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	working, err := clone(d.value)
	if err != nil {
		return err
	}

	next, err := fn(working)
	if err != nil {
		return err
	}

	if err := writeJSON(d.path, next); err != nil {
		return err
	}

	d.value = next
	return nil
}

func clone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("failed to copy document: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to copy document: %w", err)
	}
	return out, nil
}

// writeJSON replaces path atomically via a sibling temp file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteJSON writes v to path with the same atomic replace used by Document.
func WriteJSON(path string, v any) error {
	return writeJSON(path, v)
}

// ReadJSON decodes the file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
