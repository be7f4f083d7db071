// Package tmp provides temporary files that remove themselves on Close.
package tmp

import (
	"io"
	"os"
)

// File wraps an *os.File with a Close method that also removes the file
// from the filesystem.
type File struct {
	*os.File
}

func NewFile(dir, pattern string) (*File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &File{f}, nil
}

// Spool copies r into a new File and seeks it back to the start.
func Spool(r io.Reader, pattern string) (*File, error) {
	f, err := NewFile("", pattern)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Close closes the file handle and removes the file from the
// filesystem.
func (t *File) Close() error {
	if err := t.File.Close(); err != nil {
		return err
	}
	return os.Remove(t.File.Name())
}
