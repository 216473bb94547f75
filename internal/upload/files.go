// Package upload sends local files to a project folder one at a time and
// reindexes the project once the batch is done.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"pkt.systems/ecrituria/schema"
)

// DefaultExtensions are the file types the backend accepts.
var DefaultExtensions = []string{".md", ".txt"}

// File is one upload candidate.
type File struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

// Open returns the file content.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("open %s: no content", f.Name)
	}
	return f.open()
}

// FromPath describes a file on disk.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes describes in-memory content.
func FromBytes(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Accepted reports whether name ends with one of exts, ignoring case.
func Accepted(name string, exts []string) bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext != "" && slices.Contains(exts, ext)
}

// Filter splits paths into accepted and rejected, preserving order.
func Filter(paths []string, exts []string) (accepted, rejected []string) {
	for _, path := range paths {
		if Accepted(path, exts) {
			accepted = append(accepted, path)
		} else {
			rejected = append(rejected, path)
		}
	}
	return accepted, rejected
}

// Queue is the ordered selection of files waiting for upload.
type Queue struct {
	mu    sync.Mutex
	exts  []string
	files []File
}

// NewQueue returns an empty queue accepting exts.
func NewQueue(exts []string) *Queue {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return &Queue{exts: exts}
}

// Add queues f. A file whose name is already queued is ignored and Add
// returns false.
func (q *Queue) Add(f File) (bool, error) {
	if !Accepted(f.Name, q.exts) {
		return false, fmt.Errorf("%w: %s", schema.ErrUnsupportedExtension, f.Name)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, queued := range q.files {
		if queued.Name == f.Name {
			return false, nil
		}
	}
	q.files = append(q.files, f)
	return true, nil
}

// Remove drops the file with the given name.
func (q *Queue) Remove(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, f := range q.files {
		if f.Name == name {
			q.files = slices.Delete(q.files, i, i+1)
			return true
		}
	}
	return false
}

// Files returns a copy of the queued files.
func (q *Queue) Files() []File {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.files)
}

// Len returns the number of queued files.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.files)
}

// Take empties the queue and returns what it held.
func (q *Queue) Take() []File {
	q.mu.Lock()
	defer q.mu.Unlock()
	files := q.files
	q.files = nil
	return files
}

// FormatSize renders a byte count as B, KB or MB.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}
