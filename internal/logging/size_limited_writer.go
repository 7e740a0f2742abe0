package logging

import (
	"fmt"
	"os"
	"sync"
)

// rotatingFile appends to path and shifts it to path.1, path.2, ... once the
// next write would pass maxBytes. Generations past keep are removed.
type rotatingFile struct {
	path     string
	maxBytes int64
	keep     int

	mu   sync.Mutex
	f    *os.File
	size int64
}

func openRotatingFile(path string, maxMB, keep int) (*rotatingFile, error) {
	if maxMB <= 0 {
		maxMB = 10
	}
	if keep < 1 {
		keep = 1
	}
	r := &rotatingFile{path: path, maxBytes: int64(maxMB) << 20, keep: keep}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *rotatingFile) generation(n int) string {
	return fmt.Sprintf("%s.%d", r.path, n)
}

func (r *rotatingFile) rotate() error {
	_ = r.f.Close()
	r.f = nil
	_ = os.Remove(r.generation(r.keep))
	for n := r.keep - 1; n >= 1; n-- {
		if err := os.Rename(r.generation(n), r.generation(n+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(r.path, r.generation(1)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return r.open()
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.f, r.size = f, info.Size()
	return nil
}
