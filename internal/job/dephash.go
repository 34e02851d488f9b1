package job

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// HashDeps computes a stable content hash across the concatenation of every
// path in deps (resolved relative to dir), accumulating a Bernstein-style
// running hash (h = h*33 + byte). It is a change detector, not intended to
// be collision resistant: deps that differ only by a length-equivalent
// rotation or trailing null padding can theoretically collide, which is an
// accepted tradeoff for this use case.
//
// The contents of each dependency file are zeroed in memory before the read
// buffer is released, regardless of whether hashing as a whole succeeds.
func HashDeps(dir string, deps []string) (uint64, error) {
	var h uint64 = 5381

	for _, dep := range deps {
		path := dep
		if dir != "" && !filepath.IsAbs(dep) {
			path = filepath.Join(dir, dep)
		}

		if err := hashFile(path, &h); err != nil {
			return 0, fmt.Errorf("reading dependency %q: %w", path, err)
		}
	}

	return h, nil
}

func hashFile(path string, h *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	defer zero(buf)

	for {
		n, err := f.Read(buf)
		for _, b := range buf[:n] {
			*h = (*h)*33 + uint64(b)
		}
		zero(buf[:n])

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
