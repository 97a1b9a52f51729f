package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joseph-ayodele/envelope-ocr/constants"
	"github.com/joseph-ayodele/envelope-ocr/internal/core"
)

// AllowedExt checks if a file extension is in the allowed set (pdf/jpg/jpeg/png).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// ReadInvocation loads path into an Invocation and returns the content hash.
func ReadInvocation(path, source string) (core.Invocation, string, error) {
	if !AllowedExt(filepath.Ext(path)) {
		return core.Invocation{}, "", fmt.Errorf("unsupported or missing extension: %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Invocation{}, "", fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return core.Invocation{
		Filename: filepath.Base(path),
		Body:     data,
		Source:   source,
	}, hex.EncodeToString(sum[:]), nil
}

// Seen remembers content hashes so the same file is not appended twice when
// it is both scanned and reported by the watcher, or rewritten in place.
type Seen struct {
	mu     sync.Mutex
	hashes map[string]struct{}
}

func NewSeen() *Seen { return &Seen{hashes: make(map[string]struct{})} }

// Add reports whether hash was new.
func (s *Seen) Add(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[hash]; ok {
		return false
	}
	s.hashes[hash] = struct{}{}
	return true
}

// Forget drops hash so the file can be retried.
func (s *Seen) Forget(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, hash)
}
