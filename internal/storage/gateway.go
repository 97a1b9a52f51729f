// Package storage persists daily reports behind a small, version-aware Gateway.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/envelope-ocr/internal/common"
)

var (
	ErrNotFound        = errors.New("object not found")
	ErrVersionConflict = errors.New("object version conflict")
)

// AnyVersion disables the precondition on Upload.
const AnyVersion = "*"

// Object is a downloaded body plus the version token it was read at.
type Object struct {
	Body    []byte
	Version string
}

// Gateway is the persistence boundary for reports.
//
// Upload succeeds only when the stored version equals expectVersion; "" means
// the key must not exist yet and AnyVersion skips the check. On mismatch it
// returns an error wrapping ErrVersionConflict.
type Gateway interface {
	Exists(ctx context.Context, key string) (bool, error)
	Download(ctx context.Context, key string) (Object, error)
	Upload(ctx context.Context, key string, body []byte, expectVersion string) (version string, err error)
}

// New builds the gateway selected by cfg.Backend.
func New(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Backend) {
	case "", "s3":
		return NewS3FromConfig(ctx, cfg, logger)
	case "fs":
		return NewFS(cfg.FSRoot, logger)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return fmt.Errorf("invalid object key %q", key)
		}
	}
	return nil
}
