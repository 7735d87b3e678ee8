package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore is an ObjectStore that keeps frames on the local
// filesystem, used when no remote backend is configured. The returned
// URL is the absolute file path.
type DiskStore struct {
	Dir string
}

func (d *DiskStore) Upload(_ context.Context, objectPath string, data []byte, _ string) (string, error) {
	full := filepath.Join(d.Dir, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create frame directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return full, nil
	}
	return abs, nil
}
