package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/olehluchkiv/mastersort/internal/store"
)

// Resolve takes an input (a plugin document or a directory of them) and
// returns the plugin document paths to partition, in a stable order.
func Resolve(ctx context.Context, input string, logger *slog.Logger) ([]string, error) {
	absPath, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	if !info.IsDir() {
		if !store.IsDocument(absPath) {
			return nil, fmt.Errorf("%s is not a plugin document (.yaml, .yml, .json, optionally .zst or .lz4)", absPath)
		}
		logger.Info("resolved plugin document", "input", input, "path", absPath)
		return []string{absPath}, nil
	}

	paths, err := findDocuments(ctx, absPath)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no plugin documents found in %s", absPath)
	}

	logger.Info("resolved plugin directory", "input", input, "dir", absPath, "documents", len(paths))
	return paths, nil
}

// findDocuments lists plugin documents directly inside dir, sorted by name.
// Hidden files and subdirectories are skipped.
func findDocuments(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || name == "" || name[0] == '.' {
			continue
		}
		if store.IsDocument(name) {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
