package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"vidtrace/internal/identity"
	"vidtrace/internal/logging"
)

// RootSubtype is used for files that sit directly in a root.
const RootSubtype = "UNKNOWN"

// DefaultBatchSize bounds the number of observations handed to the coordinator at once.
const DefaultBatchSize = 100

// Scanner walks library roots for video files.
type Scanner struct {
	extensions []string
	logger     *slog.Logger
}

// NewScanner builds a scanner matching extensions (".mp4" form, case-insensitive).
func NewScanner(extensions []string, logger *slog.Logger) *Scanner {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return &Scanner{extensions: exts, logger: logging.NewComponentLogger(logger, "library")}
}

// Scan walks every root in order and returns one observation per video file.
func (s *Scanner) Scan(ctx context.Context, roots []string) ([]identity.Observation, error) {
	var observations []identity.Observation
	for _, root := range roots {
		found, err := s.scanRoot(ctx, root)
		if err != nil {
			return observations, err
		}
		observations = append(observations, found...)
	}
	return observations, nil
}

func (s *Scanner) scanRoot(ctx context.Context, root string) ([]identity.Observation, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("library root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s: not a directory", root)
	}
	category := strings.ToUpper(filepath.Base(root))

	var found []identity.Observation
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logging.WarnWithContext(s.logger, "library path unreadable", "library_walk_error",
				logging.String(logging.FieldURI, path),
				logging.Error(walkErr),
				logging.String(logging.FieldImpact, "subtree skipped"),
			)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !s.matches(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			s.logger.Debug("stat failed", logging.String(logging.FieldURI, path), logging.Error(err))
			return nil
		}
		found = append(found, identity.Observation{
			URI:         path,
			DisplayName: d.Name(),
			SizeBytes:   fi.Size(),
			Category:    category,
			Subtype:     subtype(root, path),
		})
		return nil
	})
	if err != nil {
		return found, fmt.Errorf("walk %s: %w", root, err)
	}
	s.logger.Info("library root scanned",
		logging.String("root", root),
		logging.String("category", category),
		logging.Int("files", len(found)),
	)
	return found, nil
}

func (s *Scanner) matches(name string) bool {
	return slices.Contains(s.extensions, strings.ToLower(filepath.Ext(name)))
}

func subtype(root, path string) string {
	parent := filepath.Dir(path)
	if parent == root {
		return RootSubtype
	}
	return strings.ToUpper(filepath.Base(parent))
}

// Batches splits observations into chunks of at most size.
func Batches(observations []identity.Observation, size int) [][]identity.Observation {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]identity.Observation
	for start := 0; start < len(observations); start += size {
		end := min(start+size, len(observations))
		out = append(out, observations[start:end])
	}
	return out
}
