package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"vidtrace/internal/config"
	"vidtrace/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckLibraryRoots verifies each configured root can be listed. The scanner
// only reads, so write access is not required.
func CheckLibraryRoots(roots []string) []Result {
	results := make([]Result, 0, len(roots))
	for _, root := range roots {
		name := "Library root"
		info, err := os.Stat(root)
		switch {
		case err != nil:
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", root, err)})
		case !info.IsDir():
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", root)})
		default:
			if err := unix.Access(root, unix.R_OK|unix.X_OK); err != nil {
				results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", root, err)})
				continue
			}
			results = append(results, Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", root)})
		}
	}
	return results
}

// CheckMediaTools reports ffprobe and ffmpeg availability for cfg.
func CheckMediaTools(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.MediaTools(cfg.FFprobeBinary(), cfg.FFmpegBinary()))
}
