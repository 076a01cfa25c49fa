// Package ffmpeg extracts single decoded frames from video files.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoFrame is returned when ffmpeg exits cleanly without emitting a frame,
// typically because the seek offset lies past the last decodable frame.
var ErrNoFrame = errors.New("no frame decoded")

// FrameArgs builds the argument list that decodes the frame nearest to at and
// writes it to stdout as PNG.
func FrameArgs(path string, at time.Duration) []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
}

// ExtractFrame decodes one frame at offset at. The subprocess is reaped before
// returning on every path.
func ExtractFrame(ctx context.Context, binary, path string, at time.Duration) (image.Image, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ffmpeg extract: empty path")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, FrameArgs(path, at)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg extract at %s: %w: %s", at, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg extract at %s: %w", at, ErrNoFrame)
	}
	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode frame: %w", err)
	}
	return img, nil
}
