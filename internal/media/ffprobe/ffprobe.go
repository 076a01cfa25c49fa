package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against path and decodes the JSON response.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Parse(output)
}

// Parse decodes ffprobe JSON output.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream, if any.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// DurationMillis returns the container duration, falling back to the longest
// stream duration. Unparseable or negative values yield 0.
func (r Result) DurationMillis() int64 {
	seconds := parseSeconds(r.Format.Duration)
	if seconds <= 0 {
		for _, stream := range r.Streams {
			seconds = math.Max(seconds, parseSeconds(stream.Duration))
		}
	}
	if seconds <= 0 {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

// MIMEType maps the container format to a video MIME type. Unknown formats
// yield "video/<first format name>".
func (r Result) MIMEType() string {
	names := strings.Split(strings.ToLower(strings.TrimSpace(r.Format.FormatName)), ",")
	if len(names) == 0 || names[0] == "" {
		return ""
	}
	for _, name := range names {
		switch name {
		case "mp4":
			return "video/mp4"
		case "3gp":
			return "video/3gpp"
		case "webm":
			return "video/webm"
		case "matroska":
			return "video/x-matroska"
		case "avi":
			return "video/x-msvideo"
		}
	}
	if names[0] == "mov" {
		return "video/quicktime"
	}
	return "video/" + names[0]
}

// CodecInfo summarizes the container and primary video codec, for example
// "video/mp4;codecs=h264". Either part may be absent.
func (r Result) CodecInfo() string {
	mime := r.MIMEType()
	stream, ok := r.VideoStream()
	codec := strings.TrimSpace(stream.CodecName)
	switch {
	case ok && codec != "" && mime != "":
		return mime + ";codecs=" + codec
	case ok && codec != "":
		return codec
	default:
		return mime
	}
}

func parseSeconds(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}
