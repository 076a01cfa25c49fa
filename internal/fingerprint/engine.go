package fingerprint

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"vidtrace/internal/config"
	"vidtrace/internal/logging"
	"vidtrace/internal/media/ffmpeg"
	"vidtrace/internal/media/ffprobe"
)

// Metadata holds the container facts probed from a file.
type Metadata struct {
	DurationMs int64
	CodecInfo  string
}

// FrameExtractor decodes the frame nearest to at.
type FrameExtractor func(ctx context.Context, path string, at time.Duration) (image.Image, error)

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Engine binds fingerprinting to the configured ffmpeg/ffprobe binaries.
type Engine struct {
	extract FrameExtractor
	probe   ProbeFunc
	timeout time.Duration
	logger  *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithFrameExtractor replaces the ffmpeg-backed frame source.
func WithFrameExtractor(fn FrameExtractor) Option {
	return func(e *Engine) { e.extract = fn }
}

// WithProbe replaces the ffprobe-backed metadata source.
func WithProbe(fn ProbeFunc) Option {
	return func(e *Engine) { e.probe = fn }
}

// New constructs an Engine from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Engine {
	ffmpegBin, ffprobeBin := "ffmpeg", "ffprobe"
	timeout := 20 * time.Second
	if cfg != nil {
		ffmpegBin, ffprobeBin = cfg.FFmpegBinary(), cfg.FFprobeBinary()
		if cfg.Fingerprint.ProbeTimeoutSeconds > 0 {
			timeout = time.Duration(cfg.Fingerprint.ProbeTimeoutSeconds) * time.Second
		}
	}
	e := &Engine{
		extract: func(ctx context.Context, path string, at time.Duration) (image.Image, error) {
			return ffmpeg.ExtractFrame(ctx, ffmpegBin, path, at)
		},
		probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBin, path)
		},
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "fingerprint"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeExact is the package-level ComputeExact.
func (e *Engine) ComputeExact(ref string, sizeHint int64) (string, bool) {
	digest, ok := ComputeExact(ref, sizeHint)
	if !ok {
		e.logger.Debug("exact fingerprint unavailable", logging.String(logging.FieldURI, ref))
	}
	return digest, ok
}

// ComputeVisual hashes the frame at t=0, falling back to t=1s when the first
// extraction fails. Any failure yields "", false.
func (e *Engine) ComputeVisual(ctx context.Context, ref string) (string, bool) {
	path, err := PathFromURI(ref)
	if err != nil {
		return "", false
	}
	for _, at := range []time.Duration{0, time.Second} {
		img, err := e.extractFrame(ctx, path, at)
		if err != nil {
			e.logger.Debug("frame extraction failed",
				logging.String(logging.FieldURI, ref),
				logging.Duration("offset", at),
				logging.Error(err),
			)
			continue
		}
		return VisualHash(img), true
	}
	return "", false
}

func (e *Engine) extractFrame(ctx context.Context, path string, at time.Duration) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, errPanic{r}
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	img, err = e.extract(ctx, path, at)
	if err == nil && (img == nil || img.Bounds().Empty()) {
		return nil, ffmpeg.ErrNoFrame
	}
	return img, err
}

// Metadata probes duration and codec in one ffprobe run. Failures yield the zero value.
func (e *Engine) Metadata(ctx context.Context, ref string) Metadata {
	path, err := PathFromURI(ref)
	if err != nil {
		return Metadata{}
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	result, err := e.probe(ctx, path)
	if err != nil {
		e.logger.Debug("metadata probe failed", logging.String(logging.FieldURI, ref), logging.Error(err))
		return Metadata{}
	}
	return Metadata{DurationMs: result.DurationMillis(), CodecInfo: result.CodecInfo()}
}

// DurationMs returns the container duration, or 0 when it cannot be probed.
func (e *Engine) DurationMs(ctx context.Context, ref string) int64 {
	return e.Metadata(ctx, ref).DurationMs
}

// CodecInfo returns a codec summary such as "video/mp4;codecs=h264", or "".
func (e *Engine) CodecInfo(ctx context.Context, ref string) string {
	return e.Metadata(ctx, ref).CodecInfo
}

type errPanic struct{ v any }

func (p errPanic) Error() string { return fmt.Sprintf("frame extraction panicked: %v", p.v) }
