package config

const (
	defaultDataDir             = "~/.local/share/vidtrace"
	defaultLogDir              = "~/.local/share/vidtrace/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultFFprobeBinary       = "ffprobe"
	defaultFFmpegBinary        = "ffmpeg"
	defaultProbeTimeoutSeconds = 20
	defaultBackfillWorkers     = 2
	defaultSizeToleranceBytes  = 1_500_000
	defaultDurationToleranceMs = 2_500
	defaultProbableThreshold   = 0.92
	defaultCandidateLimit      = 200
	defaultForensicsEnabled    = true
	defaultPersonEventsEnabled = true
)

var defaultExtensions = []string{".mp4", ".mkv", ".mov", ".avi", ".webm", ".3gp"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Forensics: Forensics{
			Enabled:             defaultForensicsEnabled,
			PersonEventsEnabled: defaultPersonEventsEnabled,
		},
		Matching: Matching{
			SizeToleranceBytes:  defaultSizeToleranceBytes,
			DurationToleranceMs: defaultDurationToleranceMs,
			ProbableThreshold:   defaultProbableThreshold,
			CandidateLimit:      defaultCandidateLimit,
		},
		Fingerprint: Fingerprint{
			FFprobeBinary:       defaultFFprobeBinary,
			FFmpegBinary:        defaultFFmpegBinary,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
			BackfillWorkers:     defaultBackfillWorkers,
		},
		Library: Library{
			Extensions: append([]string(nil), defaultExtensions...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
