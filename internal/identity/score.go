package identity

import (
	"strings"

	"golang.org/x/text/cases"

	"vidtrace/internal/store"
)

// Score is the weighted similarity between an observation and a candidate.
type Score struct {
	Size     float64 `json:"size"`
	Duration float64 `json:"duration"`
	Name     float64 `json:"name"`
	Total    float64 `json:"total"`
}

// Ratio returns min(a,b)/max(a,b), or 0 unless both are positive.
func Ratio(a, b int64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}

// NamesEqual compares display names case-insensitively using Unicode case folding.
func NamesEqual(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

// score rates candidate against an observation of sizeBytes/durationMs/name.
func (p Policy) score(sizeBytes, durationMs int64, name string, candidate store.MediaAsset) Score {
	s := Score{
		Size:     Ratio(sizeBytes, candidate.SizeBytes),
		Duration: Ratio(durationMs, candidate.DurationMs),
	}
	if NamesEqual(name, candidate.DisplayName) {
		s.Name = 1
	}
	s.Total = p.SizeWeight*s.Size + p.DurationWeight*s.Duration + p.NameWeight*s.Name
	return s
}

// window returns the inclusive candidate range around an observation.
func (p Policy) window(sizeBytes, durationMs int64) store.CandidateWindow {
	return store.CandidateWindow{
		MinSize:       sizeBytes - p.SizeToleranceBytes,
		MaxSize:       sizeBytes + p.SizeToleranceBytes,
		MinDurationMs: durationMs - p.DurationToleranceMs,
		MaxDurationMs: durationMs + p.DurationToleranceMs,
		Limit:         p.CandidateLimit,
	}
}
