package identity

import "vidtrace/internal/config"

// Policy centralizes relink thresholds and scoring weights.
type Policy struct {
	SizeToleranceBytes  int64
	DurationToleranceMs int64
	SizeWeight          float64
	DurationWeight      float64
	NameWeight          float64
	ProbableThreshold   float64
	CandidateLimit      int
	// SkipLiveCandidates excludes candidates whose current file still exists,
	// so a copy never steals the identity of its original.
	SkipLiveCandidates bool
}

// DefaultPolicy returns the stock relink policy.
func DefaultPolicy() Policy {
	return Policy{
		SizeToleranceBytes:  1_500_000,
		DurationToleranceMs: 2_500,
		SizeWeight:          0.45,
		DurationWeight:      0.45,
		NameWeight:          0.10,
		ProbableThreshold:   0.92,
		CandidateLimit:      200,
		SkipLiveCandidates:  true,
	}
}

// PolicyFromConfig applies the [matching] section over DefaultPolicy.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	if cfg == nil {
		return p
	}
	p.SizeToleranceBytes = cfg.Matching.SizeToleranceBytes
	p.DurationToleranceMs = cfg.Matching.DurationToleranceMs
	p.ProbableThreshold = cfg.Matching.ProbableThreshold
	p.CandidateLimit = cfg.Matching.CandidateLimit
	return p.normalized()
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()

	if p.SizeToleranceBytes < 0 {
		p.SizeToleranceBytes = d.SizeToleranceBytes
	}
	if p.DurationToleranceMs < 0 {
		p.DurationToleranceMs = d.DurationToleranceMs
	}
	if p.SizeWeight < 0 || p.DurationWeight < 0 || p.NameWeight < 0 ||
		p.SizeWeight+p.DurationWeight+p.NameWeight <= 0 {
		p.SizeWeight, p.DurationWeight, p.NameWeight = d.SizeWeight, d.DurationWeight, d.NameWeight
	}
	if p.ProbableThreshold <= 0 || p.ProbableThreshold > 1 {
		p.ProbableThreshold = d.ProbableThreshold
	}
	if p.CandidateLimit <= 0 {
		p.CandidateLimit = d.CandidateLimit
	}
	return p
}
