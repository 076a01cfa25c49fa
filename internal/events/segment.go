package events

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"vidtrace/internal/store"
)

// Event types and class names written to ai_event.
const (
	TypePerson  = "PERSON"
	TypeMotion  = "MOTION"
	ClassPerson = "person"
	ClassMotion = "motion"
)

const (
	minArea = 0.02
	maxArea = 0.5
)

// Sample is one motion-start signal from the detector.
type Sample struct {
	URI          string  `json:"uri"`
	TimelineMs   int64   `json:"timeline_ms"`
	PersonLikely bool    `json:"person_likely"`
	Confidence   float64 `json:"confidence"`
	MotionScore  float64 `json:"motion_score"`
	ChangedArea  float64 `json:"changed_area"`
	StrongArea   float64 `json:"strong_area"`
}

// Segment is the in-progress motion interval.
type Segment struct {
	MediaUID       string  `json:"media_uid"`
	URI            string  `json:"uri"`
	StartMs        int64   `json:"start_ms"`
	MaxConfidence  float64 `json:"max_confidence"`
	MaxScore       float64 `json:"max_score"`
	MaxChangedArea float64 `json:"max_changed_area"`
	MaxStrongArea  float64 `json:"max_strong_area"`
	Person         bool    `json:"person"`
	Samples        int     `json:"samples"`
}

func newSegment(mediaUID string, s Sample) *Segment {
	seg := &Segment{
		MediaUID:       mediaUID,
		URI:            s.URI,
		StartMs:        max(0, s.TimelineMs),
		MaxConfidence:  s.Confidence,
		MaxScore:       s.MotionScore,
		MaxChangedArea: s.ChangedArea,
		MaxStrongArea:  s.StrongArea,
		Person:         s.PersonLikely,
		Samples:        1,
	}
	return seg
}

func (seg *Segment) observe(s Sample) {
	seg.MaxConfidence = max(seg.MaxConfidence, s.Confidence)
	seg.MaxScore = max(seg.MaxScore, s.MotionScore)
	seg.MaxChangedArea = max(seg.MaxChangedArea, s.ChangedArea)
	seg.MaxStrongArea = max(seg.MaxStrongArea, s.StrongArea)
	seg.Person = seg.Person || s.PersonLikely
	seg.Samples++
}

// event renders the segment closed at endMs.
func (seg *Segment) event(endMs, detectedAt int64) *store.AiEvent {
	eventType, className := TypeMotion, ClassMotion
	if seg.Person {
		eventType, className = TypePerson, ClassPerson
	}
	return &store.AiEvent{
		MediaUID:          seg.MediaUID,
		EventType:         eventType,
		ClassName:         className,
		StartMs:           seg.StartMs,
		EndMs:             max(seg.StartMs, endMs),
		Confidence:        seg.MaxConfidence,
		BBoxNorm:          BBox(max(seg.MaxChangedArea, seg.MaxStrongArea)),
		Priority:          Priority(max(seg.MaxConfidence, seg.MaxScore)),
		ThumbnailRef:      seg.URI + "#t=" + seconds(seg.StartMs),
		DetectedAtEpochMs: detectedAt,
	}
}

// Priority buckets a peak signal into 0..3.
func Priority(peak float64) int {
	switch {
	case peak >= 0.85:
		return 3
	case peak >= 0.65:
		return 2
	case peak >= 0.45:
		return 1
	default:
		return 0
	}
}

// BBox renders a centered square covering area (clamped to [0.02, 0.5]) as
// "cx,cy,halfW,halfH" in normalized frame coordinates.
func BBox(area float64) string {
	if math.IsNaN(area) {
		area = minArea
	}
	side := math.Sqrt(min(max(area, minArea), maxArea))
	half := side / 2
	return fmt.Sprintf("0.5,0.5,%.4f,%.4f", half, half)
}

// seconds formats ms as decimal seconds with at least one fractional digit.
func seconds(ms int64) string {
	s := strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
