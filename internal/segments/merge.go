// Package segments merges speaker turns into stable segments.
package segments

import (
	"errors"
	"fmt"
	"sort"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// ErrInvalidPolicy is returned when a merge policy has negative parameters.
var ErrInvalidPolicy = errors.New("invalid merge policy")

// Policy controls how adjacent segments are merged.
type Policy struct {
	// MaxGap is the largest silence (seconds) bridged between same-speaker segments.
	MaxGap float64
	// MinDuration drops merged segments shorter than this. Zero disables the filter.
	MinDuration float64
	// AbsorbShort merges an accumulator shorter than MinDuration into whatever
	// follows, regardless of speaker.
	AbsorbShort bool
}

// TurnPolicy merges raw diarization turns by gap only, then filters short results.
func TurnPolicy(maxGap, minDuration float64) Policy {
	return Policy{MaxGap: maxGap, MinDuration: minDuration}
}

// ShortSegmentPolicy also folds short fragments into the following segment.
func ShortSegmentPolicy(maxGap, minDuration float64) Policy {
	return Policy{MaxGap: maxGap, MinDuration: minDuration, AbsorbShort: true}
}

// Validate rejects negative thresholds.
func (p Policy) Validate() error {
	if p.MaxGap < 0 {
		return fmt.Errorf("%w: max gap %.2f is negative", ErrInvalidPolicy, p.MaxGap)
	}
	if p.MinDuration < 0 {
		return fmt.Errorf("%w: min duration %.2f is negative", ErrInvalidPolicy, p.MinDuration)
	}
	return nil
}

// Merge walks segments in start order and merges them according to the policy.
// Passes repeat until nothing changes, so dropping a short segment never leaves
// two mergeable neighbours behind. The input slice is not modified.
func Merge(in []types.Segment, p Policy) []types.Segment {
	out := SortByStart(in)
	for {
		n := len(out)
		out = mergeOnce(out, p)
		if len(out) == n {
			return out
		}
	}
}

func mergeOnce(sorted []types.Segment, p Policy) []types.Segment {
	if len(sorted) == 0 {
		return []types.Segment{}
	}
	out := make([]types.Segment, 0, len(sorted))

	current := withDuration(sorted[0])
	for _, next := range sorted[1:] {
		gap := next.Start - current.End
		sameSpeaker := current.Speaker == next.Speaker

		if (sameSpeaker && gap <= p.MaxGap) || (p.AbsorbShort && current.Duration < p.MinDuration) {
			if next.End > current.End {
				current.End = next.End
			}
			current.Duration = current.End - current.Start
			continue
		}

		if p.keep(current) {
			out = append(out, current)
		}
		current = withDuration(next)
	}
	if p.keep(current) {
		out = append(out, current)
	}
	return out
}

// SortByStart returns a copy of segs ordered by start time. Ties keep input order.
func SortByStart(segs []types.Segment) []types.Segment {
	sorted := make([]types.Segment, len(segs))
	copy(sorted, segs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return sorted
}

func (p Policy) keep(s types.Segment) bool {
	return p.MinDuration <= 0 || s.Duration >= p.MinDuration
}

func withDuration(s types.Segment) types.Segment {
	s.Duration = s.End - s.Start
	return s
}
