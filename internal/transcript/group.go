// Package transcript builds the speaker → utterance → word transcript tree.
package transcript

import "github.com/codebuildervaibhav/meeting-transcriber/internal/types"

// DefaultGapThreshold is the pause, in seconds, that splits a speaker's turn.
const DefaultGapThreshold = 5.0

// Group is a speaker-continuous stretch transcribed as one span.
type Group struct {
	Speaker  string
	Start    float64
	End      float64
	Segments []types.IdentifiedSegment
}

// GroupBySpeaker walks segments in order and starts a new group on a speaker
// change or when the silence since the group's end exceeds gapThreshold.
func GroupBySpeaker(segments []types.IdentifiedSegment, gapThreshold float64) []Group {
	if len(segments) == 0 {
		return nil
	}

	var groups []Group
	current := newGroup(segments[0])
	for _, seg := range segments[1:] {
		gap := seg.Start - current.End
		if seg.Speaker == current.Speaker && gap <= gapThreshold {
			if seg.End > current.End {
				current.End = seg.End
			}
			current.Segments = append(current.Segments, seg)
			continue
		}
		groups = append(groups, current)
		current = newGroup(seg)
	}
	return append(groups, current)
}

func newGroup(seg types.IdentifiedSegment) Group {
	return Group{
		Speaker:  seg.Speaker,
		Start:    seg.Start,
		End:      seg.End,
		Segments: []types.IdentifiedSegment{seg},
	}
}
