package transcript

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Render flattens the tree into "[MM:SS - MM:SS] SPEAKER: text" lines.
func Render(tree []types.SpeakerTranscriptSegment) string {
	var lines []string
	for _, seg := range tree {
		for _, utt := range seg.Utterances {
			lines = append(lines, fmt.Sprintf("[%s - %s] %s: %s",
				clock(utt.Start), clock(utt.End), seg.SpeakerID, utt.Text))
		}
	}
	return strings.Join(lines, "\n")
}

func clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Document is the serialised hierarchical transcript.
type Document struct {
	Meeting Meeting `json:"meeting"`
}

// Meeting holds the speaker segments of one recording.
type Meeting struct {
	SpeakerSegments []types.SpeakerTranscriptSegment `json:"speakerSegments"`
}

// NewDocument wraps a tree for serialisation.
func NewDocument(tree []types.SpeakerTranscriptSegment) Document {
	if tree == nil {
		tree = []types.SpeakerTranscriptSegment{}
	}
	return Document{Meeting: Meeting{SpeakerSegments: tree}}
}

// MarshalDocument encodes the tree as indented hierarchical JSON.
func MarshalDocument(tree []types.SpeakerTranscriptSegment) ([]byte, error) {
	return json.MarshalIndent(NewDocument(tree), "", "  ")
}

// WordCount counts aligned words. Placeholders have none.
func WordCount(tree []types.SpeakerTranscriptSegment) int {
	n := 0
	for _, seg := range tree {
		for _, utt := range seg.Utterances {
			n += len(utt.Words)
		}
	}
	return n
}
