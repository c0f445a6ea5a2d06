package transcript

import (
	"math"
	"regexp"
	"strings"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

// SplitSentences splits text on runs of terminal punctuation and drops empty
// fragments. The punctuation itself is not kept.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentenceBreak.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Confidence maps an average log-probability in [-3, 0] onto [0, 1].
func Confidence(avgLogProb float64) float64 {
	return math.Max(0, math.Min(1, (avgLogProb+3)/3))
}

// Align turns a span transcription into utterances. Words are assigned to
// sentences positionally: each sentence consumes as many words as it has
// whitespace-separated tokens. Sentences left without words are dropped.
// Word times are shifted by the group start.
func Align(g Group, span *transcription.SpanTranscription) types.SpeakerTranscriptSegment {
	out := types.SpeakerTranscriptSegment{
		SpeakerID:  g.Speaker,
		Start:      g.Start,
		End:        g.End,
		Utterances: []types.Utterance{},
	}
	if span == nil {
		return out
	}

	for _, part := range span.Parts() {
		confidence := Confidence(part.AvgLogProb)
		words := part.Words
		next := 0

		for _, sentence := range SplitSentences(part.Text) {
			n := len(strings.Fields(sentence))
			if remaining := len(words) - next; n > remaining {
				n = remaining
			}
			if n <= 0 {
				continue
			}

			utt := types.Utterance{
				Text:       sentence,
				Confidence: confidence,
				Words:      make([]types.Word, 0, n),
			}
			for _, w := range words[next : next+n] {
				utt.Words = append(utt.Words, types.Word{
					Text:       strings.TrimSpace(w.Text),
					Start:      g.Start + w.Start,
					End:        g.Start + w.End,
					Confidence: w.Probability,
				})
			}
			next += n
			utt.Start = utt.Words[0].Start
			utt.End = utt.Words[len(utt.Words)-1].End
			out.Utterances = append(out.Utterances, utt)
		}
	}
	return out
}
