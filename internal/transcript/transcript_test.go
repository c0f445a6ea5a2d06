package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcription"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

func ident(start, end float64, speaker string) types.IdentifiedSegment {
	return types.IdentifiedSegment{Segment: types.NewSegment(start, end, speaker)}
}

func TestGroupBySpeakerSplitsOnGap(t *testing.T) {
	groups := GroupBySpeaker([]types.IdentifiedSegment{
		ident(0, 2, "A"),
		ident(2, 4, "A"),
		ident(10, 12, "A"),
	}, DefaultGapThreshold)
	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].Speaker)
	assert.Equal(t, 0.0, groups[0].Start)
	assert.Equal(t, 4.0, groups[0].End)
	assert.Len(t, groups[0].Segments, 2)
	assert.Equal(t, 10.0, groups[1].Start)
	assert.Equal(t, 12.0, groups[1].End)
}

func TestGroupBySpeakerSplitsOnSpeakerChange(t *testing.T) {
	groups := GroupBySpeaker([]types.IdentifiedSegment{
		ident(0, 2, "A"),
		ident(2.5, 4, "B"),
		ident(4.5, 6, "A"),
	}, DefaultGapThreshold)
	require.Len(t, groups, 3)
	assert.Empty(t, GroupBySpeaker(nil, DefaultGapThreshold))
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"Hello there", "How are you", "Fine"},
		SplitSentences("Hello there. How are you?! Fine..."))
	assert.Empty(t, SplitSentences(" ... ?"))
	assert.Equal(t, []string{"no punctuation"}, SplitSentences("no punctuation"))
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.5, Confidence(-1.5), 1e-9)
	assert.Equal(t, 1.0, Confidence(0.4))
	assert.Equal(t, 0.0, Confidence(-7))
	assert.Equal(t, 1.0, Confidence(0))
}

func TestAlignPositional(t *testing.T) {
	g := Group{Speaker: "alice", Start: 10, End: 16}
	span := &transcription.SpanTranscription{
		Text:       "Hello there. How are you?",
		AvgLogProb: -1.5,
		Words: []transcription.SpanWord{
			{Text: " Hello", Start: 0, End: 0.4, Probability: 0.9},
			{Text: " there.", Start: 0.5, End: 0.9, Probability: 0.8},
			{Text: " How", Start: 1.2, End: 1.4, Probability: 0.7},
			{Text: " are", Start: 1.5, End: 1.6, Probability: 0.6},
			{Text: " you?", Start: 1.7, End: 2.0, Probability: 0.5},
		},
	}
	seg := Align(g, span)
	assert.Equal(t, "alice", seg.SpeakerID)
	require.Len(t, seg.Utterances, 2)

	first := seg.Utterances[0]
	assert.Equal(t, "Hello there", first.Text)
	assert.InDelta(t, 10.0, first.Start, 1e-9)
	assert.InDelta(t, 10.9, first.End, 1e-9)
	assert.InDelta(t, 0.5, first.Confidence, 1e-9)
	assert.Zero(t, first.Drift)
	require.Len(t, first.Words, 2)
	assert.Equal(t, "Hello", first.Words[0].Text)
	assert.Equal(t, 0.9, first.Words[0].Confidence)

	second := seg.Utterances[1]
	assert.Len(t, second.Words, 3)
	assert.InDelta(t, 11.2, second.Start, 1e-9)
	assert.InDelta(t, 12.0, second.End, 1e-9)
}

func TestAlignDropsSentencesWithoutWords(t *testing.T) {
	g := Group{Speaker: "A", Start: 0, End: 5}
	span := &transcription.SpanTranscription{
		Text:  "One two three. Four five.",
		Words: []transcription.SpanWord{{Text: "One", Start: 0, End: 1}, {Text: "two", Start: 1, End: 2}},
	}
	seg := Align(g, span)
	require.Len(t, seg.Utterances, 1)
	assert.Len(t, seg.Utterances[0].Words, 2, "bounded by the words that remain")
	assert.Equal(t, 1.0, seg.Utterances[0].Confidence)
}

func TestAlignPerDecoderSegment(t *testing.T) {
	g := Group{Speaker: "A", Start: 2, End: 8}
	span := &transcription.SpanTranscription{
		Segments: []transcription.SpanSegment{
			{Text: "First.", AvgLogProb: 0, Words: []transcription.SpanWord{{Text: "First.", Start: 0, End: 1}}},
			{Text: "Second.", AvgLogProb: -3, Words: []transcription.SpanWord{{Text: "Second.", Start: 2, End: 3}}},
		},
	}
	seg := Align(g, span)
	require.Len(t, seg.Utterances, 2)
	assert.Equal(t, 1.0, seg.Utterances[0].Confidence)
	assert.Equal(t, 0.0, seg.Utterances[1].Confidence)
	assert.InDelta(t, 4.0, seg.Utterances[1].Start, 1e-9)
}

type scriptedTranscriber struct {
	results map[float64]*transcription.SpanTranscription
	errs    map[float64]error
}

func (s *scriptedTranscriber) Transcribe(_ context.Context, _ string, start, _ float64) (*transcription.SpanTranscription, error) {
	if err, ok := s.errs[start]; ok {
		return nil, err
	}
	return s.results[start], nil
}

func TestBuildWithPlaceholder(t *testing.T) {
	tr := &scriptedTranscriber{
		results: map[float64]*transcription.SpanTranscription{
			0: {Text: "Good morning.", AvgLogProb: -0.3, Words: []transcription.SpanWord{
				{Text: "Good", Start: 0, End: 0.5, Probability: 0.9},
				{Text: "morning.", Start: 0.6, End: 1.2, Probability: 0.9},
			}},
		},
		errs: map[float64]error{20: errors.New("model crashed")},
	}
	b := NewBuilder(tr, 0, zerolog.Nop())

	out, err := b.Build(context.Background(), "meeting.wav", []types.IdentifiedSegment{
		ident(0, 5, "alice"),
		ident(20, 26, "SPEAKER_00"),
	})
	require.NoError(t, err)
	require.Len(t, out.Segments, 2)
	require.Error(t, out.Err)

	placeholder := out.Segments[1]
	assert.Equal(t, "SPEAKER_00", placeholder.SpeakerID)
	require.Len(t, placeholder.Utterances, 1)
	assert.Equal(t, "[transcription failed: model crashed]", placeholder.Utterances[0].Text)
	assert.Empty(t, placeholder.Utterances[0].Words)
	assert.Zero(t, placeholder.Utterances[0].Confidence)

	warnings := out.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "model crashed")

	assert.Equal(t,
		"[00:00 - 00:01] alice: Good morning\n[00:20 - 00:26] SPEAKER_00: [transcription failed: model crashed]",
		Render(out.Segments))
	assert.Equal(t, 2, WordCount(out.Segments))
}

func TestBuildNoFailures(t *testing.T) {
	tr := &scriptedTranscriber{results: map[float64]*transcription.SpanTranscription{
		0: {Text: "Hi.", Words: []transcription.SpanWord{{Text: "Hi.", Start: 0, End: 0.3}}},
	}}
	out, err := NewBuilder(tr, 5, zerolog.Nop()).Build(context.Background(), "a.wav", []types.IdentifiedSegment{ident(0, 3, "A")})
	require.NoError(t, err)
	assert.NoError(t, out.Err)
	assert.Nil(t, out.Warnings())
}

func TestDocumentShape(t *testing.T) {
	data, err := MarshalDocument([]types.SpeakerTranscriptSegment{{
		SpeakerID: "alice",
		Start:     0,
		End:       2,
		Utterances: []types.Utterance{{
			Text:  "Hi",
			Start: 0,
			End:   1,
			Words: []types.Word{{Text: "Hi", Start: 0, End: 1, Confidence: 0.9}},
		}},
	}})
	require.NoError(t, err)

	var doc map[string]map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	seg := doc["meeting"]["speakerSegments"][0]
	assert.Equal(t, "alice", seg["speakerTagId"])
	assert.Contains(t, seg, "startTimestamp")
	utt := seg["utterances"].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, utt, "drift")
	assert.Contains(t, utt, "words")
}
