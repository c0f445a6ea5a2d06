package segments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

func seg(start, end float64, speaker string) types.Segment {
	return types.NewSegment(start, end, speaker)
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(nil, TurnPolicy(0.5, 0)))
	assert.Empty(t, Merge([]types.Segment{}, ShortSegmentPolicy(1, 3)))
}

func TestMergeSingle(t *testing.T) {
	in := []types.Segment{seg(1, 4, "A")}
	assert.Equal(t, in, Merge(in, TurnPolicy(0.5, 2)))

	// the duration filter still applies to a lone segment
	assert.Empty(t, Merge([]types.Segment{seg(1, 2, "A")}, TurnPolicy(0.5, 2)))
}

func TestMergeSameSpeakerWithinGap(t *testing.T) {
	in := []types.Segment{
		seg(0, 2, "A"),
		seg(2.3, 4, "A"),
		seg(4.2, 6, "B"),
		seg(7, 9, "B"),
	}
	out := Merge(in, TurnPolicy(0.5, 0))
	require.Len(t, out, 3)
	assert.Equal(t, seg(0, 4, "A"), out[0])
	assert.Equal(t, seg(4.2, 6, "B"), out[1])
	assert.Equal(t, seg(7, 9, "B"), out[2])
}

func TestMergeSortsInput(t *testing.T) {
	in := []types.Segment{
		seg(5, 7, "B"),
		seg(0, 2, "A"),
		seg(2.1, 4, "A"),
	}
	out := Merge(in, TurnPolicy(0.5, 0))
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Speaker)
	assert.InDelta(t, 4.0, out[0].End, 1e-9)
	assert.Equal(t, seg(5, 7, "B"), in[0], "input must not be reordered")
}

func TestMergeMinDurationFilter(t *testing.T) {
	in := []types.Segment{
		seg(0, 1, "A"),
		seg(3, 8, "B"),
		seg(10, 11, "A"),
	}
	out := Merge(in, TurnPolicy(0.5, 2))
	require.Len(t, out, 1)
	assert.Equal(t, "B", out[0].Speaker)
}

func TestMergeAbsorbsShortFragments(t *testing.T) {
	in := []types.Segment{
		seg(0, 1, "A"),   // short, absorbed into B
		seg(1.2, 5, "B"), // long enough to stand alone
		seg(9, 15, "C"),
	}
	out := Merge(in, ShortSegmentPolicy(1, 3))
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Speaker, "the accumulator keeps its first label")
	assert.InDelta(t, 0.0, out[0].Start, 1e-9)
	assert.InDelta(t, 5.0, out[0].End, 1e-9)
	assert.InDelta(t, 5.0, out[0].Duration, 1e-9)
	assert.Equal(t, "C", out[1].Speaker)
}

func TestMergeDropsShortTail(t *testing.T) {
	in := []types.Segment{
		seg(0, 5, "A"),
		seg(8, 9, "B"),
	}
	out := Merge(in, ShortSegmentPolicy(1, 3))
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].Speaker)
}

func TestMergeContainedTurnDoesNotShrink(t *testing.T) {
	in := []types.Segment{
		seg(0, 10, "A"),
		seg(2, 4, "A"),
	}
	out := Merge(in, TurnPolicy(0.5, 0))
	require.Len(t, out, 1)
	assert.InDelta(t, 10.0, out[0].End, 1e-9)
}

func TestMergeIdempotent(t *testing.T) {
	inputs := [][]types.Segment{
		{seg(0, 5, "A"), seg(5.1, 5.3, "B"), seg(5.4, 10, "A")},
		{seg(0, 1, "A"), seg(1.1, 2, "A"), seg(2.5, 3, "B"), seg(3.2, 9, "B"), seg(9.4, 12, "A")},
		{seg(0, 0.5, "A"), seg(0.6, 1, "B"), seg(1.5, 2, "C"), seg(10, 20, "C")},
	}
	policies := []Policy{
		TurnPolicy(0.5, 0),
		TurnPolicy(0.5, 2),
		ShortSegmentPolicy(1, 3),
	}
	for _, in := range inputs {
		for _, p := range policies {
			once := Merge(in, p)
			assert.Equal(t, once, Merge(once, p))
			for i, s := range once {
				assert.InDelta(t, s.End-s.Start, s.Duration, 1e-9)
				if i > 0 {
					prev := once[i-1]
					assert.LessOrEqual(t, prev.Start, s.Start)
					if prev.Speaker == s.Speaker {
						assert.Greater(t, s.Start-prev.End, p.MaxGap)
					}
				}
			}
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, TurnPolicy(0.5, 2).Validate())
	assert.ErrorIs(t, TurnPolicy(-1, 2).Validate(), ErrInvalidPolicy)
	assert.ErrorIs(t, ShortSegmentPolicy(1, -3).Validate(), ErrInvalidPolicy)
}
