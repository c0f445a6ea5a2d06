package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

func TestGreedyTwoGroups(t *testing.T) {
	embeddings := [][]float64{
		{1, 0.05, 0},
		{1, 0, 0.05},
		{1, 0.1, 0.1},
		{0, 1, 0.05},
		{0.05, 1, 0},
	}
	clusters := Greedy(embeddings, 0.75)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4}}, clusters)

	assert.Equal(t,
		[]string{"SPEAKER_00", "SPEAKER_00", "SPEAKER_00", "SPEAKER_01", "SPEAKER_01"},
		AssignLabels(len(embeddings), clusters))
}

func TestGreedyComparesAgainstSeedOnly(t *testing.T) {
	// 1 is close to the seed, 2 is close to 1 but not to the seed
	embeddings := [][]float64{
		{1, 0},
		{0.8, 0.6},
		{0.28, 0.96},
	}
	clusters := Greedy(embeddings, 0.75)
	assert.Equal(t, [][]int{{0, 1}}, clusters)
	assert.Equal(t, []string{"SPEAKER_00", "SPEAKER_00", "SPEAKER_01"}, AssignLabels(3, clusters))
}

func TestGreedySkipsMissingEmbeddings(t *testing.T) {
	embeddings := [][]float64{
		nil,
		{1, 0},
		{0, 1},
		{1, 0.01},
	}
	clusters := Greedy(embeddings, 0.75)
	assert.Equal(t, [][]int{{1, 3}}, clusters)

	labels := AssignLabels(len(embeddings), clusters)
	assert.Equal(t, []string{"SPEAKER_01", "SPEAKER_00", "SPEAKER_02", "SPEAKER_00"}, labels)
}

func TestGreedyNoClusters(t *testing.T) {
	clusters := Greedy([][]float64{{1, 0}, {0, 1}}, 0.75)
	assert.Empty(t, clusters)
	assert.Equal(t, []string{"SPEAKER_00", "SPEAKER_01"}, AssignLabels(2, clusters))
}

func TestGreedySkipsUnusableEmbeddings(t *testing.T) {
	embeddings := [][]float64{
		{0, 0},
		{1, 0},
		{1, 0, 0},
		{1, 0.01},
		{},
		{1, 0.01, 0},
	}
	clusters := Greedy(embeddings, 0.75)
	assert.Equal(t, [][]int{{1, 3}, {2, 5}}, clusters)
	assert.Equal(t,
		[]string{"SPEAKER_02", "SPEAKER_00", "SPEAKER_01", "SPEAKER_00", "SPEAKER_03", "SPEAKER_01"},
		AssignLabels(len(embeddings), clusters))
}

func TestDBSCANLabels(t *testing.T) {
	points := [][]float64{
		{1, 0},
		{0, 1},
		{1, 0.05},
		{0.05, 1},
		{-1, 0},
	}
	labels, err := DBSCAN(points, 0.3, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0, 1, Noise}, labels)
}

func TestDBSCANSinglePointCore(t *testing.T) {
	labels, err := DBSCAN([][]float64{{1, 0}, {0, 1}}, 0.3, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, labels)
}

func TestDBSCANIncomparablePointsAreNoise(t *testing.T) {
	points := [][]float64{
		{1, 0},
		{0, 0},
		{1, 0.05},
		{1, 0, 0},
	}
	labels, err := DBSCAN(points, 0.3, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, Noise, 0, Noise}, labels)
}

func TestDBSCANRejectsBadParams(t *testing.T) {
	_, err := DBSCAN(nil, -0.1, 2)
	assert.Error(t, err)
	_, err = DBSCAN(nil, 0.3, 0)
	assert.Error(t, err)
}

func samplesOf(embeddings ...[]float64) []types.UnknownSample {
	out := make([]types.UnknownSample, len(embeddings))
	for i, e := range embeddings {
		out[i] = types.UnknownSample{ID: int64(i + 1), Embedding: e, File: "meeting.wav", Start: float64(i), End: float64(i + 1)}
	}
	return out
}

func twoTightGroups() [][]float64 {
	return [][]float64{
		{1, 0.01, 0, 0},
		{1, 0.02, 0, 0},
		{1, 0, 0.01, 0},
		{1, 0, 0, 0.02},
		{0.01, 1, 0, 0},
		{0.02, 1, 0, 0},
		{0, 1, 0.01, 0},
		{0, 1, 0, 0.02},
	}
}

func TestSuggestLooseSmallGroupIsNoise(t *testing.T) {
	embeddings := append(twoTightGroups(), []float64{0, 0, 1, 0}, []float64{0, 0, 0, 1})
	suggestions, err := Suggest(samplesOf(embeddings...), DefaultEps, DefaultMinSamples)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, 4, suggestions[0].Count)
	assert.Equal(t, 4, suggestions[1].Count)
	assert.Equal(t, []int64{1, 2, 3, 4}, suggestions[0].IDs())
	assert.Equal(t, []int64{5, 6, 7, 8}, suggestions[1].IDs())
}

func TestSuggestCohesiveSmallGroup(t *testing.T) {
	embeddings := append(twoTightGroups(), []float64{0, 0, 1, 0}, []float64{0, 0, 1, 0.1})
	suggestions, err := Suggest(samplesOf(embeddings...), DefaultEps, DefaultMinSamples)
	require.NoError(t, err)
	require.Len(t, suggestions, 3)
	assert.Equal(t, 2, suggestions[2].Count)
	assert.Equal(t, 2, suggestions[2].ClusterID)
	assert.Equal(t, "meeting.wav", suggestions[2].Samples[0].File)
}

func TestSuggestTooFewSamples(t *testing.T) {
	suggestions, err := Suggest(samplesOf([]float64{1, 0}), DefaultEps, DefaultMinSamples)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestDoesNotMutateInput(t *testing.T) {
	in := samplesOf([]float64{1, 0}, []float64{1, 0.01})
	before := append([]types.UnknownSample(nil), in...)
	_, err := Suggest(in, DefaultEps, DefaultMinSamples)
	require.NoError(t, err)
	assert.Equal(t, before, in)
}

func TestSuggestIgnoresDegenerateSamples(t *testing.T) {
	in := samplesOf(
		[]float64{0, 0},
		[]float64{1, 0},
		[]float64{1, 0.01},
		nil,
		[]float64{1, 0, 0},
	)
	suggestions, err := Suggest(in, DefaultEps, DefaultMinSamples)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, []int64{2, 3}, suggestions[0].IDs())

	suggestions, err = Suggest(samplesOf([]float64{0, 0}, []float64{0, 0}), DefaultEps, DefaultMinSamples)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}
