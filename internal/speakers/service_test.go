package speakers

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/voiceprint"
)

type stubEmbedder struct {
	span  []float64
	whole []float64
	err   error
}

func (s *stubEmbedder) Embed(context.Context, string, float64, float64) ([]float64, error) {
	return s.span, s.err
}

func (s *stubEmbedder) EmbedFile(context.Context, string) ([]float64, error) {
	return s.whole, s.err
}

func setup(t *testing.T, emb *stubEmbedder) (*Service, *voiceprint.Store, *storage.MetadataDB) {
	t.Helper()
	dir := t.TempDir()
	store, err := voiceprint.Open(filepath.Join(dir, "voiceprints.json"), zerolog.Nop())
	require.NoError(t, err)
	db, err := storage.NewMetadataDB(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(store, emb, db, DefaultClusterConfig(), zerolog.Nop()), store, db
}

func TestEnroll(t *testing.T) {
	svc, store, _ := setup(t, &stubEmbedder{span: []float64{1, 0}, whole: []float64{0, 1}})
	ctx := context.Background()

	info, err := svc.Enroll(ctx, " alice ", "alice.wav", nil)
	require.NoError(t, err)
	assert.Equal(t, voiceprint.SpeakerInfo{Name: "alice", Samples: 1}, info)
	assert.Equal(t, [][]float64{{0, 1}}, store.Samples("alice"))

	info, err = svc.Enroll(ctx, "alice", "meeting.wav", &Span{Start: 3, End: 9})
	require.NoError(t, err)
	assert.Equal(t, 2, info.Samples)

	_, err = svc.Enroll(ctx, "  ", "x.wav", nil)
	assert.ErrorIs(t, err, ErrInvalidName)

	assert.Equal(t, []voiceprint.SpeakerInfo{{Name: "alice", Samples: 2}}, svc.List())
}

func TestEnrollEmbedderFailure(t *testing.T) {
	boom := errors.New("sidecar down")
	svc, store, _ := setup(t, &stubEmbedder{err: boom})
	_, err := svc.Enroll(context.Background(), "bob", "bob.wav", nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.Has("bob"))
}

func TestRemoveAndClear(t *testing.T) {
	svc, store, _ := setup(t, &stubEmbedder{whole: []float64{1, 1}})
	ctx := context.Background()
	_, err := svc.Enroll(ctx, "alice", "a.wav", nil)
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, "bob", "b.wav", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Remove("alice"))
	assert.ErrorIs(t, svc.Remove("alice"), voiceprint.ErrSpeakerNotFound)

	require.NoError(t, svc.Clear())
	assert.Empty(t, store.Speakers())
}

func seedUnknowns(t *testing.T, db *storage.MetadataDB, embeddings ...[]float64) []int64 {
	t.Helper()
	var ids []int64
	for i, e := range embeddings {
		id, err := db.AddUnknown(context.Background(), types.UnknownSample{
			Embedding: e, SessionID: "s", File: "m.wav", Start: float64(i), End: float64(i + 2),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestSuggestAndPromoteCluster(t *testing.T) {
	svc, store, db := setup(t, &stubEmbedder{})
	ctx := context.Background()
	ids := seedUnknowns(t, db,
		[]float64{1, 0, 0},
		[]float64{0, 0, 1},
		[]float64{1, 0.05, 0},
		[]float64{0, 1, 0},
		[]float64{0.05, 1, 0},
	)

	suggestions, err := svc.Suggestions(ctx)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, []int64{ids[0], ids[2]}, suggestions[0].IDs())

	before, err := db.ListUnknown(ctx)
	require.NoError(t, err)
	assert.Len(t, before, 5, "suggesting never mutates")

	n, err := svc.PromoteCluster(ctx, "carol", suggestions[0].ClusterID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.Samples("carol"), 2)

	rest, err := db.ListUnknown(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	for _, s := range rest {
		assert.NotContains(t, []int64{ids[0], ids[2]}, s.ID)
	}

	_, err = svc.PromoteCluster(ctx, "dave", 7)
	assert.ErrorIs(t, err, ErrClusterNotFound)
}

func TestPromoteRemovesByIdentity(t *testing.T) {
	svc, store, db := setup(t, &stubEmbedder{})
	ctx := context.Background()
	// identical embeddings in two rows; only the promoted row goes away
	ids := seedUnknowns(t, db, []float64{1, 2}, []float64{1, 2})

	n, err := svc.Promote(ctx, "erin", ids[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, store.Has("erin"))

	rest, err := db.ListUnknown(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[1], rest[0].ID)

	_, err = svc.Promote(ctx, "erin", []int64{999})
	assert.ErrorIs(t, err, ErrNoSamples)
	_, err = svc.Promote(ctx, "", ids)
	assert.ErrorIs(t, err, ErrInvalidName)
}
