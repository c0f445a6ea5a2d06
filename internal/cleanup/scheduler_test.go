package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.wav")
	fresh := filepath.Join(dir, "fresh.wav")
	nested := filepath.Join(dir, "sub", "old_extract.wav")

	require.NoError(t, os.MkdirAll(filepath.Dir(nested), 0o755))
	for _, p := range []string{old, fresh, nested} {
		require.NoError(t, os.WriteFile(p, make([]byte, 2048), 0o644))
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(nested, past, past))

	s := NewScheduler(dir, 60, 24, zerolog.Nop())
	rep := s.Sweep()
	assert.Equal(t, 2, rep.Deleted)
	assert.EqualValues(t, 4096, rep.Bytes)

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Dir(nested))
	assert.NoError(t, err, "directories are kept")
}

func TestSweepMissingDir(t *testing.T) {
	s := NewScheduler(filepath.Join(t.TempDir(), "absent"), 60, 24, zerolog.Nop())
	assert.Zero(t, s.Sweep().Deleted)
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.wav")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	s := NewScheduler(dir, 60, 1, zerolog.Nop())
	s.Start()
	s.Stop()
	s.Stop()

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err), "initial sweep runs on start")
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "temp")
	b := filepath.Join(base, "outputs", "2025")
	require.NoError(t, EnsureDirs(a, "", b))
	assert.DirExists(t, a)
	assert.DirExists(t, b)
}
