package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	configPath string
	clip       string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embedding":[0.6,0.8]}`)
	}))
	t.Cleanup(sidecar.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`
logging:
  level: error
sidecar:
  url: %q
storage:
  temp_dir: %q
  output_dir: %q
  database: %q
  voiceprints: %q
google_drive:
  credentials_file: %q
`, sidecar.URL,
		filepath.Join(dir, "temp"),
		filepath.Join(dir, "outputs"),
		filepath.Join(dir, "data", "metadata.db"),
		filepath.Join(dir, "data", "voiceprints.json"),
		filepath.Join(dir, "credentials.json"))

	e := &env{
		configPath: filepath.Join(dir, "config.yaml"),
		clip:       filepath.Join(dir, "alice.wav"),
	}
	require.NoError(t, os.WriteFile(e.configPath, []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(e.clip, []byte("RIFF....WAVE"), 0o644))
	return e
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEnrollListRemove(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no speakers enrolled")

	out, err = e.run(t, "enroll", e.clip, "--name", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "enrolled alice (1 samples)")

	out, err = e.run(t, "enroll", e.clip, "--name", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "enrolled alice (2 samples)")

	out, err = e.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "2")

	out, err = e.run(t, "remove", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "removed alice")

	_, err = e.run(t, "remove", "alice")
	assert.Error(t, err)
}

func TestEnrollRejectsBadSpan(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "enroll", e.clip, "--name", "bob", "--start", "4", "--end", "2")
	assert.Error(t, err)

	_, err = e.run(t, "enroll", e.clip)
	assert.Error(t, err, "--name is required")
}

func TestClearNeedsConfirmation(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "enroll", e.clip, "--name", "alice")
	require.NoError(t, err)

	_, err = e.run(t, "clear")
	assert.Error(t, err)

	out, err := e.run(t, "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")

	out, err = e.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no speakers enrolled")
}

func TestSuggestAndPromoteWithoutSamples(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "suggest")
	require.NoError(t, err)
	assert.Contains(t, out, "no clusters found")

	_, err = e.run(t, "promote", "--name", "carol")
	assert.Error(t, err)

	_, err = e.run(t, "promote", "--name", "carol", "--cluster", "0")
	assert.Error(t, err)
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transcriber: cloud\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "list"})
	assert.Error(t, cmd.Execute())
}
