package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*ModelManager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewModelManager(dir)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return m, dir
}

func TestAddGetRoundTrip(t *testing.T) {
	m, dir := newTestManager(t)

	added, err := m.AddModel("dolly", "databricks/dolly-v2-3b", "openai", "http://gpu:8080/v1")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "models", "manifests", "dolly.yaml"))

	got, err := m.GetModel("dolly")
	require.NoError(t, err)
	assert.Equal(t, added, got)
	assert.Equal(t, "databricks/dolly-v2-3b", got.ModelID)
	assert.True(t, got.AddedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestManifestIsYAML(t *testing.T) {
	m, dir := newTestManager(t)
	_, err := m.AddModel("tiny", "tiny-llama", "", "")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "models", "manifests", "tiny.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: tiny\n")
	assert.Contains(t, string(data), "model_id: tiny-llama\n")
	assert.NotContains(t, string(data), "base_url")
}

func TestListSortedAndSkipsForeignFiles(t *testing.T) {
	m, dir := newTestManager(t)
	for _, alias := range []string{"zeta", "alpha", "mid"} {
		_, err := m.AddModel(alias, alias+"-id", "", "")
		require.NoError(t, err)
	}
	manifests := filepath.Join(dir, "models", "manifests")
	require.NoError(t, os.WriteFile(filepath.Join(manifests, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(manifests, "broken.yaml"), []byte("name: [unclosed\n"), 0o644))

	models, err := m.ListModels()
	require.NoError(t, err)
	var names []string
	for _, mm := range models {
		names = append(names, mm.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestRemoveModel(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.AddModel("gone", "some-id", "", "")
	require.NoError(t, err)

	require.NoError(t, m.RemoveModel("gone"))
	_, err = m.GetModel("gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.RemoveModel("gone"), ErrNotFound)
}

func TestResolveModel(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.AddModel("dolly", "databricks/dolly-v2-3b", "echo", "http://x/v1")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want Resolution
	}{
		{"dolly", Resolution{ModelID: "databricks/dolly-v2-3b", Backend: "echo", BaseURL: "http://x/v1", Alias: "dolly"}},
		{"databricks/dolly-v2-3b", Resolution{ModelID: "databricks/dolly-v2-3b"}},
		{"unregistered", Resolution{ModelID: "unregistered"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := m.ResolveModel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddModelRejectsBadInput(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.AddModel("../escape", "id", "", "")
	assert.Error(t, err)
	_, err = m.AddModel("ok", " ", "", "")
	assert.Error(t, err)
}

func TestDefaultBaseDir(t *testing.T) {
	assert.Equal(t, ".chatstream", filepath.Base(DefaultBaseDir()))
}
