package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "progress.json"))

	rec, err := tr.Load()
	require.NoError(t, err)
	assert.Empty(t, rec)
}

func TestSaveLoad(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "out", "progress.json"))

	require.NoError(t, tr.Save(Record{"Springfield": 2, "Shelbyville": 0}))

	rec, err := tr.Load()
	require.NoError(t, err)
	assert.Equal(t, Record{"Springfield": 2, "Shelbyville": 0}, rec)
}

func TestSave_Overwrites(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "progress.json"))

	require.NoError(t, tr.Save(Record{"Springfield": 1}))
	require.NoError(t, tr.Save(Record{"Springfield": 2}))

	rec, err := tr.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, rec["Springfield"])
}

func TestLoad_Malformed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"Springfield": "two"`), 0o644))

	_, err := NewTracker(p).Load()
	assert.Error(t, err)
}

func TestLoad_NegativeCount(t *testing.T) {
	p := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"Springfield": -1}`), 0o644))

	_, err := NewTracker(p).Load()
	assert.Error(t, err)
}

func TestLoad_NullIsEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(p, []byte("null\n"), 0o644))

	rec, err := NewTracker(p).Load()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec)

	rec["Springfield"] = 1
	assert.Equal(t, 1, rec["Springfield"])
}
