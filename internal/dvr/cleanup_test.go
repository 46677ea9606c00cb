package dvr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveArtifactsWalksUpward(t *testing.T) {
	h := newHarness(t)
	h.def.TitleDir = true
	h.def.DirPerDay = true

	root := h.def.Storage
	dir := filepath.Join(root, "News", "2026-03-02")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	file := filepath.Join(dir, "rec.mkv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	e := &Entry{UUID: "x", Filename: file}
	h.eng.Locked(func() { h.eng.removeArtifactsLocked(e) })

	assert.NoFileExists(t, file)
	assert.NoDirExists(t, dir)
	assert.NoDirExists(t, filepath.Join(root, "News"))
	assert.DirExists(t, root)
}

func TestRemoveArtifactsStopsAtNonEmpty(t *testing.T) {
	h := newHarness(t)
	h.def.TitleDir = true
	h.def.DirPerDay = true

	root := h.def.Storage
	dir := filepath.Join(root, "News", "2026-03-02")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	file := filepath.Join(dir, "rec.mkv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	sibling := filepath.Join(root, "News", "other.mkv")
	require.NoError(t, os.WriteFile(sibling, []byte("y"), 0o644))

	e := &Entry{UUID: "x", Filename: file}
	h.eng.Locked(func() { h.eng.removeArtifactsLocked(e) })

	assert.NoDirExists(t, dir)
	assert.DirExists(t, filepath.Join(root, "News"))
	assert.FileExists(t, sibling)
}

func TestRemoveArtifactsRespectsLevelBudget(t *testing.T) {
	h := newHarness(t)
	// No profile directories configured and no rule directory: only the
	// file itself goes.
	root := h.def.Storage
	dir := filepath.Join(root, "manual")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	file := filepath.Join(dir, "rec.mkv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	e := &Entry{UUID: "x", Filename: file}
	h.eng.Locked(func() { h.eng.removeArtifactsLocked(e) })

	assert.NoFileExists(t, file)
	assert.DirExists(t, dir)
}

func TestRemoveArtifactsRuleDirectory(t *testing.T) {
	h := newHarness(t)
	root := h.def.Storage
	dir := filepath.Join(root, "series", "cooking")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	file := filepath.Join(dir, "rec.mkv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	e := &Entry{UUID: "x", Filename: file, Directory: "series/cooking"}
	h.eng.Locked(func() { h.eng.removeArtifactsLocked(e) })

	assert.NoDirExists(t, dir)
	assert.NoDirExists(t, filepath.Join(root, "series"))
	assert.DirExists(t, root)
}

func TestCancelDeleteRemovesFile(t *testing.T) {
	h := newHarness(t)
	root := h.def.Storage
	file := filepath.Join(root, "rec.mkv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	now := h.unix()
	e := h.create(map[string]any{
		"channel": "ch1", "title": "Old",
		"start": now - 7200, "stop": now - 3600,
		"filename": file,
	})
	require.Equal(t, SchedCompleted, e.State())

	require.NoError(t, h.eng.CancelDelete(e.UUID))
	assert.NoFileExists(t, file)
	assert.Nil(t, h.eng.FindByID(e.UUID))
	assert.Contains(t, h.store.removed, e.UUID)
}
