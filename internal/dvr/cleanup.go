package dvr

import (
	"os"
	"path/filepath"
	"strings"
)

// removeArtifactsLocked unlinks the recording file, then walks the directory
// chain upward removing the levels this entry's profile created (title,
// channel, per-day, rule directory). The walk stops at the first non-empty
// directory and never crosses the configured storage root.
func (eng *Engine) removeArtifactsLocked(e *Entry) {
	if e.Filename == "" {
		return
	}
	if eng.watcher != nil {
		eng.watcher.Forget(e.Filename)
	}
	if err := os.Remove(e.Filename); err != nil && !os.IsNotExist(err) {
		eng.logc.Warn().Err(err).Str("uuid", e.UUID).
			Str("filename", e.Filename).Msg("remove recording file")
	}

	prof := eng.profiles.Resolve(e.ConfigRef)
	levels := 0
	if prof.TitleDir {
		levels++
	}
	if prof.ChannelDir {
		levels++
	}
	if prof.DirPerDay {
		levels++
	}
	if e.Directory != "" {
		levels += strings.Count(filepath.Clean(e.Directory), string(filepath.Separator)) + 1
	}

	root := filepath.Clean(prof.Storage)
	dir := filepath.Dir(e.Filename)
	for levels > 0 && dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)) {
		if err := os.Remove(dir); err != nil {
			// non-empty or already gone
			break
		}
		dir = filepath.Dir(dir)
		levels--
	}
}
