package epg

import (
	"fmt"
	"strings"
)

// EpisodeNum carries season/episode/part numbering; zero means unknown.
type EpisodeNum struct {
	Season       int
	SeasonCount  int
	Episode      int
	EpisodeCount int
	Part         int
	PartCount    int
}

// Display renders the long discriminator form used for dedup and matching,
// e.g. "Season 3.Episode 4/10". Empty when nothing is numbered.
func (e *EpisodeNum) Display() string {
	if e == nil {
		return ""
	}
	var parts []string
	if e.Season > 0 {
		parts = append(parts, fmt.Sprintf("Season %d", e.Season))
	}
	if e.Episode > 0 {
		s := fmt.Sprintf("Episode %d", e.Episode)
		if e.EpisodeCount > 0 {
			s += fmt.Sprintf("/%d", e.EpisodeCount)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

// Filename renders the compact "S01E02" form used in output filenames,
// omitting missing components.
func (e *EpisodeNum) Filename() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	if e.Season > 0 {
		fmt.Fprintf(&sb, "S%02d", e.Season)
	}
	if e.Episode > 0 {
		fmt.Fprintf(&sb, "E%02d", e.Episode)
	}
	return sb.String()
}
