package dvr

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/dvrd/internal/epg"
)

// TitleStem builds the on-disk filename stem from the profile's format
// flags. Components join with "." in a fixed order; the channel name is a
// prefix terminated by "-" rather than a separated component.
func (eng *Engine) TitleStem(e *Entry) string {
	prof := eng.profiles.Resolve(e.ConfigRef)
	t := time.Unix(e.Start, 0).Local()

	var parts []string
	if !prof.OmitTitle {
		if s := cleanComponent(e.Title.Get()); s != "" {
			parts = append(parts, s)
		}
	}
	ep := episodeFilename(e)
	if prof.EpisodeInTitle && prof.EpisodeBeforeDate && ep != "" {
		parts = append(parts, ep)
	}
	if prof.SubtitleInTitle {
		if s := cleanComponent(e.Subtitle.Get()); s != "" {
			parts = append(parts, s)
		}
	}
	if prof.DateInTitle {
		parts = append(parts, t.Format("2006-01-02"))
	}
	if prof.TimeInTitle {
		parts = append(parts, t.Format("15-04"))
	}
	if prof.EpisodeInTitle && !prof.EpisodeBeforeDate && ep != "" {
		parts = append(parts, ep)
	}

	stem := strings.Join(parts, ".")
	if prof.ChannelInTitle && e.ChannelName != "" {
		stem = cleanComponent(e.ChannelName) + "-" + stem
	}
	return stem
}

// episodeFilename renders the compact SxxEyy form, from the bound broadcast
// when available, else parsed back out of the stored discriminator string.
func episodeFilename(e *Entry) string {
	if e.Broadcast != nil && e.Broadcast.Episode != nil {
		return e.Broadcast.Episode.Filename()
	}
	if e.Episode == "" {
		return ""
	}
	var num epg.EpisodeNum
	for _, part := range strings.Split(e.Episode, ".") {
		var n int
		if _, err := fmt.Sscanf(part, "Season %d", &n); err == nil {
			num.Season = n
			continue
		}
		if _, err := fmt.Sscanf(part, "Episode %d", &n); err == nil {
			num.Episode = n
		}
	}
	return num.Filename()
}

func cleanComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '-'
		case r < 0x20:
			return -1
		default:
			return r
		}
	}, s)
}
