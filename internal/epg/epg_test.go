package epg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/dvrd/internal/lang"
)

func TestEpisodeDisplay(t *testing.T) {
	tests := []struct {
		name string
		num  *EpisodeNum
		want string
	}{
		{"nil", nil, ""},
		{"full", &EpisodeNum{Season: 3, Episode: 4, EpisodeCount: 10}, "Season 3.Episode 4/10"},
		{"no count", &EpisodeNum{Season: 1, Episode: 2}, "Season 1.Episode 2"},
		{"episode only", &EpisodeNum{Episode: 7}, "Episode 7"},
		{"season only", &EpisodeNum{Season: 2}, "Season 2"},
		{"empty", &EpisodeNum{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.num.Display())
		})
	}
}

func TestEpisodeFilename(t *testing.T) {
	assert.Equal(t, "S01E02", (&EpisodeNum{Season: 1, Episode: 2}).Filename())
	assert.Equal(t, "E09", (&EpisodeNum{Episode: 9}).Filename())
	assert.Equal(t, "S04", (&EpisodeNum{Season: 4}).Filename())
	assert.Equal(t, "", (*EpisodeNum)(nil).Filename())
}

func TestGuideSchedulingOrder(t *testing.T) {
	g := NewGuide()
	b1 := &Broadcast{ID: 1, ChannelID: "ch", Start: 300, Stop: 400}
	b2 := &Broadcast{ID: 2, ChannelID: "ch", Start: 100, Stop: 200}
	b3 := &Broadcast{ID: 3, ChannelID: "other", Start: 50, Stop: 60}
	g.Add(b1)
	g.Add(b2)
	g.Add(b3)

	sched := g.ChannelSchedule("ch")
	assert.Equal(t, []*Broadcast{b2, b1}, sched)
	assert.Equal(t, b3, g.ByID(3))

	g.Remove(b2)
	assert.Equal(t, []*Broadcast{b1}, g.ChannelSchedule("ch"))
	assert.Nil(t, g.ByID(2))
}

func TestRefCounting(t *testing.T) {
	b := &Broadcast{ID: 1}
	b.GetRef()
	b.GetRef()
	b.PutRef()
	assert.Equal(t, 1, b.RefCount())
}

func TestBestDescription(t *testing.T) {
	b := &Broadcast{Summary: lang.New("short", "eng")}
	assert.Equal(t, "short", b.BestDescription().Get())

	b.Description = lang.New("long", "eng")
	assert.Equal(t, "long", b.BestDescription().Get())
}
