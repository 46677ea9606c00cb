package dvr

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/dvrd/internal/channels"
	"github.com/ManuGH/dvrd/internal/config"
	"github.com/ManuGH/dvrd/internal/epg"
	"github.com/ManuGH/dvrd/internal/timers"
)

type fakeStore struct {
	saved   map[string]map[string]any
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]map[string]any)}
}

func (s *fakeStore) Save(uuid string, conf map[string]any) error {
	s.saved[uuid] = conf
	return nil
}

func (s *fakeStore) Remove(uuid string) error {
	delete(s.saved, uuid)
	s.removed = append(s.removed, uuid)
	return nil
}

func (s *fakeStore) Each(fn func(uuid string, conf map[string]any)) error {
	for k, v := range s.saved {
		fn(k, v)
	}
	return nil
}

type notifierEvent struct {
	kind   string
	uuid   string
	status string
}

type upcomingEvent struct {
	uuid  string
	start int64
}

type fakeNotifier struct {
	events   []notifierEvent
	upcoming []upcomingEvent
}

func (n *fakeNotifier) EntryAdded(uuid, status string) {
	n.events = append(n.events, notifierEvent{"added", uuid, status})
}

func (n *fakeNotifier) EntryUpdated(uuid, status string) {
	n.events = append(n.events, notifierEvent{"updated", uuid, status})
}

func (n *fakeNotifier) EntryDeleted(uuid string) {
	n.events = append(n.events, notifierEvent{"deleted", uuid, ""})
}

func (n *fakeNotifier) Upcoming(uuid string, start int64) {
	n.upcoming = append(n.upcoming, upcomingEvent{uuid, start})
}

// fakeRecorder mimics the capture task: Subscribe runs under the engine lock
// and writes the recorder-owned fields directly, like the real pipeline does
// when it re-enters the core.
type fakeRecorder struct {
	produceFile  bool
	dir          string
	subscribed   []string
	unsubscribed map[string]StopCode
}

func (r *fakeRecorder) Subscribe(e *Entry) {
	r.subscribed = append(r.subscribed, e.UUID)
	if r.produceFile {
		e.Filename = filepath.Join(r.dir, e.UUID+".mkv")
		e.Directory = r.dir
		e.recState = RecRunning
	}
}

func (r *fakeRecorder) Unsubscribe(e *Entry, code StopCode) {
	r.unsubscribed[e.UUID] = code
}

type harness struct {
	t     *testing.T
	eng   *Engine
	clock *timers.ManualClock
	store *fakeStore
	notif *fakeNotifier
	rec   *fakeRecorder
	inv   *channels.Inventory
	guide *epg.Guide
	profs *config.Profiles
	rules *Rules
	def   *config.Profile
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local) // a Monday
	clock := timers.NewManualClock(now)

	inv := channels.NewInventory()
	inv.Put(&channels.Channel{UUID: "ch1", Name: "One", Enabled: true})
	inv.Put(&channels.Channel{UUID: "ch2", Name: "Two", Enabled: true})

	def := &config.Profile{
		UUID:          "default",
		Name:          config.DefaultProfileName,
		RetentionDays: 31,
		UpdateWindow:  86400,
		Container:     config.ContainerMatroska,
		Storage:       t.TempDir(),
	}
	profs := config.NewProfiles(def)

	rules := NewRules(filepath.Join(t.TempDir(), "rules.json"))
	store := newFakeStore()
	notif := &fakeNotifier{}
	rec := &fakeRecorder{
		produceFile:  true,
		dir:          t.TempDir(),
		unsubscribed: make(map[string]StopCode),
	}
	guide := epg.NewGuide()

	eng := New(Options{
		Clock:    clock,
		Store:    store,
		Notifier: notif,
		Channels: inv,
		Guide:    guide,
		Profiles: profs,
		Recorder: rec,
		Rules:    rules,
	})
	return &harness{
		t: t, eng: eng, clock: clock, store: store, notif: notif,
		rec: rec, inv: inv, guide: guide, profs: profs, rules: rules, def: def,
	}
}

func (h *harness) unix() int64 { return h.clock.Now().Unix() }

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.eng.Wheel().RunDue()
}

func (h *harness) create(conf map[string]any) *Entry {
	h.t.Helper()
	e, err := h.eng.Create("", conf)
	require.NoError(h.t, err)
	return e
}

func (h *harness) baseConf() map[string]any {
	now := h.unix()
	return map[string]any{
		"channel": "ch1",
		"title":   "News",
		"start":   now + 60,
		"stop":    now + 120,
	}
}

// checkInvariants asserts index consistency, timer monogamy, same-channel
// start uniqueness and monotone derived windows over the whole store.
func (h *harness) checkInvariants() {
	h.t.Helper()
	h.eng.mu.Lock()
	defer h.eng.mu.Unlock()

	type key struct {
		ch    string
		start int64
	}
	starts := make(map[key]int)
	for id, e := range h.eng.entries {
		require.Equal(h.t, id, e.UUID)
		if e.ChannelID != "" {
			_, ok := h.eng.byChannel[e.ChannelID][id]
			require.True(h.t, ok, "entry %s missing from channel index", id)
		}
		_, ok := h.eng.byConfig[e.ConfigRef][id]
		require.True(h.t, ok, "entry %s missing from config index", id)
		if e.AutorecID != "" {
			_, ok := h.eng.byAutorec[e.AutorecID][id]
			require.True(h.t, ok, "entry %s missing from autorec index", id)
		}
		if e.TimerecID != "" {
			_, ok := h.eng.byTimerec[e.TimerecID][id]
			require.True(h.t, ok, "entry %s missing from timerec index", id)
		}
		if e.Start < e.Stop {
			require.LessOrEqual(h.t, h.eng.EffectiveStart(e), e.Start)
			require.LessOrEqual(h.t, e.Stop, h.eng.EffectiveStop(e))
		}
		if e.schedState != SchedCompleted && e.ChannelID != "" {
			starts[key{e.ChannelID, e.Start}]++
		}
	}
	for k, n := range starts {
		require.Equal(h.t, 1, n, "duplicate start %d on channel %s", k.start, k.ch)
	}
	for ch, m := range h.eng.byChannel {
		for id := range m {
			e, ok := h.eng.entries[id]
			require.True(h.t, ok, "channel index holds dead entry %s", id)
			require.Equal(h.t, ch, e.ChannelID)
		}
	}
}
