package config

import "sync"

// Container selects the output muxer for a recording.
const (
	ContainerNotSet   = -1
	ContainerMatroska = 1
	ContainerPass     = 2
	ContainerMPEGTS   = 3
	ContainerMPEGPS   = 4
)

// DefaultProfileName is the name of the implicit profile entries fall back to.
const DefaultProfileName = ""

// Profile is a named bundle of recording defaults. Entries reference a
// profile by name or UUID; unresolved references fall back to the default.
type Profile struct {
	UUID          string
	Name          string
	RetentionDays int64
	ExtraTimePre  int64 // minutes
	ExtraTimePost int64 // minutes
	UpdateWindow  int64 // seconds, guide rebind tolerance
	Container     int
	Storage       string

	ChannelInTitle    bool
	OmitTitle         bool
	EpisodeInTitle    bool
	SubtitleInTitle   bool
	DateInTitle       bool
	TimeInTitle       bool
	EpisodeBeforeDate bool

	TitleDir   bool
	ChannelDir bool
	DirPerDay  bool
}

// Profiles is the registry of recording profiles.
type Profiles struct {
	mu     sync.RWMutex
	byUUID map[string]*Profile
	byName map[string]*Profile
	def    *Profile
}

// NewProfiles builds a registry seeded with the default profile.
func NewProfiles(def *Profile) *Profiles {
	p := &Profiles{
		byUUID: make(map[string]*Profile),
		byName: make(map[string]*Profile),
		def:    def,
	}
	p.byUUID[def.UUID] = def
	p.byName[def.Name] = def
	return p
}

// Put inserts or replaces a profile.
func (p *Profiles) Put(prof *Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.byUUID[prof.UUID]; ok {
		delete(p.byName, old.Name)
	}
	p.byUUID[prof.UUID] = prof
	p.byName[prof.Name] = prof
}

// ByUUID looks up a profile, nil when unknown.
func (p *Profiles) ByUUID(uuid string) *Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byUUID[uuid]
}

// ByName looks up a profile by name, nil when unknown.
func (p *Profiles) ByName(name string) *Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byName[name]
}

// Default returns the fallback profile.
func (p *Profiles) Default() *Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.def
}

// Resolve maps an entry's profile reference (UUID or name, possibly stale)
// to a live profile, falling back to the default.
func (p *Profiles) Resolve(ref string) *Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if prof, ok := p.byUUID[ref]; ok {
		return prof
	}
	if prof, ok := p.byName[ref]; ok {
		return prof
	}
	return p.def
}
