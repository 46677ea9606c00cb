package dvr

import (
	"fmt"
	"os"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/renameio/v2"
)

// RecordMode selects the duplicate-detection policy of an autorec rule.
type RecordMode int

const (
	RecordAll RecordMode = iota
	RecordDifferentEpisode
	RecordDifferentSubtitle
	RecordDifferentDescription
	RecordOncePerWeek
	RecordOncePerDay
)

// AutorecRule produces entries from matching future broadcasts. The matching
// itself happens outside the engine; the engine consults the rule for entry
// defaults and for the dedup record mode.
type AutorecRule struct {
	UUID       string     `json:"uuid"`
	Name       string     `json:"name"`
	Record     RecordMode `json:"record"`
	StartExtra int64      `json:"start_extra"`
	StopExtra  int64      `json:"stop_extra"`
	Config     string     `json:"config"`
	Priority   int        `json:"priority"`
	Retention  int64      `json:"retention"`
	Owner      string     `json:"owner"`
	Creator    string     `json:"creator"`
	Comment    string     `json:"comment"`
	Directory  string     `json:"directory"`
}

// TimerecRule produces a single entry at a recurring clock time, independent
// of the guide. Spawn points at the one live entry the rule currently owns.
type TimerecRule struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Config    string `json:"config"`
	Priority  int    `json:"priority"`
	Retention int64  `json:"retention"`
	Owner     string `json:"owner"`
	Creator   string `json:"creator"`
	Comment   string `json:"comment"`
	Directory string `json:"directory"`

	Spawn *Entry `json:"-"`
}

type rulesFile struct {
	Autorecs []*AutorecRule `json:"autorecs"`
	Timerecs []*TimerecRule `json:"timerecs"`
}

// Rules is the registry of autorec and timerec rules, persisted as one JSON
// file that is replaced atomically on every change.
type Rules struct {
	mu       sync.RWMutex
	path     string
	autorecs map[string]*AutorecRule
	timerecs map[string]*TimerecRule
}

// NewRules builds an empty registry persisting to path.
func NewRules(path string) *Rules {
	return &Rules{
		path:     path,
		autorecs: make(map[string]*AutorecRule),
		timerecs: make(map[string]*TimerecRule),
	}
}

// Load reads the rules file. A missing file is an empty registry.
func (r *Rules) Load() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read rules: %w", err)
	}
	var f rulesFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse rules: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range f.Autorecs {
		r.autorecs[a.UUID] = a
	}
	for _, t := range f.Timerecs {
		r.timerecs[t.UUID] = t
	}
	return nil
}

func (r *Rules) saveLocked() error {
	f := rulesFile{}
	for _, a := range r.autorecs {
		f.Autorecs = append(f.Autorecs, a)
	}
	for _, t := range r.timerecs {
		f.Timerecs = append(f.Timerecs, t)
	}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	if err := renameio.WriteFile(r.path, raw, 0o644); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	return nil
}

// PutAutorec inserts or replaces an autorec rule and persists the registry.
func (r *Rules) PutAutorec(a *AutorecRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autorecs[a.UUID] = a
	return r.saveLocked()
}

// PutTimerec inserts or replaces a timerec rule and persists the registry.
func (r *Rules) PutTimerec(t *TimerecRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timerecs[t.UUID] = t
	return r.saveLocked()
}

// RemoveAutorec drops a rule and persists the registry.
func (r *Rules) RemoveAutorec(uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.autorecs, uuid)
	return r.saveLocked()
}

// RemoveTimerec drops a rule and persists the registry.
func (r *Rules) RemoveTimerec(uuid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.timerecs, uuid)
	return r.saveLocked()
}

// Autorec looks up a rule, nil when unknown.
func (r *Rules) Autorec(uuid string) *AutorecRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.autorecs[uuid]
}

// Timerec looks up a rule, nil when unknown.
func (r *Rules) Timerec(uuid string) *TimerecRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.timerecs[uuid]
}

// Autorecs lists every autorec rule ordered by UUID.
func (r *Rules) Autorecs() []*AutorecRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AutorecRule, 0, len(r.autorecs))
	for _, a := range r.autorecs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}

// Timerecs lists every timerec rule ordered by UUID.
func (r *Rules) Timerecs() []*TimerecRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TimerecRule, 0, len(r.timerecs))
	for _, t := range r.timerecs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}
