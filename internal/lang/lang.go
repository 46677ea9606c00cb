// Package lang holds localized text values keyed by language code, as used by
// EPG metadata (title, subtitle, description). A Str is a plain map so it
// serializes naturally into the persisted entry record.
package lang

import (
	"sort"

	"golang.org/x/text/language"
)

// Str maps a language code ("eng", "de", ...) to text.
type Str map[string]string

// New builds a Str holding a single text under the given language code.
// An empty code stores the text under the undetermined tag.
func New(text, code string) Str {
	if code == "" {
		code = "und"
	}
	return Str{code: text}
}

// Empty reports whether no non-empty text is stored.
func (s Str) Empty() bool {
	for _, v := range s {
		if v != "" {
			return false
		}
	}
	return true
}

// Get returns the text best matching the preferred language codes, in order.
// With no preference (or no match) the first language in sorted key order is
// returned, so the result is deterministic for a given map.
func (s Str) Get(prefs ...string) string {
	if len(s) == 0 {
		return ""
	}
	if len(prefs) > 0 {
		tags := make([]language.Tag, 0, len(s))
		codes := make([]string, 0, len(s))
		for code := range s {
			tag, err := language.Parse(code)
			if err != nil {
				continue
			}
			tags = append(tags, tag)
			codes = append(codes, code)
		}
		if len(tags) > 0 {
			matcher := language.NewMatcher(tags)
			want := make([]language.Tag, 0, len(prefs))
			for _, p := range prefs {
				if tag, err := language.Parse(p); err == nil {
					want = append(want, tag)
				}
			}
			if _, idx, conf := matcher.Match(want...); conf > language.No {
				return s[codes[idx]]
			}
		}
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return s[keys[0]]
}

// Set stores text under the given language code. It reports whether the
// stored value changed.
func (s Str) Set(text, code string) bool {
	if code == "" {
		code = "und"
	}
	if s[code] == text {
		return false
	}
	s[code] = text
	return true
}

// Equal reports whether both maps hold identical texts for identical codes.
func (s Str) Equal(other Str) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		if other[k] != v {
			return false
		}
	}
	return true
}

// SameText reports whether the default-language texts of both values are
// equal and non-empty. Dedup and fuzzy matching compare on this.
func (s Str) SameText(other Str) bool {
	a, b := s.Get(), other.Get()
	return a != "" && a == b
}

// Copy returns an independent copy.
func (s Str) Copy() Str {
	if s == nil {
		return nil
	}
	out := make(Str, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
