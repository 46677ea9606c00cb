// Package access holds the permission predicate the DVR consumes. There is no
// authentication here; callers arrive with an already-resolved Actor.
package access

import "errors"

// Mask is a permission bit set.
type Mask uint32

const (
	// Admin may see and modify every entry.
	Admin Mask = 1 << iota
	// Recorder may create entries and modify its own.
	Recorder
)

// ErrDenied is returned when the actor lacks every requested permission.
var ErrDenied = errors.New("access denied")

// Actor is an authenticated principal with granted permissions.
type Actor struct {
	Name  string
	Perms Mask
}

// Verify allows the operation when the actor holds at least one of the
// requested permission bits.
func Verify(a Actor, requested Mask) error {
	if a.Perms&requested != 0 {
		return nil
	}
	return ErrDenied
}

// CanModify reports whether the actor may mutate an entry owned by owner.
// Admins modify everything; recorders only their own entries.
func CanModify(a Actor, owner string) bool {
	if a.Perms&Admin != 0 {
		return true
	}
	return a.Perms&Recorder != 0 && a.Name == owner
}
