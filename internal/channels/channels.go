// Package channels is the channel inventory consumed by the DVR core:
// lookup by UUID or name, the enabled flag, and per-channel recording padding.
package channels

import (
	"sync"
)

// Channel is one receiver channel. ExtraTimePre/Post are per-channel padding
// minutes; 0 or -1 means unset, falling through to the DVR profile.
type Channel struct {
	UUID          string
	Name          string
	Icon          string
	Enabled       bool
	ExtraTimePre  int64
	ExtraTimePost int64
}

// Inventory holds the channel set. The receiver's channel scanner owns the
// content; the DVR only reads it.
type Inventory struct {
	mu     sync.RWMutex
	byUUID map[string]*Channel
	byName map[string]*Channel
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{
		byUUID: make(map[string]*Channel),
		byName: make(map[string]*Channel),
	}
}

// Put inserts or replaces a channel.
func (inv *Inventory) Put(ch *Channel) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if old, ok := inv.byUUID[ch.UUID]; ok {
		delete(inv.byName, old.Name)
	}
	inv.byUUID[ch.UUID] = ch
	inv.byName[ch.Name] = ch
}

// Remove drops a channel from the inventory.
func (inv *Inventory) Remove(uuid string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if ch, ok := inv.byUUID[uuid]; ok {
		delete(inv.byName, ch.Name)
		delete(inv.byUUID, uuid)
	}
}

// ByUUID looks up a channel, nil when unknown.
func (inv *Inventory) ByUUID(uuid string) *Channel {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.byUUID[uuid]
}

// ByName looks up a channel by its display name, nil when unknown.
func (inv *Inventory) ByName(name string) *Channel {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.byName[name]
}
