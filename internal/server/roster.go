// Package server tracks which connection holds which username via the Roster type.
package server

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Roster maps claimed usernames to connection IDs. A username belongs to at
// most one connection and a connection holds at most one username.
type Roster struct {
	mu     sync.RWMutex
	byName map[string]string
	byConn map[string]string
}

// NewRoster creates an empty Roster.
func NewRoster() *Roster {
	return &Roster{
		byName: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Claim gives username to connID. A connection re-registering drops its
// previous name in the same step; when the claim is rejected nothing changes.
func (r *Roster) Claim(connID, username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty username", ErrUsernameRejected)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, taken := r.byName[username]; taken && owner != connID {
		return fmt.Errorf("%w: %q is already taken", ErrUsernameRejected, username)
	}

	if previous, ok := r.byConn[connID]; ok {
		delete(r.byName, previous)
	}
	r.byName[username] = connID
	r.byConn[connID] = username
	return nil
}

// Release frees the username held by connID and reports it.
func (r *Roster) Release(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	delete(r.byName, username)
	return username, true
}

// Username returns the name held by connID, if any.
func (r *Roster) Username(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.byConn[connID]
	return username, ok
}

// Users returns the claimed usernames in sorted order.
func (r *Roster) Users() []string {
	r.mu.RLock()
	users := lo.Keys(r.byName)
	r.mu.RUnlock()

	slices.Sort(users)
	return users
}

// Len returns the number of claimed usernames.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
