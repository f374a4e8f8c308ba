// Package userdb is the user verifier store collaborator contract
// (spec.md §4.C, §6): something the authenticator can ask "does this
// username exist, and if so what is its SRP verifier record" without
// caring how that answer is stored.
package userdb

import (
	"context"
	"sync"

	"github.com/aspia-go/peerauth/sessiontype"
	"github.com/aspia-go/peerauth/srp"
	"golang.org/x/text/cases"
)

// Record is what a Store yields for a username: everything the
// authenticator needs to run the SRP exchange and to gate session types.
type Record struct {
	Salt     []byte
	Verifier []byte
	GroupID  srp.GroupID

	AllowedSessionMask sessiontype.Mask
	Enabled            bool
}

// Store is the read-only collaborator the authenticator consults during
// the Identify state. Implementations must be safe for concurrent reads;
// the authenticator never mutates through this interface.
type Store interface {
	// Find looks up username (already normalized by NormalizeUsername)
	// and reports whether it exists. A missing or disabled user is not
	// an error: the caller (the authenticator) substitutes a synthetic
	// record so that timing and wire behavior do not reveal which case
	// occurred.
	Find(ctx context.Context, normalizedUsername string) (Record, bool, error)
}

var caser = cases.Fold()

// NormalizeUsername case-folds username under Unicode default
// case-folding (not a simple ASCII lower-case), so that lookups are
// consistent across scripts, per spec.md §4.C.
func NormalizeUsername(username string) string {
	return caser.String(username)
}

// MapStore is an in-memory Store backed by a map, guarded by a RWMutex so
// concurrent handshakes can read it while an administrator updates it.
// Grounded on the teacher's package-level `var users = map[string]*opaque.User{}`
// in cmd/server/main.go, generalized into a proper concurrent-safe type.
type MapStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMapStore returns an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{records: make(map[string]Record)}
}

// Put installs or replaces the record for username. username is
// normalized before storing, so later lookups are insensitive to case and
// Unicode fold variants.
func (s *MapStore) Put(username string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[NormalizeUsername(username)] = rec
}

// Remove deletes username's record, if any.
func (s *MapStore) Remove(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, NormalizeUsername(username))
}

// Find implements Store.
func (s *MapStore) Find(_ context.Context, normalizedUsername string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[normalizedUsername]
	return rec, ok, nil
}
