package chat

import (
	"strings"
	"sync"
)

// Registry is the process-wide set of connected sessions and the single
// piece of state shared across connection goroutines. One coarse mutex
// covers membership changes and broadcast fan-out, so every delivery sees
// a consistent snapshot of the membership: no member added mid-broadcast
// sees a partial fan-out, and no member removed mid-broadcast receives a
// message after its removal is visible to others.
//
// Nickname uniqueness is case-insensitive and enforced through claims: a
// negotiation reserves the folded name with Claim before the session
// exists, and registration consumes the reservation. The registry holds
// non-owning references; each session stays owned by its connection
// goroutine.
type Registry struct {
	mu        sync.Mutex
	members   []*Session             // insertion order
	named     map[string]*Session    // folded nickname -> member
	reserved  map[string]ClaimToken  // folded nicknames claimed mid-negotiation
	nextClaim ClaimToken
}

// ClaimToken identifies one claim, so a release can only undo the claim
// that minted it. A later claim on the same folded name gets a fresh
// token, making a stale release from a dead connection a no-op.
type ClaimToken uint64

func NewRegistry() *Registry {
	return &Registry{
		named:    make(map[string]*Session),
		reserved: make(map[string]ClaimToken),
	}
}

func fold(name string) string { return strings.ToLower(name) }

// Claim reserves name if no member holds it and no other negotiation has
// claimed it. On success it returns the token that scopes the eventual
// Release to this claim.
func (r *Registry) Claim(name string) (ClaimToken, bool) {
	key := fold(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.named[key]; ok {
		return 0, false
	}
	if _, ok := r.reserved[key]; ok {
		return 0, false
	}
	r.nextClaim++
	r.reserved[key] = r.nextClaim
	return r.nextClaim, true
}

// Release frees the claim identified by token, if it never became a
// member. It is a no-op once the claim was consumed by registration, and
// a no-op for a name that has since been re-claimed by a newer
// negotiation: only the matching token can free a reservation.
func (r *Registry) Release(name string, token ClaimToken) {
	key := fold(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reserved[key] != token {
		return
	}
	delete(r.reserved, key)
}

// Snapshot returns the current members in insertion order, for read-only
// iteration.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.members))
	copy(out, r.members)
	return out
}

// Len reports the current member count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// insertLocked promotes s's claim to membership. Caller holds r.mu.
func (r *Registry) insertLocked(s *Session) {
	key := fold(s.Name())
	delete(r.reserved, key)
	r.named[key] = s
	r.members = append(r.members, s)
}

// removeLocked drops s from the membership, freeing its nickname. Reports
// whether s was present, so removal side effects run exactly once. Caller
// holds r.mu.
func (r *Registry) removeLocked(s *Session) bool {
	for i, m := range r.members {
		if m != s {
			continue
		}
		r.members = append(r.members[:i], r.members[i+1:]...)
		delete(r.named, fold(s.Name()))
		return true
	}
	return false
}
