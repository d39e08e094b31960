package chat

import (
	"testing"

	"clamor/internal/theme"
)

func mustClaim(t *testing.T, registry *Registry, name string) ClaimToken {
	t.Helper()
	token, ok := registry.Claim(name)
	if !ok {
		t.Fatalf("Claim(%q) should succeed", name)
	}
	return token
}

func TestClaimIsCaseInsensitive(t *testing.T) {
	registry := NewRegistry()

	mustClaim(t, registry, "Alice")
	if _, ok := registry.Claim("alice"); ok {
		t.Fatal("folded duplicate claim should fail")
	}
	if _, ok := registry.Claim("ALICE"); ok {
		t.Fatal("folded duplicate claim should fail")
	}
	mustClaim(t, registry, "bob")
}

func TestReleaseFreesUnregisteredClaim(t *testing.T) {
	registry := NewRegistry()

	token := mustClaim(t, registry, "alice")
	registry.Release("ALICE", token)
	mustClaim(t, registry, "alice")
}

func TestReleaseRequiresMatchingToken(t *testing.T) {
	registry := NewRegistry()

	token := mustClaim(t, registry, "alice")
	registry.Release("alice", token+1)
	if _, ok := registry.Claim("alice"); ok {
		t.Fatal("claim must survive a release with a foreign token")
	}
	registry.Release("alice", token)
	mustClaim(t, registry, "alice")
}

func TestStaleReleaseCannotFreeNewerClaim(t *testing.T) {
	registry := NewRegistry()
	room := NewRouter(registry, theme.Plain(), nil)

	// First connection claims the name, joins, then disconnects. Its
	// post-disconnect release has not fired yet.
	first := mustClaim(t, registry, "bob")
	bob := NewSession("bob", &recordSink{})
	room.Register(bob)
	room.Unregister(bob)

	// A second connection claims the now-free name.
	mustClaim(t, registry, "bob")

	// The first connection's release finally fires. It must not touch
	// the second connection's claim.
	registry.Release("bob", first)
	if _, ok := registry.Claim("bob"); ok {
		t.Fatal("stale release freed a name held by a newer negotiation")
	}
}

func TestReleaseDoesNotEvictRegisteredMember(t *testing.T) {
	registry := NewRegistry()
	room := NewRouter(registry, theme.Plain(), nil)

	alice := admit(t, registry, room, "alice")

	registry.Release("alice", 1)
	if _, ok := registry.Claim("Alice"); ok {
		t.Fatal("registered member's name must stay held after Release")
	}
	if got := registry.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}

	room.Unregister(alice.session)
	mustClaim(t, registry, "alice")
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	registry := NewRegistry()
	room := NewRouter(registry, theme.Plain(), nil)

	for _, name := range []string{"alice", "bob", "carol"} {
		admit(t, registry, room, name)
	}

	snapshot := registry.Snapshot()
	want := []string{"alice", "bob", "carol"}
	if len(snapshot) != len(want) {
		t.Fatalf("Snapshot() length = %d, want %d", len(snapshot), len(want))
	}
	for i, name := range want {
		if snapshot[i].Name() != name {
			t.Fatalf("Snapshot()[%d] = %q, want %q", i, snapshot[i].Name(), name)
		}
	}
}

func TestLenTracksMembership(t *testing.T) {
	registry := NewRegistry()
	room := NewRouter(registry, theme.Plain(), nil)

	if registry.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", registry.Len())
	}
	alice := admit(t, registry, room, "alice")
	bob := admit(t, registry, room, "bob")
	if registry.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", registry.Len())
	}

	room.Unregister(alice.session)
	room.Unregister(bob.session)
	if registry.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after unregistration", registry.Len())
	}
}
