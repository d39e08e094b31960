package server

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/ssh"

	"clamor/internal/chat"
	"clamor/internal/router"
	"clamor/internal/theme"
)

type fakeAuthContext struct {
	context.Context
	mu     sync.Mutex
	values map[any]any
	user   string
	remote net.Addr
}

func newFakeAuthContext(ctx context.Context, user string) *fakeAuthContext {
	return &fakeAuthContext{
		Context: ctx,
		values:  map[any]any{},
		user:    user,
		remote:  &net.TCPAddr{IP: net.ParseIP("203.0.113.60"), Port: 2022},
	}
}

func (f *fakeAuthContext) Lock()                         { f.mu.Lock() }
func (f *fakeAuthContext) Unlock()                       { f.mu.Unlock() }
func (f *fakeAuthContext) User() string                  { return f.user }
func (f *fakeAuthContext) SessionID() string             { return "session-auth" }
func (f *fakeAuthContext) ClientVersion() string         { return "ssh-test-client" }
func (f *fakeAuthContext) ServerVersion() string         { return "ssh-test-server" }
func (f *fakeAuthContext) RemoteAddr() net.Addr          { return f.remote }
func (f *fakeAuthContext) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 2222}
}
func (f *fakeAuthContext) Permissions() *ssh.Permissions { return &ssh.Permissions{} }
func (f *fakeAuthContext) SetValue(key, value interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}
func (f *fakeAuthContext) Value(key interface{}) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

// scriptedChallenger answers challenge rounds from a script and records
// each round's instruction text.
type scriptedChallenger struct {
	answers      []string
	instructions []string
}

func (c *scriptedChallenger) challenge(_, instruction string, questions []string, _ []bool) ([]string, error) {
	c.instructions = append(c.instructions, instruction)
	if len(c.answers) == 0 {
		return nil, errors.New("connection closed")
	}
	answer := c.answers[0]
	c.answers = c.answers[1:]
	out := make([]string, len(questions))
	for i := range questions {
		out[i] = answer
	}
	return out, nil
}

func TestAuthAcceptsValidUsernameWithoutChallenge(t *testing.T) {
	registry := chat.NewRegistry()
	handler := keyboardInteractiveAuth(chat.NewNegotiator(registry), registry, testLogger())
	ctx := newFakeAuthContext(context.Background(), "ab")
	challenger := &scriptedChallenger{}

	if !handler(ctx, challenger.challenge) {
		t.Fatal("auth rejected a valid username")
	}
	if len(challenger.instructions) != 0 {
		t.Fatalf("expected zero challenge rounds, got %v", challenger.instructions)
	}
	name, ok := router.Identity(ctx)
	if !ok || name != "ab" {
		t.Fatalf("Identity() = %q, %v", name, ok)
	}
	if _, ok := registry.Claim("AB"); ok {
		t.Fatal("accepted name should be claimed")
	}
}

func TestAuthPromptsForMissingUsername(t *testing.T) {
	registry := chat.NewRegistry()
	handler := keyboardInteractiveAuth(chat.NewNegotiator(registry), registry, testLogger())
	ctx := newFakeAuthContext(context.Background(), "")
	challenger := &scriptedChallenger{answers: []string{"bob"}}

	if !handler(ctx, challenger.challenge) {
		t.Fatal("auth rejected after a valid answer")
	}
	if len(challenger.instructions) != 1 || !strings.Contains(challenger.instructions[0], "required") {
		t.Fatalf("instructions = %v, want one required prompt", challenger.instructions)
	}
	name, ok := router.Identity(ctx)
	if !ok || name != "bob" {
		t.Fatalf("Identity() = %q, %v", name, ok)
	}
}

func TestAuthPromptsWhenUsernameTaken(t *testing.T) {
	registry := chat.NewRegistry()
	if _, ok := registry.Claim("bob"); !ok {
		t.Fatal("setup claim failed")
	}
	handler := keyboardInteractiveAuth(chat.NewNegotiator(registry), registry, testLogger())
	ctx := newFakeAuthContext(context.Background(), "Bob")
	challenger := &scriptedChallenger{answers: []string{"carol"}}

	if !handler(ctx, challenger.challenge) {
		t.Fatal("auth rejected after switching to a free nickname")
	}
	if len(challenger.instructions) != 1 || !strings.Contains(challenger.instructions[0], "taken") {
		t.Fatalf("instructions = %v, want one taken prompt", challenger.instructions)
	}
	name, _ := router.Identity(ctx)
	if name != "carol" {
		t.Fatalf("Identity() = %q, want %q", name, "carol")
	}
}

func TestAuthRejectsWhenChallengeFails(t *testing.T) {
	registry := chat.NewRegistry()
	handler := keyboardInteractiveAuth(chat.NewNegotiator(registry), registry, testLogger())
	ctx := newFakeAuthContext(context.Background(), "")
	challenger := &scriptedChallenger{} // first round fails

	if handler(ctx, challenger.challenge) {
		t.Fatal("auth accepted a dead connection")
	}
	if _, ok := router.Identity(ctx); ok {
		t.Fatal("identity recorded for a rejected connection")
	}
}

func TestAuthReleasesClaimWhenConnectionDiesBeforeRegistration(t *testing.T) {
	registry := chat.NewRegistry()
	handler := keyboardInteractiveAuth(chat.NewNegotiator(registry), registry, testLogger())
	base, cancel := context.WithCancel(context.Background())
	ctx := newFakeAuthContext(base, "ab")

	if !handler(ctx, (&scriptedChallenger{}).challenge) {
		t.Fatal("auth rejected a valid username")
	}
	if _, ok := registry.Claim("ab"); ok {
		t.Fatal("name should still be claimed right after auth")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		if _, ok := registry.Claim("ab"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("claim was not released after connection close")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAuthStaleReleaseLeavesReclaimedNameHeld(t *testing.T) {
	registry := chat.NewRegistry()
	handler := keyboardInteractiveAuth(chat.NewNegotiator(registry), registry, testLogger())
	room := chat.NewRouter(registry, theme.Plain(), testLogger())

	base, cancel := context.WithCancel(context.Background())
	first := newFakeAuthContext(base, "bob")
	if !handler(first, (&scriptedChallenger{}).challenge) {
		t.Fatal("auth rejected a valid username")
	}

	// The first connection joins and then leaves, freeing the name
	// through normal unregistration. Its close-time release has not
	// fired yet.
	session := chat.NewSession("bob", &recordSink{})
	room.Register(session)
	room.Unregister(session)

	// A second connection negotiates the now-free name.
	second := newFakeAuthContext(context.Background(), "bob")
	if !handler(second, (&scriptedChallenger{}).challenge) {
		t.Fatal("auth rejected the freed nickname")
	}

	// The first connection finally closes. Its release carries a token
	// for a claim that no longer exists and must leave the second
	// connection's claim intact.
	cancel()
	time.Sleep(50 * time.Millisecond)
	if _, ok := registry.Claim("bob"); ok {
		t.Fatal("a closed connection's release freed a nickname held by a newer one")
	}
}
