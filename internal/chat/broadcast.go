package chat

import (
	"fmt"

	"github.com/charmbracelet/log"

	"clamor/internal/theme"
)

// Router formats each message once and fans it out to every member's sink.
// Fan-out runs under the registry lock so a delivery always reaches a
// consistent snapshot of the membership. Delivery is synchronous and
// best-effort per sink: one broken recipient never blocks the rest.
type Router struct {
	reg    *Registry
	th     *theme.Theme
	logger *log.Logger
}

func NewRouter(reg *Registry, th *theme.Theme, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{reg: reg, th: th, logger: logger}
}

// Register admits s to the room: it joins the registry, every other member
// gets a join notice, and s gets a private welcome naming how many other
// users are connected. The joining member never sees the public notice
// about itself.
func (ro *Router) Register(s *Session) {
	ro.reg.mu.Lock()
	defer ro.reg.mu.Unlock()

	ro.reg.insertLocked(s)
	notice := ro.th.Notice(fmt.Sprintf("%s has joined", s.Name()))
	for _, m := range ro.reg.members {
		if m == s {
			continue
		}
		ro.deliver(m, notice)
	}
	ro.deliver(s, ro.th.Welcome(s.Name(), len(ro.reg.members)-1))
}

// Unregister removes s and announces the departure to every remaining
// member. Calling it again for the same session is a no-op, so teardown
// side effects run exactly once.
func (ro *Router) Unregister(s *Session) {
	ro.reg.mu.Lock()
	defer ro.reg.mu.Unlock()

	if !ro.reg.removeLocked(s) {
		return
	}
	notice := ro.th.Notice(fmt.Sprintf("%s has left", s.Name()))
	for _, m := range ro.reg.members {
		ro.deliver(m, notice)
	}
}

// Broadcast delivers author's message to every current member: the author
// sees a minimal echo, everyone else sees the message prefixed with the
// author's styled nickname.
func (ro *Router) Broadcast(author *Session, body string) {
	ro.reg.mu.Lock()
	defer ro.reg.mu.Unlock()

	echo := ro.th.Echo(body)
	line := ro.th.Message(author.Name(), body)
	for _, m := range ro.reg.members {
		if m == author {
			ro.deliver(m, echo)
			continue
		}
		ro.deliver(m, line)
	}
}

// deliver isolates per-sink failures: a failed write is logged and the
// fan-out carries on.
func (ro *Router) deliver(m *Session, line string) {
	if err := m.send(line); err != nil {
		ro.logger.Warn("sink delivery failed", "member", m.Name(), "err", err)
	}
}
