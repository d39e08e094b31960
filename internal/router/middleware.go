package router

import (
	"net"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	wishrecover "github.com/charmbracelet/wish/recover"
)

// Descriptor names one middleware so startup logs and tests can assert
// chain order.
type Descriptor struct {
	Name       string
	Middleware wish.Middleware
}

// DefaultChain wires the startup middleware, outermost first: panic
// recovery, connection logging, session metadata, and the identity gate.
func DefaultChain(logger *log.Logger) []Descriptor {
	if logger == nil {
		logger = log.Default()
	}
	return []Descriptor{
		{Name: "recover", Middleware: wishrecover.Middleware()},
		{Name: "logging", Middleware: logging.MiddlewareWithLogger(logger)},
		{Name: "session-metadata", Middleware: sessionMetadata()},
		{Name: "identity-gate", Middleware: identityGate(logger)},
	}
}

// MiddlewareFromDescriptors returns the chain in the order wish composes
// it. Wish wraps back to front (the last element ends up outermost), so
// the descriptor order is reversed here to keep chain[0] outermost.
func MiddlewareFromDescriptors(chain []Descriptor) []wish.Middleware {
	out := make([]wish.Middleware, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].Middleware)
	}
	return out
}

// Metadata captures per-connection facts recorded before the handler runs.
type Metadata struct {
	RemoteIP string
	Term     string
}

// sessionMetadata records the remote IP and terminal type on the
// connection context for handlers and logs.
func sessionMetadata() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			meta := Metadata{RemoteIP: remoteIP(s)}
			if pty, _, ok := s.Pty(); ok {
				meta.Term = pty.Term
			}
			s.Context().SetValue(metadataKey, meta)
			next(s)
		}
	}
}

// identityGate terminates any session that reached the handler without a
// negotiated nickname on its context.
func identityGate(logger *log.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			if _, ok := Identity(s.Context()); !ok {
				logger.Warn("session without negotiated identity", "user", s.User(), "remote_ip", remoteIP(s))
				_, _ = s.Write([]byte("no negotiated nickname; closing\r\n"))
				return
			}
			next(s)
		}
	}
}

func remoteIP(s ssh.Session) string {
	remote := s.RemoteAddr()
	if remote == nil {
		return "unknown"
	}

	host, _, err := net.SplitHostPort(remote.String())
	if err != nil {
		return remote.String()
	}

	if host == "" {
		return "unknown"
	}
	return host
}
