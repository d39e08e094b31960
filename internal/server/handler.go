package server

import (
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"clamor/internal/chat"
	"clamor/internal/router"
	"clamor/internal/termio"
	"clamor/internal/theme"
)

// chatMiddleware is the innermost handler: it owns the connection from
// shell readiness to disconnect and never calls next. It builds the line
// terminal over the session channel, constructs the chat session with the
// negotiated nickname, tracks window-change events, and blocks in the
// session's input loop until the member quits or the channel closes.
func chatMiddleware(room *chat.Router, logger *log.Logger) wish.Middleware {
	return func(ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			name, ok := router.Identity(sess.Context())
			if !ok {
				// The identity gate runs before this handler.
				return
			}

			pty, windows, hasPTY := sess.Pty()
			termType := ""
			if hasPTY {
				termType = pty.Term
			}

			var opts []termio.Option
			if !theme.ProfileFor(termType).Color {
				opts = append(opts, termio.WithStripANSI())
			}
			terminal := termio.New(sess, name+"> ", opts...)

			session := chat.NewSession(name, terminal)
			if hasPTY {
				session.Resize(pty.Window.Height, pty.Window.Width)
				_ = terminal.Resize(pty.Window.Width, pty.Window.Height)
			}

			done := make(chan struct{})
			defer close(done)
			go trackWindowChanges(windows, done, session, terminal)

			connLogger := logger.With("nick", name, "remote", sess.RemoteAddr())
			connLogger.Info("session active", "term", termType, "pty", hasPTY)
			session.Run(terminal, room)
			connLogger.Info("session closed", "state", session.State())
		}
	}
}

// trackWindowChanges mutates session geometry in place on window-change
// events. A nil channel (no PTY) parks the loop until done closes.
func trackWindowChanges(windows <-chan ssh.Window, done <-chan struct{}, session *chat.Session, terminal *termio.Terminal) {
	for {
		select {
		case w, ok := <-windows:
			if !ok {
				return
			}
			session.Resize(w.Height, w.Width)
			_ = terminal.Resize(w.Width, w.Height)
		case <-done:
			return
		}
	}
}
