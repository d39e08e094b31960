package server

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	gossh "golang.org/x/crypto/ssh"

	"clamor/internal/chat"
	"clamor/internal/router"
)

var errMalformedAnswer = errors.New("malformed challenge answer")

// keyboardInteractiveAuth adapts the SSH keyboard-interactive exchange
// into the nickname negotiator's prompt capability. The SSH username is
// the initial candidate; a valid one is accepted without issuing any
// challenge round. Keyboard-interactive is the only auth method the server
// offers, so the SSH layer itself tells clients on other methods that an
// interactive retry is the acceptable path.
func keyboardInteractiveAuth(negotiator *chat.Negotiator, registry *chat.Registry, logger *log.Logger) ssh.KeyboardInteractiveHandler {
	return func(ctx ssh.Context, challenger gossh.KeyboardInteractiveChallenge) bool {
		prompt := func(question string) (string, error) {
			answers, err := challenger("", question, []string{"nickname: "}, []bool{true})
			if err != nil {
				return "", err
			}
			if len(answers) != 1 {
				return "", errMalformedAnswer
			}
			return answers[0], nil
		}

		name, token, err := negotiator.Negotiate(ctx.User(), prompt)
		if err != nil {
			logger.Info("nickname negotiation failed",
				"user", ctx.User(),
				"remote", ctx.RemoteAddr(),
				"err", err,
			)
			return false
		}

		router.WithIdentity(ctx, name)

		// The name stays claimed until the session registers. If the
		// connection dies first, release the claim. The token scopes
		// the release to this negotiation's claim: once the session has
		// registered, or the name has passed to a newer negotiation, the
		// release is a no-op.
		go func() {
			<-ctx.Done()
			registry.Release(name, token)
		}()

		logger.Info("nickname accepted", "nick", name, "remote", ctx.RemoteAddr())
		return true
	}
}
