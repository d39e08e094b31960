package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// MaxNickLen is the rune budget for a display nickname.
const MaxNickLen = 10

// ErrPromptingUnsupported reports that the initial candidate was not
// acceptable and the connection's authentication method cannot carry an
// interactive retry prompt. The transport layer may retry the whole
// authentication attempt with a prompt-capable method.
var ErrPromptingUnsupported = errors.New("nickname invalid and interactive prompting unavailable")

// Prompter issues one question to the connecting party and blocks until it
// answers. It fails when the remote side closes the connection, which
// aborts the negotiation.
type Prompter func(question string) (string, error)

// Claimer reserves nicknames case-insensitively. A successful Claim holds
// the name until it is either promoted to a registered member or released
// with the returned token.
type Claimer interface {
	Claim(name string) (ClaimToken, bool)
}

type nickFailure int

const (
	nickOK nickFailure = iota
	nickEmpty
	nickTooLong
	nickTaken
)

// Negotiator resolves a connecting party's display name before admission.
type Negotiator struct {
	names Claimer
}

func NewNegotiator(names Claimer) *Negotiator {
	return &Negotiator{names: names}
}

// Negotiate produces exactly one outcome for a connection: a unique,
// claimed nickname, or an error. A valid initial candidate is accepted
// without issuing any prompt. An invalid candidate enters a retry loop
// whose prompt names the failure; the loop has no attempt ceiling and ends
// only on a valid answer or on prompt failure (connection closed). With a
// nil prompt the negotiation fails immediately with
// ErrPromptingUnsupported.
//
// On success the returned name is held as a claim in the registry and the
// returned token identifies that claim; the caller owns it until the
// session registers or the connection dies, and may release only its own
// claim through the token.
func (n *Negotiator) Negotiate(candidate string, prompt Prompter) (string, ClaimToken, error) {
	for attempt := 0; ; attempt++ {
		name := normalizeNick(candidate)
		token, failure := n.check(name)
		if failure == nickOK {
			return name, token, nil
		}
		if prompt == nil {
			return "", 0, ErrPromptingUnsupported
		}

		answer, err := prompt(promptText(failure, attempt))
		if err != nil {
			return "", 0, fmt.Errorf("nickname negotiation aborted: %w", err)
		}
		candidate = answer
	}
}

// check runs the acceptance checks in order: emptiness, length, then
// uniqueness. A passing name leaves the registry claim held.
func (n *Negotiator) check(name string) (ClaimToken, nickFailure) {
	if name == "" {
		return 0, nickEmpty
	}
	if len([]rune(name)) > MaxNickLen {
		return 0, nickTooLong
	}
	token, ok := n.names.Claim(name)
	if !ok {
		return 0, nickTaken
	}
	return token, nickOK
}

// normalizeNick applies the same escape/control stripping as message
// sanitizing, so a nickname cannot smuggle styling into other members'
// terminals. No truncation: over-length names are re-prompted, not cut.
func normalizeNick(candidate string) string {
	clean := ansi.Strip(candidate)
	clean = strings.Map(dropControl, clean)
	return strings.TrimSpace(clean)
}

func promptText(failure nickFailure, attempt int) string {
	switch failure {
	case nickEmpty:
		if attempt == 0 {
			return "a nickname is required to join"
		}
		return "nickname cannot be empty, try another"
	case nickTooLong:
		return fmt.Sprintf("nickname is too long (max %d characters), try another", MaxNickLen)
	case nickTaken:
		return "that nickname is already taken, try another"
	}
	return "choose a nickname"
}
