package theme

import (
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Profile describes terminal rendering capabilities derived from TERM.
type Profile struct {
	Color bool
}

var (
	profileCache sync.Map
	knownTerms   = map[string]Profile{
		"dumb":           {Color: false},
		"vt100":          {Color: false},
		"ansi":           {Color: true},
		"linux":          {Color: true},
		"xterm":          {Color: true},
		"xterm-256color": {Color: true},
		"screen":         {Color: true},
		"tmux":           {Color: true},
		"xterm-kitty":    {Color: true},
		"wezterm":        {Color: true},
	}
)

// ProfileFor maps a TERM value to a capability profile. An empty TERM
// (no PTY request) renders plain; unknown non-empty terminals are assumed
// color-capable.
func ProfileFor(term string) Profile {
	key := strings.ToLower(strings.TrimSpace(term))
	if key == "" {
		return Profile{Color: false}
	}
	if cached, ok := profileCache.Load(key); ok {
		return cached.(Profile)
	}

	profile, ok := knownTerms[key]
	if !ok {
		profile = Profile{Color: true}
	}
	profileCache.Store(key, profile)
	return profile
}

// Theme renders chat lines. Styles carry a forced color profile because
// the process's stdout is not a terminal; the remote end is. Recipients
// whose terminal cannot render color get escape-stripped delivery at the
// sink instead.
type Theme struct {
	nick    []lipgloss.Style // palette, indexed by nickname hash
	notice  lipgloss.Style
	echo    lipgloss.Style
	welcome lipgloss.Style
}

// ANSI palette for nicknames, skipping black and white so names stay
// legible on either background.
var nickColors = []string{"1", "2", "3", "4", "5", "6", "9", "10", "11", "12", "13", "14"}

// Default returns the server-wide theme used for broadcast rendering.
func Default() *Theme {
	// lipgloss ignores the output's profile unless set explicitly on the
	// renderer; io.Discard is not a TTY, so detection would yield Ascii.
	r := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI256))
	r.SetColorProfile(termenv.ANSI256)
	return build(r)
}

// Plain returns a style-free theme: same layout, no escape sequences.
func Plain() *Theme {
	r := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.Ascii))
	r.SetColorProfile(termenv.Ascii)
	return build(r)
}

func build(r *lipgloss.Renderer) *Theme {
	t := &Theme{
		notice:  r.NewStyle().Faint(true),
		echo:    r.NewStyle().Faint(true),
		welcome: r.NewStyle().Bold(true),
	}
	for _, c := range nickColors {
		t.nick = append(t.nick, r.NewStyle().Bold(true).Foreground(lipgloss.Color(c)))
	}
	return t
}

// Nick renders a nickname in its palette color. The color is deterministic
// per name, case-insensitively, so a member keeps one color for the whole
// session and across rejoins.
func (t *Theme) Nick(name string) string {
	h := fnv.New32a()
	_, _ = io.WriteString(h, strings.ToLower(name))
	return t.nick[int(h.Sum32())%len(t.nick)].Render(name)
}

// Message renders the recipient view of a chat line.
func (t *Theme) Message(author, body string) string {
	return fmt.Sprintf("%s: %s", t.Nick(author), body)
}

// Echo renders the author's own view of a chat line.
func (t *Theme) Echo(body string) string {
	return t.echo.Render("> " + body)
}

// Notice renders a system notice (join/leave).
func (t *Theme) Notice(text string) string {
	return t.notice.Render(" * " + text)
}

// Welcome renders the private greeting shown only to a joining member.
func (t *Theme) Welcome(name string, others int) string {
	var tail string
	switch others {
	case 0:
		tail = "you are the only user connected"
	case 1:
		tail = "there is 1 other user connected"
	default:
		tail = fmt.Sprintf("there are %d other users connected", others)
	}
	return t.welcome.Render(fmt.Sprintf("Welcome, %s! %s.", name, tail))
}
