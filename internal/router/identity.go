package router

import "github.com/charmbracelet/ssh"

type contextKey string

const (
	identityKey contextKey = "clamor-identity"
	metadataKey contextKey = "clamor-session-metadata"
)

// WithIdentity records the negotiated nickname on the connection context.
// It is set exactly once, by the authentication callback, before any
// middleware runs.
func WithIdentity(ctx ssh.Context, name string) {
	ctx.SetValue(identityKey, name)
}

// Identity returns the negotiated nickname recorded on the context.
func Identity(ctx ssh.Context) (string, bool) {
	name, ok := ctx.Value(identityKey).(string)
	return name, ok && name != ""
}

// SessionMetadata returns the facts recorded by the session-metadata
// middleware.
func SessionMetadata(ctx ssh.Context) (Metadata, bool) {
	meta, ok := ctx.Value(metadataKey).(Metadata)
	return meta, ok
}
