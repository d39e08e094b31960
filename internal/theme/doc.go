// Package theme owns the chat's visual vocabulary.
//
// It maps TERM values to capability profiles and renders the line formats
// members see: colored nicknames, system notices, author echoes, and the
// private welcome. Components depend on these render methods rather than
// on color literals, so the palette can change without touching the chat
// core.
package theme
