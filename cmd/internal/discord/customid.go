package discord

import "strings"

const (
	customIDSep    = ":"
	maxCustomIDLen = 100
)

// CustomID joins a routing prefix and arguments into a component custom_id.
// Parts must not contain ':'. The result is truncated to Discord's limit.
func CustomID(prefix string, parts ...string) string {
	id := prefix
	if len(parts) > 0 {
		id += customIDSep + strings.Join(parts, customIDSep)
	}
	if len(id) > maxCustomIDLen {
		id = id[:maxCustomIDLen]
	}
	return id
}

// SplitCustomID returns the routing prefix and arguments of a custom_id.
func SplitCustomID(id string) (string, []string) {
	prefix, rest, ok := strings.Cut(id, customIDSep)
	if !ok {
		return prefix, nil
	}
	return prefix, strings.Split(rest, customIDSep)
}
