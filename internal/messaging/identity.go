package messaging

import "strings"

var personalSuffixes = []string{"@c.us", "@s.whatsapp.net"}

const groupSuffix = "@g.us"

// IsGroupChat reports whether the address belongs to a group conversation.
// Group chats are never driven by the menu bot.
func IsGroupChat(address string) bool {
	return strings.HasSuffix(strings.TrimSpace(address), groupSuffix)
}

// NormalizeIdentity strips transport suffixes and a leading plus so that the
// same participant always maps to the same key.
func NormalizeIdentity(address string) string {
	id := strings.TrimSpace(address)
	for _, suffix := range personalSuffixes {
		id = strings.TrimSuffix(id, suffix)
	}
	if i := strings.IndexByte(id, ':'); i > 0 {
		// multi-device addresses carry ":<device>" before the suffix
		id = id[:i]
	}
	return strings.TrimPrefix(id, "+")
}

// ChatLink returns a wa.me link that opens a chat with the identity.
func ChatLink(identity string) string {
	if identity == "" {
		return ""
	}
	return "https://wa.me/" + NormalizeIdentity(identity)
}
