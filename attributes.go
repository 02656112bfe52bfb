package playground

import (
	"maps"
	"slices"

	"github.com/bt-bridge/agent-playground/shared"
)

type AttributeEntry struct {
	ID    string
	Key   string
	Value string
}

// AttributeInspector exposes the agent's attributes for display. The remote
// side owns them, so writes are refused.
type AttributeInspector struct {
	session *Session
}

func NewAttributeInspector(session *Session) *AttributeInspector {
	return &AttributeInspector{session: session}
}

// Entries lists the attributes sorted by key. It is empty unless connected
// with an agent present.
func (a *AttributeInspector) Entries() []AttributeEntry {
	attrs := a.session.agentAttributes()
	entries := make([]AttributeEntry, 0, len(attrs))
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		entries = append(entries, AttributeEntry{ID: k, Key: k, Value: attrs[k]})
	}
	return entries
}

func (a *AttributeInspector) Set(key, value string) error {
	return shared.ErrAttributesReadOnly
}
