package domain

import "maps"

// Payload is the data flowing between the steps of a tree.
// It is treated as immutable: steps receive a clone and produce new values.
type Payload map[string]any

// Clone returns a shallow copy of the payload. A nil payload clones to an empty one.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	maps.Copy(out, p)
	return out
}

// Merge returns a new payload holding p overlaid with other.
func (p Payload) Merge(other Payload) Payload {
	out := p.Clone()
	maps.Copy(out, other)
	return out
}
