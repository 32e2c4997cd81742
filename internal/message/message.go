package message

import "strconv"

// Message is the minimal shape every message has.
// Everything else is an opt-in capability, see traits.go.
type Message interface {
	GetKind() Kind
	// GetAdapter returns the originating adapter, nil when unknown.
	GetAdapter() *AdapterRef
	// IsBackMode reports whether the message was looped back rather than freshly produced.
	IsBackMode() bool
}

// AdapterRef identifies the adapter a message came from.
// It never owns the adapter and is only used for diagnostics and routing.
type AdapterRef struct {
	ID   uint64 `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (a *AdapterRef) String() string {
	if a == nil {
		return "<nil>"
	}
	if a.Name != "" {
		return a.Name
	}
	return "adapter#" + strconv.FormatUint(a.ID, 10)
}

// Base is embedded by every concrete message.
type Base struct {
	Adapter  *AdapterRef `json:"adapter,omitempty"`
	BackMode bool        `json:"backMode,omitempty"`
}

func (b *Base) GetAdapter() *AdapterRef { return b.Adapter }

func (b *Base) IsBackMode() bool { return b.BackMode }

// Raw carries a message of a kind the core has no variant for.
type Raw struct {
	Base
	Kind    Kind   `json:"kind,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

func (m *Raw) GetKind() Kind { return m.Kind }
