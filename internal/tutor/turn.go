package tutor

import "fmt"

// Role tags a Turn with its speaker.
type Role int

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText keeps JSON payloads readable.
func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
}

func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "system":
		*r = RoleSystem
	case "user":
		*r = RoleUser
	case "assistant":
		*r = RoleAssistant
	default:
		return fmt.Errorf("unknown role %q", string(b))
	}
	return nil
}

// Turn is one role-tagged message in a Transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// State is the lifecycle state of a Session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateActive        State = "active"
)

// DocumentInfo describes the paper currently embedded in the system turn.
type DocumentInfo struct {
	Name          string `json:"name"`
	Pages         int    `json:"pages"`
	Chars         int    `json:"chars"`
	Truncated     bool   `json:"truncated"`
	LengthWarning bool   `json:"length_warning"`
}

// Snapshot is a read-only copy of a Session.
type Snapshot struct {
	State      State         `json:"state"`
	Document   *DocumentInfo `json:"document,omitempty"`
	Transcript []Turn        `json:"-"`
}

// Conversation returns the turns after the system prompt.
func (s Snapshot) Conversation() []Turn {
	if len(s.Transcript) == 0 {
		return []Turn{}
	}
	out := make([]Turn, 0, len(s.Transcript)-1)
	for _, t := range s.Transcript {
		if t.Role == RoleSystem {
			continue
		}
		out = append(out, t)
	}
	return out
}
