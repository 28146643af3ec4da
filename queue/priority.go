package queue

import "fmt"

/* Priority selects one of the three lanes an item waits in
 * Lanes are drained strictly in order: High, then Medium, then Low
 */
type Priority int

const (
	High Priority = iota + 1
	Medium
	Low
)

// Lanes lists the priorities in polling order
var Lanes = []Priority{High, Medium, Low}

// String returns the string representation of the priority
func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

// NewPriority creates a Priority from a string
func NewPriority(s string) Priority {
	switch s {
	case "high":
		return High
	case "medium":
		return Medium
	case "low":
		return Low
	default:
		return Medium
	}
}

// Validate checks if the priority is valid
func (p Priority) Validate() error {
	if p < High || p > Low {
		return fmt.Errorf("invalid priority: %d", p)
	}
	return nil
}

// MarshalText encodes the priority as its lane name
func (p Priority) MarshalText() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a lane name
func (p *Priority) UnmarshalText(text []byte) error {
	switch string(text) {
	case "high", "medium", "low":
		*p = NewPriority(string(text))
		return nil
	default:
		return fmt.Errorf("invalid priority: %q", text)
	}
}
