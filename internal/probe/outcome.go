// Package probe gathers evidence about a handle on one platform and
// classifies it as available, taken or unknown.
package probe

import (
	"fmt"
	"strings"
)

type Outcome int

const (
	Unknown Outcome = iota
	Available
	Taken
)

func (o Outcome) String() string {
	switch o {
	case Available:
		return "available"
	case Taken:
		return "taken"
	default:
		return "unknown"
	}
}

// Definite reports whether o is Available or Taken.
func (o Outcome) Definite() bool {
	return o == Available || o == Taken
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available":
		return Available, nil
	case "taken":
		return Taken, nil
	case "unknown":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("invalid outcome %q", s)
}
