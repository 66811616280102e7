// Package status derives the lifecycle status of a competition from its
// configured boundaries and an explicit evaluation instant.
//
// Everything here is pure: callers supply "now", nothing reads a clock and
// nothing is mutated after construction.
package status

import "fmt"

// Kind is the closed set of lifecycle phases a competition can be in.
//
// The declaration order is the list ordering used by Compare: active
// competitions first, finished ones last. It is not chronological.
type Kind int

const (
	Voting Kind = iota
	Paused
	OpenForSubmissions
	NotOpenYet
	EndingNoSubmissions
	Ended
	EndedNoWinners
	EndedNoSubmissions
)

var kindNames = [...]string{
	Voting:              "voting",
	Paused:              "paused",
	OpenForSubmissions:  "open_for_submissions",
	NotOpenYet:          "not_open_yet",
	EndingNoSubmissions: "ending_no_submissions",
	Ended:               "ended",
	EndedNoWinners:      "ended_no_winners",
	EndedNoSubmissions:  "ended_no_submissions",
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{Voting, Paused, OpenForSubmissions, NotOpenYet, EndingNoSubmissions, Ended, EndedNoWinners, EndedNoSubmissions}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= Voting && k <= EndedNoSubmissions
}

// String returns the machine identifier of the kind.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a machine identifier back to its Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown competition status %q", s)
}

// MarshalText encodes the kind as its machine identifier.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid competition status %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText decodes a machine identifier.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Terminal reports whether the kind is one of the Ended* kinds.
func (k Kind) Terminal() bool {
	return k == Ended || k == EndedNoWinners || k == EndedNoSubmissions
}

// Phase is the position of the kind along the competition timeline:
// not started, submissions, between submissions and voting, voting, over.
// EndingNoSubmissions is first reached when submissions close, so it sits in
// the pause phase even though it lasts through voting.
func (k Kind) Phase() int {
	switch k {
	case NotOpenYet:
		return 0
	case OpenForSubmissions:
		return 1
	case Paused, EndingNoSubmissions:
		return 2
	case Voting:
		return 3
	default:
		return 4
	}
}
