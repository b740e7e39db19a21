package bridge

import "strings"

//go:generate go tool stringer -type=State,Variant -output=state_string.go

// State is the state of the bridge controller FSM.
type State uint8

const (
	Idle State = iota
	AddrHigh
	StrobeHighSetup
	StrobeHigh
	AddrLow
	StrobeLowSetup
	StrobeLow
	DtackFinal
	GrantWait
	GrantAckHeld
)

// Owned reports whether the bridge owns the legacy bus while in s.
func (s State) Owned() bool {
	return s != GrantWait && s != GrantAckHeld
}

// Strobing reports whether s is one of the states waiting for DTACK.
func (s State) Strobing() bool {
	return s == StrobeHigh || s == StrobeLow
}

// Variant selects the protocol variant implemented by a Controller.
type Variant uint8

const (
	// Plain only bridges transfers.
	Plain Variant = iota
	// Arbiter also handles bus arbitration (BR/BG/BGACK) and single-phase
	// interrupt acknowledge cycles.
	Arbiter
)

func (v Variant) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(v.String())), nil
}

func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
