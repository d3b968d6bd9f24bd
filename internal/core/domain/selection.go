package domain

// Mode governs whether the selection policy's recommendation is binding
// (Automatic) or merely advisory while an operator pin is in effect
// (Manual).
type Mode int

const (
	ModeAutomatic Mode = iota
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "manual"
	}
	return "automatic"
}

// CurrentSelection is the endpoint identifier new requests bind to, plus the
// mode. It is published atomically by the switch coordinator; the forwarder
// takes a lock-free snapshot at request-acceptance time.
type CurrentSelection struct {
	EndpointID string
	Mode       Mode
}
