// Package behavior defines the contract between the split control plane
// and the named actions a keymap can invoke, plus a registry that
// resolves behavior names to implementations.
package behavior

// Binding identifies a behavior invocation: the behavior's registered
// name and its two keymap-supplied parameters.
type Binding struct {
	Name   string
	Param1 uint32
	Param2 uint32
}

// Event carries the position/timestamp context of a key state change.
// Timestamp is milliseconds of uptime on the half that observed the
// change.
type Event struct {
	Position  uint16
	Timestamp int64
}

// Behavior is a named action invoked on key press and release. Both
// entry points may fail; the caller decides whether the failure is
// recoverable (the split transport logs and continues, since the
// protocol has no response channel).
type Behavior interface {
	Pressed(binding Binding, event Event) error
	Released(binding Binding, event Event) error
}
