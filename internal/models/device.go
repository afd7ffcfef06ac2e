package models

// UnknownBoard is the label for devices whose vendor/product pair does
// not match any known signature. They are still listed, since the user
// may want to target them anyway.
const UnknownBoard = "unknown"

// Device is one attached serial device. Device records are rebuilt on
// every enumeration and never persisted: the set of attached hardware is
// assumed to change between calls.
type Device struct {
	Port      string
	VendorID  string
	ProductID string
	// Board is the matched board name, or UnknownBoard.
	Board string
	// FQBN is the fully qualified board name the toolchain targets.
	// Empty for unmatched devices.
	FQBN string
}

// Known reports whether the device matched a signature in the table.
func (d Device) Known() bool {
	return d.FQBN != ""
}
