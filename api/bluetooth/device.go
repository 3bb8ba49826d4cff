package bluetooth

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DevNameMaxLen is the storage bound of a device display name, including
// the terminator slot kept for callers that copy names into fixed buffers.
const DevNameMaxLen = 64

// MacAddress holds a Bluetooth hardware address, for example "AA:BB:CC:DD:EE:FF".
type MacAddress string

// String converts a MacAddress to a string.
func (m MacAddress) String() string {
	return string(m)
}

// DeviceData holds a single device record of a device directory.
type DeviceData struct {
	// ID holds the backend-specific identity key of the device.
	// For the bus backend this is the object path, for the shell backend
	// it is the hardware address.
	ID string `json:"id" codec:"ID"`

	// Address holds the Bluetooth MAC address of the device.
	Address MacAddress `json:"address,omitempty" codec:"Address,omitempty"`

	// Name holds the display name of the device, bounded to DevNameMaxLen-1 bytes.
	Name string `json:"name" codec:"Name"`

	// Icon holds a freedesktop.org icon name hint. Only set by the bus backend.
	Icon string `json:"icon,omitempty" codec:"Icon,omitempty"`

	// UUIDs holds the advertised profile UUIDs. Only set by the bus backend.
	UUIDs uuid.UUIDs `json:"uuids,omitempty" codec:"UUIDs,omitempty"`

	// Connected, Paired and Trusted hold the state flags reported at scan time.
	// Only set by the bus backend.
	Connected TriState `json:"connected,omitempty" codec:"Connected,omitempty"`
	Paired    TriState `json:"paired,omitempty" codec:"Paired,omitempty"`
	Trusted   TriState `json:"trusted,omitempty" codec:"Trusted,omitempty"`
}

// TriState is a flag that may be absent.
type TriState int8

const (
	Unknown TriState = iota
	No
	Yes
)

// TriStateOf converts a boolean to a TriState.
func TriStateOf(b bool) TriState {
	if b {
		return Yes
	}

	return No
}

// String converts a TriState to a string.
func (t TriState) String() string {
	switch t {
	case No:
		return "no"
	case Yes:
		return "yes"
	}

	return "unknown"
}

// BoundName truncates name so that it fits into DevNameMaxLen bytes
// including a terminator, without splitting a UTF-8 sequence.
func BoundName(name string) string {
	if len(name) < DevNameMaxLen {
		return name
	}

	cut := DevNameMaxLen - 1
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}

	return name[:cut]
}

// MatchesName reports whether identity is a leading portion of the device's display name.
// An empty identity matches nothing.
func (d DeviceData) MatchesName(identity string) bool {
	return identity != "" && strings.HasPrefix(d.Name, identity)
}
