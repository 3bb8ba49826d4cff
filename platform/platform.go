// Package platform holds the static table of available backends.
package platform

import (
	"runtime"
	"strings"

	"github.com/bluetuith-org/btdirectory/api/bluetooth"
	"github.com/bluetuith-org/btdirectory/api/config"
	"github.com/bluetuith-org/btdirectory/shim"
)

type BluetoothStack string

const (
	BluezStack BluetoothStack = "BlueZ (DBus)"
	ShellStack BluetoothStack = "bluetoothctl (shell)"
)

// Constructor initializes a backend and returns its handle.
type Constructor func(cfg config.Configuration) (bluetooth.Backend, error)

// Entry describes one registered backend.
type Entry struct {
	// Ident is the full identifier of the backend.
	Ident string

	// Stack describes the Bluetooth stack the backend drives.
	Stack BluetoothStack

	// New is nil if the backend is not implemented on this platform.
	New Constructor
}

// Registry is an ordered backend table.
type Registry []Entry

// Backends returns the backends known to this build, in lookup order.
func Backends() Registry {
	return Registry{
		{Ident: "bluetoothctl", Stack: ShellStack, New: shim.NewShimBackend},
		{Ident: "bluez", Stack: BluezStack, New: bluezBackend},
	}
}

// Lookup returns the first entry whose identifier starts with identifier.
// An empty identifier never matches.
func (r Registry) Lookup(identifier string) (Entry, bool) {
	if identifier == "" {
		return Entry{}, false
	}

	for _, e := range r {
		if strings.HasPrefix(e.Ident, identifier) {
			return e, true
		}
	}

	return Entry{}, false
}

// Idents returns the identifiers of all entries.
func (r Registry) Idents() []string {
	idents := make([]string, 0, len(r))
	for _, e := range r {
		idents = append(idents, e.Ident)
	}

	return idents
}

// Implemented reports whether the backend can be initialized on this platform.
func (e Entry) Implemented() bool {
	return e.New != nil
}

// Info returns the platform information for the backend.
func (e Entry) Info() PlatformInfo {
	return NewPlatformInfo(e.Stack)
}

// PlatformInfo describes platform-specific information.
type PlatformInfo struct {
	OS    string         `json:"os,omitempty" codec:"os,omitempty"`
	Stack BluetoothStack `json:"bluetooth_stack,omitempty" codec:"bluetooth_stack,omitempty"`
}

// NewPlatformInfo returns a new PlatformInfo.
func NewPlatformInfo(stack BluetoothStack) PlatformInfo {
	return PlatformInfo{
		OS:    runtime.GOOS + " (" + runtime.GOARCH + ")",
		Stack: stack,
	}
}

// String converts a BluetoothStack to a string.
func (b BluetoothStack) String() string {
	return string(b)
}
