// Package directory holds the device directory owned by a backend handle.
package directory

import (
	"sync/atomic"

	"github.com/bluetuith-org/btdirectory/api/bluetooth"
	"github.com/puzpuzpuz/xsync/v3"
)

// Directory is an ordered collection of device records, replaced wholesale on every scan.
// Readers always observe a complete snapshot; published snapshots are never mutated.
type Directory struct {
	snapshot   atomic.Pointer[[]bluetooth.DeviceData]
	generation *xsync.Counter
}

// New returns an empty directory.
func New() *Directory {
	d := &Directory{generation: xsync.NewCounter()}
	d.snapshot.Store(&[]bluetooth.DeviceData{})

	return d
}

// Replace publishes devices as the new directory contents and returns the new generation.
// The slice is copied, so the caller may reuse it.
func (d *Directory) Replace(devices []bluetooth.DeviceData) int64 {
	next := make([]bluetooth.DeviceData, len(devices))
	copy(next, devices)

	d.snapshot.Store(&next)
	d.generation.Inc()

	return d.generation.Value()
}

// Clear empties the directory.
func (d *Directory) Clear() {
	d.Replace(nil)
}

// Generation returns the number of snapshots published so far.
func (d *Directory) Generation() int64 {
	return d.generation.Value()
}

// Len returns the number of devices in the current snapshot.
func (d *Directory) Len() int {
	return len(d.load())
}

// Devices returns a copy of the current snapshot.
func (d *Directory) Devices() []bluetooth.DeviceData {
	devices := d.load()
	devicesCopy := make([]bluetooth.DeviceData, len(devices))
	copy(devicesCopy, devices)

	return devicesCopy
}

// CopyNames copies up to len(dst) display names into dst, in directory order.
func (d *Directory) CopyNames(dst []string) int {
	devices := d.load()

	n := 0
	for n < len(dst) && n < len(devices) {
		dst[n] = devices[n].Name
		n++
	}

	return n
}

// Match returns every device whose display name starts with identity, in directory order.
func (d *Directory) Match(identity string) []bluetooth.DeviceData {
	var matches []bluetooth.DeviceData
	for _, dev := range d.load() {
		if dev.MatchesName(identity) {
			matches = append(matches, dev)
		}
	}

	return matches
}

// First returns the first device whose display name starts with identity.
func (d *Directory) First(identity string) (bluetooth.DeviceData, bool) {
	for _, dev := range d.load() {
		if dev.MatchesName(identity) {
			return dev, true
		}
	}

	return bluetooth.DeviceData{}, false
}

func (d *Directory) load() []bluetooth.DeviceData {
	if p := d.snapshot.Load(); p != nil {
		return *p
	}

	return nil
}
