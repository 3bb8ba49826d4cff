package bluetooth

import "time"

// Backend describes one strategy for discovering and controlling devices.
// A Backend value is the handle returned by a successful initialization;
// it is not safe for concurrent use.
type Backend interface {
	// Free releases all device records and any held connection.
	Free() error

	// Scan runs discovery for the given duration and rebuilds the device directory.
	// A timeout less than or equal to zero is normalized to MinScanTimeout.
	// On failure the directory is left at its prior state.
	Scan(timeout time.Duration) error

	// GetDevices copies up to len(dst) display names into dst in directory order,
	// and returns the number of names copied.
	GetDevices(dst []string) int

	// Devices returns a copy of the current device directory.
	Devices() []DeviceData

	// IsConnected queries the live connection state of the directory entries
	// whose display name starts with identity. Unknown identities are not connected.
	IsConnected(identity string) (bool, error)

	// Connect issues the connect command sequence for the device matching identity.
	// A nil error means the commands were issued without a transport failure,
	// not that the device is connected. Already connected devices are left alone.
	Connect(identity string, timeout time.Duration) error

	// Disconnect issues the disconnect command for the device matching identity.
	// Already disconnected devices are left alone.
	Disconnect(identity string, timeout time.Duration) error
}

// MinScanTimeout is the discovery window used when a non-positive scan timeout is requested.
const MinScanTimeout = 1 * time.Second

// NormalizeScanTimeout returns timeout, or MinScanTimeout if timeout is not positive.
func NormalizeScanTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return MinScanTimeout
	}

	return timeout
}
