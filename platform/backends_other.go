//go:build !linux

package platform

// The BlueZ service only exists on Linux.
var bluezBackend Constructor
