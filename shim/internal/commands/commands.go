package commands

import (
	"math"
	"strconv"
	"time"

	"github.com/bluetuith-org/btdirectory/api/bluetooth"
)

// Session commands.
func Version() *Command[NoResult] {
	return (&Command[NoResult]{}).WithArgument(VersionArgument, "")
}

// Adapter commands.
func SetPoweredState(state bool) *Command[NoResult] {
	return &Command[NoResult]{cmd: "power " + StateArgumentValue(state)}
}
func SetPairableState(state bool) *Command[NoResult] {
	return &Command[NoResult]{cmd: "pairable " + StateArgumentValue(state)}
}
func StartDiscovery(timeout time.Duration) *Command[NoResult] {
	return withTimeout(&Command[NoResult]{cmd: "scan on"}, timeout)
}
func GetDevices() *Command[[]bluetooth.DeviceData] {
	return (&Command[[]bluetooth.DeviceData]{cmd: "devices"}).withParser(ParseDevices)
}

// Device commands.
func IsConnected(address bluetooth.MacAddress) *Command[bool] {
	return (&Command[bool]{cmd: "info"}).withParams(address.String()).withParser(ParseConnected)
}
func Pair(address bluetooth.MacAddress) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "pair"}).withParams(address.String())
}
func Trust(address bluetooth.MacAddress) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "trust"}).withParams(address.String())
}
func Connect(address bluetooth.MacAddress, timeout time.Duration) *Command[NoResult] {
	return withTimeout((&Command[NoResult]{cmd: "connect"}).withParams(address.String()), timeout)
}
func Disconnect(address bluetooth.MacAddress, timeout time.Duration) *Command[NoResult] {
	return withTimeout((&Command[NoResult]{cmd: "disconnect"}).withParams(address.String()), timeout)
}

// TimeoutSeconds converts timeout to the whole seconds accepted by the shell, rounding up.
func TimeoutSeconds(timeout time.Duration) int {
	return int(math.Ceil(timeout.Seconds()))
}

// withTimeout sets the shell timeout option; non-positive timeouts leave it unset.
func withTimeout[T any](c *Command[T], timeout time.Duration) *Command[T] {
	if timeout <= 0 {
		return c
	}

	return c.WithArgument(TimeoutArgument, strconv.Itoa(TimeoutSeconds(timeout)))
}
