package commands

import (
	"regexp"
	"strings"

	"github.com/bluetuith-org/btdirectory/api/bluetooth"
)

const (
	deviceMarker    = "Device "
	connectedMarker = "Connected: yes"
)

var escapeSequence = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// ParseDevices extracts device records from lines of the form
// "Device <address> <name>". Other lines are ignored.
func ParseDevices(out Output) ([]bluetooth.DeviceData, error) {
	devices := make([]bluetooth.DeviceData, 0, len(out.Lines))
	seen := make(map[string]struct{}, len(out.Lines))

	for _, line := range out.Lines {
		line = cleanLine(line)
		if !strings.HasPrefix(line, deviceMarker) {
			continue
		}

		address, name, _ := strings.Cut(strings.TrimLeft(line[len(deviceMarker):], " "), " ")
		if address == "" {
			continue
		}
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}

		devices = append(devices, bluetooth.DeviceData{
			ID:      address,
			Address: bluetooth.MacAddress(address),
			Name:    bluetooth.BoundName(name),
		})
	}

	return devices, nil
}

// ParseConnected reports whether the info output contains the connected marker.
func ParseConnected(out Output) (bool, error) {
	for _, line := range out.Lines {
		if strings.Contains(cleanLine(line), connectedMarker) {
			return true, nil
		}
	}

	return false, nil
}

func cleanLine(line string) string {
	return strings.TrimRight(escapeSequence.ReplaceAllString(line, ""), "\r\n")
}
