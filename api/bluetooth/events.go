package bluetooth

// EventID identifies a session event published on the event bus.
type EventID uint

const (
	EventNone EventID = iota
	EventScanCompleted
	EventConnectIssued
	EventDisconnectIssued
)

// Value returns the numeric topic of the event.
func (e EventID) Value() uint {
	return uint(e)
}

// String converts an EventID to a string.
func (e EventID) String() string {
	switch e {
	case EventScanCompleted:
		return "scan-completed"
	case EventConnectIssued:
		return "connect-issued"
	case EventDisconnectIssued:
		return "disconnect-issued"
	}

	return "none"
}

// ScanEventData describes a completed scan.
type ScanEventData struct {
	Backend    string `json:"backend"`
	Devices    int    `json:"devices"`
	Generation int64  `json:"generation"`
}

// CommandEventData describes an issued connect or disconnect command.
type CommandEventData struct {
	Backend  string `json:"backend"`
	Identity string `json:"identity"`
	Issued   bool   `json:"issued"`
}
