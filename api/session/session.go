// Package session provides the facade that callers use to open one
// backend, run device operations against it and read the last error.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/btdirectory/api/bluetooth"
	"github.com/bluetuith-org/btdirectory/api/config"
	"github.com/bluetuith-org/btdirectory/api/errorkinds"
	"github.com/bluetuith-org/btdirectory/api/eventbus"
	"github.com/bluetuith-org/btdirectory/api/logging"
	"github.com/bluetuith-org/btdirectory/platform"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// ErrMsgMaxLen is the size of the error message buffer, including the terminator
// that C-style callers reserve for it.
const ErrMsgMaxLen = 128

// State describes the lifecycle state of a session.
type State int

const (
	Unopened State = iota
	Open
	Closed
)

// String converts a State to a string.
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	}

	return "unopened"
}

// Session owns at most one backend handle between Open and Close.
// All methods are safe for concurrent use; backend operations are serialized.
type Session struct {
	cfg      config.Configuration
	registry platform.Registry
	events   *eventbus.Bus

	state   State
	entry   platform.Entry
	backend bluetooth.Backend

	errmsg string
	errno  syscall.Errno
	err    error

	scans *xsync.Counter
	ops   *xsync.Counter

	mu sync.Mutex
}

// Option configures a session.
type Option func(s *Session)

// WithRegistry replaces the backend table consulted by Open.
func WithRegistry(registry platform.Registry) Option {
	return func(s *Session) {
		s.registry = registry
	}
}

// WithEventBus publishes session events on bus.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(s *Session) {
		if bus != nil {
			s.events = bus
		}
	}
}

// New returns an unopened session.
func New(cfg config.Configuration, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg,
		registry: platform.Backends(),
		events:   eventbus.Disabled(),
		scans:    xsync.NewCounter(),
		ops:      xsync.NewCounter(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Open selects the first backend whose identifier starts with identifier and
// initializes it. On failure the session stays unopened and ErrMsg describes the cause.
func (s *Session) Open(identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := fctx.WithMeta(context.Background(), "backend", identifier)

	switch s.state {
	case Open:
		return s.fail(ctx, errorkinds.ErrSessionAlreadyOpen, ftag.AlreadyExists,
			"Bluetooth backend %s already open", s.entry.Ident)

	case Closed:
		return s.fail(ctx, errorkinds.ErrSessionNotExist, ftag.PermissionDenied,
			"Bluetooth session closed")
	}

	if identifier == "" {
		return s.fail(ctx, errorkinds.ErrBackendInvalid, ftag.InvalidArgument,
			"Bluetooth backend param invalid")
	}

	entry, ok := s.registry.Lookup(identifier)
	if !ok {
		return s.fail(ctx, errorkinds.ErrBackendNotFound, ftag.NotFound,
			"Bluetooth backend %s not found", identifier)
	}

	if !entry.Implemented() {
		return s.fail(ctx, errorkinds.ErrBackendNotImplemented, ftag.Internal,
			"Bluetooth backend %s not implemented yet", identifier)
	}

	backend, err := entry.New(s.cfg)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("%w: %w", errorkinds.ErrBackendInit, err), ftag.Internal,
			"Bluetooth init fail")
	}

	s.entry = entry
	s.backend = backend
	s.state = Open

	logging.SessionLogger.Info("backend opened",
		zap.String("backend", entry.Ident),
		zap.String("stack", entry.Stack.String()),
	)

	return nil
}

// Close frees the open backend and makes the session terminal.
// It does nothing if the session is not open.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.close()
}

// Free closes the session if needed and releases the event bus.
func (s *Session) Free() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.close()
	s.state = Closed
	s.events.Close()

	return err
}

// Scan runs discovery for timeout and rebuilds the device directory.
// It returns false if no backend is open or the scan failed.
func (s *Session) Scan(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return false
	}

	if err := s.backend.Scan(timeout); err != nil {
		s.opFailed(err, "Bluetooth scan fail")
		return false
	}

	data := bluetooth.ScanEventData{
		Backend:    s.entry.Ident,
		Devices:    s.countDevices(),
		Generation: s.nextScan(),
	}
	s.events.Publish(bluetooth.EventScanCompleted, data)

	return true
}

// GetDevices copies up to len(dst) display names into dst and returns the number copied.
func (s *Session) GetDevices(dst []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return 0
	}

	return s.backend.GetDevices(dst)
}

// Devices returns a copy of the device records of the open backend.
func (s *Session) Devices() []bluetooth.DeviceData {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return nil
	}

	return s.backend.Devices()
}

// IsConnected reports whether a device whose name starts with identity is connected.
func (s *Session) IsConnected(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return false
	}

	connected, err := s.backend.IsConnected(identity)
	if err != nil {
		s.opFailed(err, "Bluetooth device %s query fail", identity)
		return false
	}

	return connected
}

// Connect issues the connect sequence for identity. A true result means the
// commands were issued; callers poll IsConnected for the outcome.
func (s *Session) Connect(identity string, timeout time.Duration) bool {
	return s.command(bluetooth.EventConnectIssued, "connect", identity, func(b bluetooth.Backend) error {
		return b.Connect(identity, timeout)
	})
}

// Disconnect issues the disconnect command for identity.
func (s *Session) Disconnect(identity string, timeout time.Duration) bool {
	return s.command(bluetooth.EventDisconnectIssued, "disconnect", identity, func(b bluetooth.Backend) error {
		return b.Disconnect(identity, timeout)
	})
}

// ErrMsg returns the message of the most recent failure. It is not cleared
// on success, so it is only meaningful after a failure was reported.
func (s *Session) ErrMsg() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.errmsg
}

// Errno returns the system error code of the most recent failure, if any.
func (s *Session) Errno() syscall.Errno {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.errno
}

// Err returns the most recent failure.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// State returns the lifecycle state of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Backend returns the registry entry of the open backend.
func (s *Session) Backend() (platform.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.entry, s.state == Open
}

// Operations returns the number of backend operations run by the session.
func (s *Session) Operations() int64 {
	return s.ops.Value()
}

// Events returns the event bus of the session.
func (s *Session) Events() *eventbus.Bus {
	return s.events
}

func (s *Session) command(id bluetooth.EventID, verb, identity string, fn func(b bluetooth.Backend) error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready() {
		return false
	}

	err := fn(s.backend)
	if err != nil {
		s.opFailed(err, "Bluetooth device %s %s fail", identity, verb)
	}

	s.events.Publish(id, bluetooth.CommandEventData{
		Backend:  s.entry.Ident,
		Identity: identity,
		Issued:   err == nil,
	})

	return err == nil
}

func (s *Session) close() error {
	if s.state != Open {
		return nil
	}

	err := s.backend.Free()
	if err != nil {
		s.opFailed(err, "Bluetooth backend %s free fail", s.entry.Ident)
	}

	logging.SessionLogger.Info("backend closed", zap.String("backend", s.entry.Ident))

	s.backend = nil
	s.state = Closed

	return err
}

// ready counts the operation and reports whether a backend is open.
func (s *Session) ready() bool {
	if s.state != Open {
		return false
	}

	s.ops.Inc()

	return true
}

func (s *Session) countDevices() int {
	return len(s.backend.Devices())
}

func (s *Session) nextScan() int64 {
	s.scans.Inc()
	return s.scans.Value()
}

// fail records an open failure and returns it wrapped.
func (s *Session) fail(ctx context.Context, err error, kind ftag.Kind, format string, args ...any) error {
	s.record(err, format, args...)

	logging.SessionLogger.Error("open failed", zap.String("message", s.errmsg), zap.Error(err))

	return fault.Wrap(err,
		fctx.With(ctx, "error_at", "open"),
		ftag.With(kind),
		fmsg.With(s.errmsg),
	)
}

func (s *Session) opFailed(err error, format string, args ...any) {
	s.record(err, format, args...)

	logging.SessionLogger.Warn("operation failed",
		zap.String("backend", s.entry.Ident),
		zap.String("message", s.errmsg),
		zap.Error(err),
	)
}

// record overwrites the error state with the formatted message, followed by
// the description of a wrapped system error code.
func (s *Session) record(err error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		msg += fmt.Sprintf(": %s [errno %d]", errno.Error(), int(errno))
	}

	s.errmsg = truncate(msg, ErrMsgMaxLen-1)
	s.errno = errno
	s.err = err
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}
