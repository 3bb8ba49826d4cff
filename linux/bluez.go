// Package linux implements the system bus backend, which talks to the
// BlueZ device-management service over D-Bus.
package linux

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/btdirectory/api/bluetooth"
	"github.com/bluetuith-org/btdirectory/api/config"
	"github.com/bluetuith-org/btdirectory/api/directory"
	"github.com/bluetuith-org/btdirectory/api/errorkinds"
	"github.com/bluetuith-org/btdirectory/api/helpers/vtree"
	"github.com/bluetuith-org/btdirectory/api/logging"
	"github.com/bluetuith-org/btdirectory/linux/internal/dbushelper"
	mo "github.com/bluetuith-org/btdirectory/linux/managedobjects"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// BluezBackend is a bluetooth.Backend backed by the BlueZ service.
type BluezBackend struct {
	bus         busCaller
	callTimeout time.Duration
	selectors   mo.Selectors

	// adapter is resolved on the first scan and kept for the handle's lifetime.
	adapter dbus.ObjectPath
	devices *directory.Directory

	sleep func(time.Duration)
	freed atomic.Bool
}

// NewBluezBackend connects to the system bus, verifies that the BlueZ
// service is present and returns a new backend handle.
func NewBluezBackend(cfg config.Configuration) (bluetooth.Backend, error) {
	bus, err := connectSystemBus()
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "connect-bus"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to the system bus"),
		)
	}

	backend, err := newBluezBackend(bus, cfg.Bus.CallTimeout)
	if err != nil {
		bus.Close()
		return nil, err
	}

	return backend, nil
}

func newBluezBackend(bus busCaller, callTimeout time.Duration) (*BluezBackend, error) {
	if callTimeout <= 0 {
		callTimeout = config.DefaultBusCallTimeout
	}

	b := &BluezBackend{
		bus:         bus,
		callTimeout: callTimeout,
		selectors:   mo.DefaultSelectors(),
		devices:     directory.New(),
		sleep:       time.Sleep,
	}

	ctx, cancel := b.callContext(0)
	defer cancel()

	body, err := bus.Call(ctx, dbushelper.DBusBusName, dbushelper.DBusPath, dbushelper.NameHasOwner, dbushelper.BluezBusName)
	if err == nil {
		if owned, ok := first[bool](body); !ok || !owned {
			err = errorkinds.ErrBackendInit
		}
	}
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(ctx, "error_at", "probe-bluez"),
			ftag.With(ftag.Internal),
			fmsg.With("BlueZ service is not available"),
		)
	}

	return b, nil
}

// Free releases all device records and the bus connection.
func (b *BluezBackend) Free() error {
	if b.freed.Swap(true) {
		return nil
	}

	b.devices.Clear()

	return b.bus.Close()
}

// Scan resolves the adapter, powers it on, runs discovery for timeout and
// replaces the directory with the decoded device objects.
func (b *BluezBackend) Scan(timeout time.Duration) error {
	timeout = bluetooth.NormalizeScanTimeout(timeout)

	if b.adapter == "" {
		tree, err := b.managedObjects()
		if err != nil {
			return err
		}

		adapter, err := mo.ResolveAdapter(tree, b.selectors.Adapter)
		if err != nil {
			return err
		}

		b.adapter = dbus.ObjectPath(adapter)
		logging.BusLogger.Info("adapter resolved", zap.String("adapter", adapter))
	}

	if err := b.setBool(b.adapter, mo.AdapterInterface, "Powered", true, 0); err != nil {
		return err
	}

	if err := b.adapterCall("StartDiscovery"); err != nil {
		return err
	}

	b.sleep(timeout)

	if err := b.adapterCall("StopDiscovery"); err != nil {
		return err
	}

	tree, err := b.managedObjects()
	if err != nil {
		return err
	}

	result, err := mo.Decode(tree, b.selectors)
	if err != nil {
		return err
	}

	// The next scan resolves again if the adapter went away during discovery.
	if adapter := dbus.ObjectPath(result.Adapter); adapter != b.adapter {
		logging.BusLogger.Warn("adapter changed",
			zap.String("previous", string(b.adapter)),
			zap.String("adapter", result.Adapter),
		)
		b.adapter = adapter
	}

	generation := b.devices.Replace(result.Devices)
	for _, dev := range result.Devices {
		logging.BusLogger.Debug("device added", zap.String("name", dev.Name), zap.String("path", dev.ID))
	}
	logging.DirectoryLogger.Info("directory replaced",
		zap.Int("devices", len(result.Devices)),
		zap.Int64("generation", generation),
	)

	return nil
}

// GetDevices copies up to len(dst) display names into dst.
func (b *BluezBackend) GetDevices(dst []string) int {
	return b.devices.CopyNames(dst)
}

// Devices returns a copy of the device directory.
func (b *BluezBackend) Devices() []bluetooth.DeviceData {
	return b.devices.Devices()
}

// IsConnected reads the live Connected property of every directory entry matching identity.
// Entries whose read gets an error reply, such as devices removed since the
// last scan, count as not connected.
func (b *BluezBackend) IsConnected(identity string) (bool, error) {
	for _, dev := range b.devices.Match(identity) {
		connected, err := b.getBool(dbus.ObjectPath(dev.ID), mo.DeviceInterface, mo.PropertyConnected)
		if dbushelper.IsErrorReply(err) {
			logging.BusLogger.Debug("device state unavailable", zap.String("path", dev.ID), zap.Error(err))
			continue
		}
		if err != nil {
			return false, err
		}

		if connected {
			return true, nil
		}
	}

	return false, nil
}

// Connect makes the adapter pairable, pairs the device if needed, trusts and connects it.
// Error replies from the service count as issued; only calls that got no reply fail.
func (b *BluezBackend) Connect(identity string, timeout time.Duration) error {
	connected, err := b.IsConnected(identity)
	if err != nil {
		return err
	}
	if connected {
		return nil
	}

	dev, ok := b.devices.First(identity)
	if !ok {
		return notFound(identity)
	}
	path := dbus.ObjectPath(dev.ID)

	if b.adapter != "" {
		if err := b.issued(b.setBool(b.adapter, mo.AdapterInterface, "Pairable", true, 0)); err != nil {
			return err
		}
	}

	paired, err := b.getBool(path, mo.DeviceInterface, mo.PropertyPaired)
	if err != nil {
		return err
	}
	if !paired {
		if err := b.issued(b.deviceCall(path, "Pair", timeout)); err != nil {
			return err
		}
	}

	if err := b.issued(b.setBool(path, mo.DeviceInterface, mo.PropertyTrusted, true, 0)); err != nil {
		return err
	}

	if err := b.issued(b.deviceCall(path, "Connect", timeout)); err != nil {
		return err
	}

	logging.BusLogger.Info("connect issued", zap.String("name", dev.Name), zap.String("path", dev.ID))

	return nil
}

// Disconnect disconnects the device if it is connected.
func (b *BluezBackend) Disconnect(identity string, timeout time.Duration) error {
	connected, err := b.IsConnected(identity)
	if err != nil {
		return err
	}
	if !connected {
		return nil
	}

	dev, ok := b.devices.First(identity)
	if !ok {
		return notFound(identity)
	}

	if err := b.issued(b.deviceCall(dbus.ObjectPath(dev.ID), "Disconnect", timeout)); err != nil {
		return err
	}

	logging.BusLogger.Info("disconnect issued", zap.String("name", dev.Name), zap.String("path", dev.ID))

	return nil
}

// managedObjects fetches and converts the object manager enumeration.
func (b *BluezBackend) managedObjects() (vtree.Value, error) {
	ctx, cancel := b.callContext(0)
	defer cancel()

	body, err := b.bus.Call(ctx, dbushelper.BluezBusName, dbushelper.RootPath, dbushelper.GetManagedObjects)
	if err != nil {
		return vtree.Value{}, b.callError(ctx, err, "get-managed-objects")
	}

	if len(body) != 1 {
		return vtree.Value{}, decodeError(ctx, fmt.Errorf("reply has %d values", len(body)))
	}

	tree, err := dbushelper.ToValue(body[0])
	if err != nil {
		return vtree.Value{}, decodeError(ctx, err)
	}

	return tree, nil
}

func (b *BluezBackend) adapterCall(method string) error {
	ctx, cancel := b.callContext(0)
	defer cancel()

	_, err := b.bus.Call(ctx, dbushelper.BluezBusName, b.adapter, mo.AdapterInterface+"."+method)
	if err != nil {
		return b.callError(ctx, err, method)
	}

	return nil
}

func (b *BluezBackend) deviceCall(path dbus.ObjectPath, method string, timeout time.Duration) error {
	ctx, cancel := b.callContext(timeout)
	defer cancel()

	_, err := b.bus.Call(ctx, dbushelper.BluezBusName, path, mo.DeviceInterface+"."+method)
	if err != nil {
		return b.callError(ctx, err, method)
	}

	return nil
}

func (b *BluezBackend) getBool(path dbus.ObjectPath, iface, property string) (bool, error) {
	ctx, cancel := b.callContext(0)
	defer cancel()

	body, err := b.bus.Call(ctx, dbushelper.BluezBusName, path, dbushelper.PropertiesGet, iface, property)
	if err != nil {
		return false, b.callError(ctx, err, "get-"+property)
	}

	variant, ok := first[dbus.Variant](body)
	if !ok {
		return false, decodeError(ctx, fmt.Errorf("%s is not a variant", property))
	}

	value, ok := variant.Value().(bool)
	if !ok {
		return false, decodeError(ctx, fmt.Errorf("%s is %s, not a boolean", property, variant.Signature()))
	}

	return value, nil
}

func (b *BluezBackend) setBool(path dbus.ObjectPath, iface, property string, value bool, timeout time.Duration) error {
	ctx, cancel := b.callContext(timeout)
	defer cancel()

	_, err := b.bus.Call(ctx, dbushelper.BluezBusName, path, dbushelper.PropertiesSet, iface, property, dbus.MakeVariant(value))
	if err != nil {
		return b.callError(ctx, err, "set-"+property)
	}

	return nil
}

// issued drops error replies, which prove that the call reached the service.
func (b *BluezBackend) issued(err error) error {
	if err == nil || !dbushelper.IsErrorReply(err) {
		return err
	}

	logging.BusLogger.Warn("call returned an error reply", zap.Error(err))

	return nil
}

func (b *BluezBackend) callContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = b.callTimeout
	}

	return context.WithTimeout(context.Background(), timeout)
}

func (b *BluezBackend) callError(ctx context.Context, err error, at string) error {
	kind := errorkinds.ErrMethodCall
	if errors.Is(err, context.DeadlineExceeded) {
		kind = errorkinds.ErrMethodTimeout
	}

	return fault.Wrap(fmt.Errorf("%w: %w", kind, err),
		fctx.With(ctx, "error_at", at),
		ftag.With(ftag.Internal),
		fmsg.With("Bus call "+at+" failed"),
	)
}

func decodeError(ctx context.Context, err error) error {
	return fault.Wrap(fmt.Errorf("%w: %w", errorkinds.ErrDecode, err),
		fctx.With(ctx, "error_at", "decode-reply"),
		ftag.With(ftag.InvalidArgument),
		fmsg.With("Unexpected reply from the bus"),
	)
}

func notFound(identity string) error {
	return fault.Wrap(errorkinds.ErrDeviceNotFound,
		fctx.With(context.Background(), "error_at", "lookup-device", "identity", identity),
		ftag.With(ftag.NotFound),
		fmsg.With("Device "+identity+" not found"),
	)
}

// first returns the first reply value if it has type T.
func first[T any](body []any) (T, bool) {
	var zero T
	if len(body) == 0 {
		return zero, false
	}

	v, ok := body[0].(T)

	return v, ok
}
