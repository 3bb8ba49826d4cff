package linux

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bluetuith-org/btdirectory/api/errorkinds"
	"github.com/bluetuith-org/btdirectory/linux/internal/dbushelper"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adapterPath  = dbus.ObjectPath("/org/bluez/hci0")
	headsetPath  = dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	keyboardPath = dbus.ObjectPath("/org/bluez/hci0/dev_11_22_33_44_55_66")

	secondHeadsetPath = dbus.ObjectPath("/org/bluez/hci0/dev_BB_BB_CC_DD_EE_FF")
)

type objectTree = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

type busCall struct {
	path   dbus.ObjectPath
	method string
	args   []any
}

// fakeBus serves a managed object tree and per-object properties.
type fakeBus struct {
	objects   objectTree
	props     map[dbus.ObjectPath]map[string]any
	hasOwner  bool
	failWith  map[string]error
	calls     []busCall
	closed    int
	objectsFn func() any
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		hasOwner: true,
		objects: objectTree{
			adapterPath: {
				"org.bluez.Adapter1": {"Powered": dbus.MakeVariant(false)},
			},
			headsetPath: {
				"org.bluez.Device1": {
					"Address":   dbus.MakeVariant("AA:BB:CC:DD:EE:FF"),
					"Alias":     dbus.MakeVariant("Headset"),
					"Connected": dbus.MakeVariant(false),
				},
			},
			keyboardPath: {
				"org.bluez.Device1": {
					"Address":   dbus.MakeVariant("11:22:33:44:55:66"),
					"Alias":     dbus.MakeVariant("Keyboard"),
					"Connected": dbus.MakeVariant(true),
				},
			},
		},
		props: map[dbus.ObjectPath]map[string]any{
			headsetPath:  {"Connected": false, "Paired": false},
			keyboardPath: {"Connected": true, "Paired": true},
		},
		failWith: map[string]error{},
	}
}

func (f *fakeBus) Call(_ context.Context, _ string, path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	f.calls = append(f.calls, busCall{path, method, args})

	if err, ok := f.failWith[method]; ok {
		return nil, err
	}

	switch method {
	case dbushelper.NameHasOwner:
		return []any{f.hasOwner}, nil

	case dbushelper.GetManagedObjects:
		if f.objectsFn != nil {
			return []any{f.objectsFn()}, nil
		}
		return []any{f.objects}, nil

	case dbushelper.PropertiesGet:
		v, ok := f.props[path][args[1].(string)]
		if !ok {
			return nil, dbus.Error{Name: "org.freedesktop.DBus.Error.InvalidArgs"}
		}
		return []any{dbus.MakeVariant(v)}, nil
	}

	return nil, nil
}

func (f *fakeBus) Close() error {
	f.closed++
	return nil
}

func (f *fakeBus) methods() []string {
	methods := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		methods = append(methods, c.method)
	}

	return methods
}

func newTestBackend(t *testing.T, bus *fakeBus) *BluezBackend {
	t.Helper()

	backend, err := newBluezBackend(bus, time.Second)
	require.NoError(t, err)

	backend.sleep = func(time.Duration) {}
	bus.calls = nil

	return backend
}

func TestInitRequiresBluez(t *testing.T) {
	bus := newFakeBus()
	bus.hasOwner = false

	_, err := newBluezBackend(bus, time.Second)
	assert.ErrorIs(t, err, errorkinds.ErrBackendInit)

	bus.failWith[dbushelper.NameHasOwner] = errors.New("connection closed")
	_, err = newBluezBackend(bus, time.Second)
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)

	var slept time.Duration
	backend.sleep = func(d time.Duration) { slept = d }

	require.NoError(t, backend.Scan(0))
	assert.Equal(t, time.Second, slept)
	assert.Equal(t, adapterPath, backend.adapter)

	assert.Equal(t, []string{
		dbushelper.GetManagedObjects,
		dbushelper.PropertiesSet,
		"org.bluez.Adapter1.StartDiscovery",
		"org.bluez.Adapter1.StopDiscovery",
		dbushelper.GetManagedObjects,
	}, bus.methods())
	assert.Equal(t, []any{"org.bluez.Adapter1", "Powered", dbus.MakeVariant(true)}, bus.calls[1].args)

	names := make([]string, 3)
	require.Equal(t, 2, backend.GetDevices(names))
	assert.Equal(t, []string{"Keyboard", "Headset", ""}, names)

	devices := backend.Devices()
	assert.Equal(t, string(keyboardPath), devices[0].ID)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", devices[1].Address.String())
}

func TestScanReusesResolvedAdapter(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))
	bus.calls = nil

	require.NoError(t, backend.Scan(0))
	assert.Equal(t, []string{
		dbushelper.PropertiesSet,
		"org.bluez.Adapter1.StartDiscovery",
		"org.bluez.Adapter1.StopDiscovery",
		dbushelper.GetManagedObjects,
	}, bus.methods())
}

func TestScanForgetsRemovedAdapter(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))

	delete(bus.objects, adapterPath)
	require.NoError(t, backend.Scan(0))
	assert.Empty(t, backend.adapter)

	bus.calls = nil
	require.ErrorIs(t, backend.Scan(0), errorkinds.ErrAdapterNotFound)
	assert.Equal(t, []string{dbushelper.GetManagedObjects}, bus.methods())
}

func TestScanWithoutAdapterFailsFast(t *testing.T) {
	bus := newFakeBus()
	delete(bus.objects, adapterPath)
	backend := newTestBackend(t, bus)

	err := backend.Scan(time.Second)
	require.ErrorIs(t, err, errorkinds.ErrAdapterNotFound)
	assert.Equal(t, []string{dbushelper.GetManagedObjects}, bus.methods())
}

func TestScanMalformedTreeKeepsDirectory(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))

	bus.objectsFn = func() any {
		return map[dbus.ObjectPath]map[string]any{
			adapterPath: {"org.bluez.Adapter1": "not a property map"},
		}
	}

	err := backend.Scan(0)
	require.ErrorIs(t, err, errorkinds.ErrDecode)
	assert.Len(t, backend.Devices(), 2)
}

func TestScanTransportFailure(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	bus.failWith[dbushelper.GetManagedObjects] = context.DeadlineExceeded

	err := backend.Scan(0)
	assert.ErrorIs(t, err, errorkinds.ErrMethodTimeout)
}

func TestIsConnectedUsesLiveState(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))

	connected, err := backend.IsConnected("Head")
	require.NoError(t, err)
	assert.False(t, connected)

	bus.props[headsetPath]["Connected"] = true
	connected, err = backend.IsConnected("Head")
	require.NoError(t, err)
	assert.True(t, connected)

	connected, err = backend.IsConnected("Speaker")
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestIsConnectedSkipsRemovedDevices(t *testing.T) {
	bus := newFakeBus()
	bus.objects[secondHeadsetPath] = map[string]map[string]dbus.Variant{
		"org.bluez.Device1": {
			"Address": dbus.MakeVariant("BB:BB:CC:DD:EE:FF"),
			"Alias":   dbus.MakeVariant("Headset 2"),
		},
	}
	bus.props[secondHeadsetPath] = map[string]any{"Connected": true}

	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))

	// The first match no longer exists on the service.
	delete(bus.props, headsetPath)

	connected, err := backend.IsConnected("Headset")
	require.NoError(t, err)
	assert.True(t, connected)

	bus.failWith[dbushelper.PropertiesGet] = errors.New("connection closed")
	_, err = backend.IsConnected("Headset")
	assert.ErrorIs(t, err, errorkinds.ErrMethodCall)
}

func TestConnectAlreadyConnectedIssuesNothing(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))
	bus.calls = nil

	require.NoError(t, backend.Connect("Keyboard", 0))
	assert.Equal(t, []string{dbushelper.PropertiesGet}, bus.methods())
}

func TestConnectSequence(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))
	bus.calls = nil
	bus.failWith["org.bluez.Device1.Pair"] = dbus.Error{Name: "org.bluez.Error.AuthenticationFailed"}

	require.NoError(t, backend.Connect("Headset", 2*time.Second))
	assert.Equal(t, []string{
		dbushelper.PropertiesGet,
		dbushelper.PropertiesSet,
		dbushelper.PropertiesGet,
		"org.bluez.Device1.Pair",
		dbushelper.PropertiesSet,
		"org.bluez.Device1.Connect",
	}, bus.methods())
	assert.Equal(t, adapterPath, bus.calls[1].path)
	assert.Equal(t, headsetPath, bus.calls[5].path)
}

func TestConnectNoReplyFails(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))
	bus.failWith["org.bluez.Device1.Connect"] = errors.New("connection closed")

	err := backend.Connect("Headset", 0)
	assert.ErrorIs(t, err, errorkinds.ErrMethodCall)
}

func TestConnectUnknownDevice(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))

	assert.ErrorIs(t, backend.Connect("Speaker", 0), errorkinds.ErrDeviceNotFound)
}

func TestDisconnect(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))
	bus.calls = nil

	require.NoError(t, backend.Disconnect("Headset", 0))
	assert.Equal(t, []string{dbushelper.PropertiesGet}, bus.methods())

	bus.calls = nil
	require.NoError(t, backend.Disconnect("Key", 0))
	assert.Equal(t, []string{dbushelper.PropertiesGet, "org.bluez.Device1.Disconnect"}, bus.methods())
	assert.Equal(t, keyboardPath, bus.calls[1].path)
}

func TestFreeClosesBusOnce(t *testing.T) {
	bus := newFakeBus()
	backend := newTestBackend(t, bus)
	require.NoError(t, backend.Scan(0))

	require.NoError(t, backend.Free())
	require.NoError(t, backend.Free())
	assert.Equal(t, 1, bus.closed)
	assert.Empty(t, backend.Devices())
}
