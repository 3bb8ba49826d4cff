// Package managedobjects decodes an object manager enumeration reply
// (object -> interface -> property -> value) into adapter references and
// device records.
package managedobjects

import (
	"context"
	"errors"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/btdirectory/api/bluetooth"
	"github.com/bluetuith-org/btdirectory/api/errorkinds"
	"github.com/bluetuith-org/btdirectory/api/helpers/vtree"
	"github.com/google/uuid"
)

// Interface names used by the BlueZ object tree.
const (
	AdapterInterface = "org.bluez.Adapter1"
	DeviceInterface  = "org.bluez.Device1"
)

// Device property names.
const (
	PropertyAddress   = "Address"
	PropertyAlias     = "Alias"
	PropertyIcon      = "Icon"
	PropertyConnected = "Connected"
	PropertyPaired    = "Paired"
	PropertyTrusted   = "Trusted"
	PropertyUUIDs     = "UUIDs"
)

// Selectors holds the interface names that mark adapter and device objects.
type Selectors struct {
	Adapter string
	Device  string
}

// DefaultSelectors returns the BlueZ adapter and device selectors.
func DefaultSelectors() Selectors {
	return Selectors{
		Adapter: AdapterInterface,
		Device:  DeviceInterface,
	}
}

// Result holds a decoded tree.
type Result struct {
	// Adapter holds the object identifier of the first adapter found, or "".
	Adapter string

	// Devices holds one record per device object, in tree order.
	Devices []bluetooth.DeviceData
}

// errStopWalk ends a walk early without reporting an error.
var errStopWalk = errors.New("stop walk")

// Decode walks tree and extracts the adapter reference and all device records.
// Any value with an unexpected type aborts the whole decode; no partial
// result is returned in that case.
func Decode(tree vtree.Value, sel Selectors) (Result, error) {
	var result Result

	err := walk(tree, func(object, iface string, props vtree.Value) error {
		switch iface {
		case sel.Adapter:
			if result.Adapter == "" {
				result.Adapter = object
			}

		case sel.Device:
			dev, err := decodeDevice(object, props)
			if err != nil {
				return err
			}

			result.Devices = append(result.Devices, dev)
		}

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return result, nil
}

// ResolveAdapter returns the object identifier of the first object
// implementing the adapter interface.
func ResolveAdapter(tree vtree.Value, adapterInterface string) (string, error) {
	var adapter string

	err := walk(tree, func(object, iface string, _ vtree.Value) error {
		if iface != adapterInterface {
			return nil
		}

		adapter = object

		return errStopWalk
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return "", err
	}

	if adapter == "" {
		return "", fault.Wrap(errorkinds.ErrAdapterNotFound,
			fctx.With(context.Background(), "error_at", "resolve-adapter", "interface", adapterInterface),
			ftag.With(ftag.NotFound),
			fmsg.With("No adapter found"),
		)
	}

	return adapter, nil
}

// walk calls fn for every (object, interface) pair of the tree.
// Objects with no interfaces are skipped.
func walk(tree vtree.Value, fn func(object, iface string, props vtree.Value) error) error {
	objects, ok := tree.Entries()
	if !ok {
		return malformed("root", "", vtree.Map, tree)
	}

	for _, object := range objects {
		path, ok := object.Key.Text()
		if !ok {
			return malformed("object-key", "", vtree.ObjectPath, object.Key)
		}

		interfaces, ok := object.Value.Entries()
		if !ok {
			return malformed("interfaces", path, vtree.Map, object.Value)
		}

		for _, iface := range interfaces {
			name, ok := iface.Key.Text()
			if !ok {
				return malformed("interface-key", path, vtree.String, iface.Key)
			}

			if iface.Value.Kind() != vtree.Map {
				return malformed("properties", path+" "+name, vtree.Map, iface.Value)
			}

			if err := fn(path, name, iface.Value); err != nil {
				return err
			}
		}
	}

	return nil
}

func decodeDevice(object string, props vtree.Value) (bluetooth.DeviceData, error) {
	dev := bluetooth.DeviceData{ID: object}

	entries, _ := props.Entries()
	for _, prop := range entries {
		name, ok := prop.Key.Text()
		if !ok {
			return dev, malformed("property-key", object, vtree.String, prop.Key)
		}

		value, ok := prop.Value.Inner()
		if !ok {
			return dev, malformed("property-value", object+" "+name, vtree.Variant, prop.Value)
		}

		// The Name property is not used; Alias carries user corrections
		// and falls back to Name on the service side.
		switch name {
		case PropertyAddress:
			address, ok := value.Text()
			if !ok {
				return dev, malformed("property", object+" "+name, vtree.String, value)
			}
			dev.Address = bluetooth.MacAddress(address)

		case PropertyAlias:
			alias, ok := value.Text()
			if !ok {
				return dev, malformed("property", object+" "+name, vtree.String, value)
			}
			dev.Name = bluetooth.BoundName(alias)

		case PropertyIcon:
			icon, ok := value.Text()
			if !ok {
				return dev, malformed("property", object+" "+name, vtree.String, value)
			}
			dev.Icon = icon

		case PropertyConnected, PropertyPaired, PropertyTrusted:
			b, ok := value.Bool()
			if !ok {
				return dev, malformed("property", object+" "+name, vtree.Bool, value)
			}

			switch name {
			case PropertyConnected:
				dev.Connected = bluetooth.TriStateOf(b)
			case PropertyPaired:
				dev.Paired = bluetooth.TriStateOf(b)
			case PropertyTrusted:
				dev.Trusted = bluetooth.TriStateOf(b)
			}

		case PropertyUUIDs:
			uuids, err := decodeUUIDs(object, value)
			if err != nil {
				return dev, err
			}
			dev.UUIDs = uuids
		}
	}

	if dev.Name == "" {
		dev.Name = bluetooth.BoundName(dev.Address.String())
	}

	return dev, nil
}

func decodeUUIDs(object string, value vtree.Value) (uuid.UUIDs, error) {
	items, ok := value.Items()
	if !ok {
		return nil, malformed("property", object+" "+PropertyUUIDs, vtree.Array, value)
	}

	uuids := make(uuid.UUIDs, 0, len(items))
	for _, item := range items {
		text, ok := item.Text()
		if !ok {
			return nil, malformed("property", object+" "+PropertyUUIDs, vtree.String, item)
		}

		id, err := uuid.Parse(text)
		if err != nil {
			continue
		}

		uuids = append(uuids, id)
	}

	return uuids, nil
}

func malformed(position, object string, want vtree.Kind, got vtree.Value) error {
	return fault.Wrap(errorkinds.ErrDecode,
		fctx.With(context.Background(), "error_at", "decode-tree", "position", position, "object", object),
		ftag.With(ftag.InvalidArgument),
		fmsg.With(fmt.Sprintf("Expected %s at %s, got %s", want, position, got.Kind())),
	)
}
