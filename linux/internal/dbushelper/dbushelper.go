/*
Package dbushelper provides DBus specific helpers to:
- Convert DBus reply bodies into generic value trees.
- Classify call errors as error replies or transport failures.

It also has constants defined for various DBus related
bus and interface names.
*/
package dbushelper

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/bluetuith-org/btdirectory/api/helpers/vtree"
	"github.com/godbus/dbus/v5"
)

const (
	BluezBusName  = "org.bluez"
	RootPath      = dbus.ObjectPath("/")
	DBusBusName   = "org.freedesktop.DBus"
	DBusPath      = dbus.ObjectPath("/org/freedesktop/DBus")
	DBusInterface = "org.freedesktop.DBus"

	ObjectManagerInterface = "org.freedesktop.DBus.ObjectManager"
	PropertiesInterface    = "org.freedesktop.DBus.Properties"

	GetManagedObjects = ObjectManagerInterface + ".GetManagedObjects"
	PropertiesGet     = PropertiesInterface + ".Get"
	PropertiesSet     = PropertiesInterface + ".Set"
	NameHasOwner      = DBusInterface + ".NameHasOwner"
)

var (
	variantType    = reflect.TypeOf(dbus.Variant{})
	objectPathType = reflect.TypeOf(dbus.ObjectPath(""))
	signatureType  = reflect.TypeOf(dbus.Signature{})
)

// ToValue converts a value decoded by godbus into a value tree.
// Map entries are ordered by their rendered key, so that the resulting
// tree is deterministic for a given reply.
func ToValue(v any) (vtree.Value, error) {
	if v == nil {
		return vtree.Value{}, fmt.Errorf("dbushelper: nil value")
	}

	return toValue(reflect.ValueOf(v))
}

func toValue(rv reflect.Value) (vtree.Value, error) {
	switch rv.Type() {
	case variantType:
		variant := rv.Interface().(dbus.Variant)

		inner, err := ToValue(variant.Value())
		if err != nil {
			return vtree.Value{}, err
		}

		return vtree.NewVariant(inner), nil

	case objectPathType:
		return vtree.NewObjectPath(rv.String()), nil

	case signatureType:
		return vtree.NewString(rv.Interface().(dbus.Signature).String()), nil
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return vtree.Value{}, fmt.Errorf("dbushelper: nil interface value")
		}

		return toValue(rv.Elem())

	case reflect.String:
		return vtree.NewString(rv.String()), nil

	case reflect.Bool:
		return vtree.NewBool(rv.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vtree.NewInt(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return vtree.NewUint(rv.Uint()), nil

	case reflect.Float32, reflect.Float64:
		return vtree.NewDouble(rv.Float()), nil

	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)

			return vtree.NewBytes(b), nil
		}

		items := make([]vtree.Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := toValue(rv.Index(i))
			if err != nil {
				return vtree.Value{}, err
			}

			items = append(items, item)
		}

		return vtree.NewArray(items...), nil

	case reflect.Map:
		entries := make([]vtree.Entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := toValue(iter.Key())
			if err != nil {
				return vtree.Value{}, err
			}

			value, err := toValue(iter.Value())
			if err != nil {
				return vtree.Value{}, err
			}

			entries = append(entries, vtree.E(key, value))
		}

		// Go maps carry no wire order; rendered keys give a stable one.
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Key.String() < entries[j].Key.String()
		})

		return vtree.NewMap(entries...), nil

	case reflect.Struct:
		// DBus structures are sequences of typed members.
		items := make([]vtree.Value, 0, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}

			item, err := toValue(rv.Field(i))
			if err != nil {
				return vtree.Value{}, err
			}

			items = append(items, item)
		}

		return vtree.NewArray(items...), nil
	}

	return vtree.Value{}, fmt.Errorf("dbushelper: unsupported value type %s", rv.Type())
}

// IsErrorReply reports whether err is an error reply sent by the remote peer,
// as opposed to a failure to deliver the call or receive any reply.
func IsErrorReply(err error) bool {
	var replyErr dbus.Error
	if errors.As(err, &replyErr) {
		return true
	}

	var replyErrPtr *dbus.Error

	return errors.As(err, &replyErrPtr)
}
