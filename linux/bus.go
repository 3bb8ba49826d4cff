package linux

import (
	"context"

	"github.com/godbus/dbus/v5"
)

// busCaller issues method calls on a message bus.
type busCaller interface {
	// Call invokes method on the object at path owned by dest and returns the reply body.
	Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args ...any) ([]any, error)

	// Close releases the bus connection.
	Close() error
}

// systemBus is a busCaller over a private system bus connection.
type systemBus struct {
	conn *dbus.Conn
}

func connectSystemBus() (*systemBus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}

	return &systemBus{conn: conn}, nil
}

func (b *systemBus) Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	call := b.conn.Object(dest, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, call.Err
	}

	return call.Body, nil
}

func (b *systemBus) Close() error {
	return b.conn.Close()
}
