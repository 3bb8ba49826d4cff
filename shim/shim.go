// Package shim implements the text-shell backend, which drives the
// bluetoothctl control shell as a subprocess and parses its line output.
package shim

import (
	"context"
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
	"github.com/bluetuith-org/btdirectory/api/logging"
	"github.com/bluetuith-org/btdirectory/shim/internal/commands"
	"go.uber.org/zap"
)

// ShimBackend is a bluetooth.Backend backed by the control shell.
type ShimBackend struct {
	execute commands.ExecuteFunc
	devices *directory.Directory

	freed atomic.Bool
}

// NewShimBackend verifies that the configured control shell runs and
// returns a new backend handle.
func NewShimBackend(cfg config.Configuration) (bluetooth.Backend, error) {
	return newShimBackend(commands.NewExecutor(cfg.Shell.Path, cfg.Shell.CommandTimeout))
}

func newShimBackend(execute commands.ExecuteFunc) (*ShimBackend, error) {
	ctx := context.Background()

	out, err := commands.Version().Run(ctx, execute)
	if err == nil && out.ExitCode != 0 {
		err = errorkinds.ErrBackendInit
	}
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(ctx, "error_at", "probe-shell"),
			ftag.With(ftag.Internal),
			fmsg.With("Control shell is not available"),
		)
	}

	return &ShimBackend{
		execute: execute,
		devices: directory.New(),
	}, nil
}

// Free releases all device records.
func (s *ShimBackend) Free() error {
	if s.freed.Swap(true) {
		return nil
	}

	s.devices.Clear()

	return nil
}

// Scan powers the controller on, runs discovery for timeout and
// replaces the directory with the devices known to the shell.
func (s *ShimBackend) Scan(timeout time.Duration) error {
	ctx := context.Background()
	timeout = bluetooth.NormalizeScanTimeout(timeout)

	if _, err := commands.SetPoweredState(true).Run(ctx, s.execute); err != nil {
		return s.wrap(ctx, err, "power-on", "Cannot power on the controller")
	}

	if _, err := commands.StartDiscovery(timeout).Run(ctx, s.execute); err != nil {
		return s.wrap(ctx, err, "scan", "Cannot run discovery")
	}

	devices, _, err := commands.GetDevices().ExecuteWith(ctx, s.execute)
	if err != nil {
		return s.wrap(ctx, err, "list-devices", "Cannot list devices")
	}

	generation := s.devices.Replace(devices)
	for _, dev := range devices {
		logging.ShellLogger.Debug("device added", zap.String("name", dev.Name), zap.String("address", dev.Address.String()))
	}
	logging.DirectoryLogger.Info("directory replaced",
		zap.Int("devices", len(devices)),
		zap.Int64("generation", generation),
	)

	return nil
}

// GetDevices copies up to len(dst) display names into dst.
func (s *ShimBackend) GetDevices(dst []string) int {
	return s.devices.CopyNames(dst)
}

// Devices returns a copy of the device directory.
func (s *ShimBackend) Devices() []bluetooth.DeviceData {
	return s.devices.Devices()
}

// IsConnected queries the shell for every directory entry matching identity.
func (s *ShimBackend) IsConnected(identity string) (bool, error) {
	ctx := context.Background()

	for _, dev := range s.devices.Match(identity) {
		connected, _, err := commands.IsConnected(dev.Address).ExecuteWith(ctx, s.execute)
		if err != nil {
			return false, s.wrap(ctx, err, "device-info", "Cannot query device information")
		}

		if connected {
			return true, nil
		}
	}

	return false, nil
}

// Connect makes the controller pairable, then pairs, trusts and connects the device.
// Only the outcome of the final connect invocation decides issuance.
func (s *ShimBackend) Connect(identity string, timeout time.Duration) error {
	ctx := context.Background()

	connected, err := s.IsConnected(identity)
	if err != nil {
		return err
	}
	if connected {
		return nil
	}

	dev, ok := s.devices.First(identity)
	if !ok {
		return s.notFound(ctx, identity)
	}

	for _, step := range []*commands.Command[commands.NoResult]{
		commands.SetPairableState(true),
		commands.Pair(dev.Address),
		commands.Trust(dev.Address),
	} {
		out, err := step.Run(ctx, s.execute)
		if err != nil {
			logging.ShellLogger.Warn("command failed", zap.String("command", step.String()), zap.Error(err))
			continue
		}

		logging.ShellLogger.Debug("command completed", zap.String("command", step.String()), zap.Int("exit_code", out.ExitCode))
	}

	out, err := commands.Connect(dev.Address, timeout).Run(ctx, s.execute)
	if err != nil {
		return s.wrap(ctx, err, "connect", "Cannot issue connect command")
	}

	logging.ShellLogger.Info("connect issued", zap.String("name", dev.Name), zap.Int("exit_code", out.ExitCode))

	return nil
}

// Disconnect disconnects the device if it is connected.
func (s *ShimBackend) Disconnect(identity string, timeout time.Duration) error {
	ctx := context.Background()

	connected, err := s.IsConnected(identity)
	if err != nil {
		return err
	}
	if !connected {
		return nil
	}

	dev, ok := s.devices.First(identity)
	if !ok {
		return s.notFound(ctx, identity)
	}

	out, err := commands.Disconnect(dev.Address, timeout).Run(ctx, s.execute)
	if err != nil {
		return s.wrap(ctx, err, "disconnect", "Cannot issue disconnect command")
	}

	logging.ShellLogger.Info("disconnect issued", zap.String("name", dev.Name), zap.Int("exit_code", out.ExitCode))

	return nil
}

func (s *ShimBackend) wrap(ctx context.Context, err error, at, msg string) error {
	return fault.Wrap(err,
		fctx.With(ctx, "error_at", at),
		ftag.With(ftag.Internal),
		fmsg.With(msg),
	)
}

func (s *ShimBackend) notFound(ctx context.Context, identity string) error {
	return fault.Wrap(errorkinds.ErrDeviceNotFound,
		fctx.With(ctx, "error_at", "lookup-device", "identity", identity),
		ftag.With(ftag.NotFound),
		fmsg.With("Device "+identity+" not found"),
	)
}
