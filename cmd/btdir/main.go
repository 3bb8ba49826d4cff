// Btdir scans for Bluetooth devices through one of the available backends,
// lists them and optionally connects or disconnects a device by name prefix.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bluetuith-org/btdirectory/api/bluetooth"
	"github.com/bluetuith-org/btdirectory/api/config"
	"github.com/bluetuith-org/btdirectory/api/eventbus"
	"github.com/bluetuith-org/btdirectory/api/helpers/serde"
	"github.com/bluetuith-org/btdirectory/api/logging"
	"github.com/bluetuith-org/btdirectory/api/session"
	"github.com/bluetuith-org/btdirectory/platform"
)

// maxDevices is the number of display names requested from the session.
const maxDevices = 64

// pollInterval is the delay between connection state checks.
const pollInterval = time.Second

type options struct {
	configPath  string
	backend     string
	scan        bool
	scanTimeout time.Duration
	connect     string
	disconnect  string
	wait        time.Duration
	json        bool
}

func main() {
	var opts options

	flag.StringVar(&opts.configPath, "config", "", "path to YAML configuration file (defaults are used if empty)")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	flag.StringVar(&opts.backend, "backend", "", "backend identifier or prefix (overrides the configured backend)")
	flag.BoolVar(&opts.scan, "scan", true, "scan before listing devices")
	flag.DurationVar(&opts.scanTimeout, "scan-timeout", 0, "discovery window (overrides the configured scan timeout)")
	flag.StringVar(&opts.connect, "connect", "", "connect the device whose name starts with this prefix")
	flag.StringVar(&opts.disconnect, "disconnect", "", "disconnect the device whose name starts with this prefix")
	flag.DurationVar(&opts.wait, "wait", 5*time.Second, "how long to wait for a connection state change")
	flag.BoolVar(&opts.json, "json", false, "print devices as JSON")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv loads environment variables from path. If the file does not exist
// it is silently ignored so that .env files remain optional.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func loadConfig(opts options) (config.Configuration, error) {
	cfg := config.New()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}

	if opts.backend != "" {
		cfg.Backend = opts.backend
	}
	if opts.scanTimeout > 0 {
		cfg.ScanTimeout = opts.scanTimeout
	}

	return cfg, nil
}

// run opens the configured backend, runs the requested operations and frees the session.
func run(opts options, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logging.SetLogger(logger)

	events := eventbus.New()
	sess := session.New(cfg, session.WithEventBus(events))
	defer func() {
		if err := sess.Free(); err != nil {
			logger.Warn("session free failed", zap.Error(err))
		}
	}()

	go logEvents(events.Subscribe(bluetooth.EventScanCompleted), logger)

	if err := sess.Open(cfg.Backend); err != nil {
		return errors.New(sess.ErrMsg())
	}

	if opts.scan {
		fmt.Fprintln(out, "scanning...")
		if !sess.Scan(cfg.ScanTimeout) {
			return errors.New(sess.ErrMsg())
		}
	}

	if err := printDevices(sess, opts.json, out); err != nil {
		return err
	}

	if opts.connect != "" {
		fmt.Fprintf(out, "%s connecting\n", opts.connect)
		sess.Connect(opts.connect, 0)

		ok := waitStatus(ctx, sess.IsConnected, opts.connect, true, opts.wait, pollInterval)
		fmt.Fprintf(out, "%s connected %s\n", opts.connect, result(ok))
	}

	if opts.disconnect != "" {
		fmt.Fprintf(out, "%s disconnecting\n", opts.disconnect)
		sess.Disconnect(opts.disconnect, 0)

		ok := waitStatus(ctx, sess.IsConnected, opts.disconnect, false, opts.wait, pollInterval)
		fmt.Fprintf(out, "%s disconnected %s\n", opts.disconnect, result(ok))
	}

	return nil
}

// deviceList is the JSON document printed with -json.
type deviceList struct {
	Backend  string                 `codec:"backend"`
	Platform platform.PlatformInfo  `codec:"platform"`
	Devices  []bluetooth.DeviceData `codec:"devices"`
}

func printDevices(sess *session.Session, asJSON bool, out io.Writer) error {
	if asJSON {
		entry, _ := sess.Backend()

		data, err := serde.MarshalJson(deviceList{
			Backend:  entry.Ident,
			Platform: entry.Info(),
			Devices:  sess.Devices(),
		})
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	names := make([]string, maxDevices)
	n := sess.GetDevices(names)
	for i, name := range names[:n] {
		fmt.Fprintf(out, "%2d: %s\n", i, name)
	}

	return nil
}

func logEvents(sub eventbus.Subscription, logger *zap.Logger) {
	for ev := range sub.C {
		if data, ok := ev.(bluetooth.ScanEventData); ok {
			logger.Debug("scan completed",
				zap.String("backend", data.Backend),
				zap.Int("devices", data.Devices),
				zap.Int64("generation", data.Generation),
			)
		}
	}
}

// waitStatus polls isConnected until the device reaches the wanted state,
// the timeout elapses or ctx is done. The state is checked at least once.
func waitStatus(ctx context.Context, isConnected func(string) bool, device string, connected bool, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		if isConnected(device) == connected {
			return true
		}

		if !time.Now().Before(deadline) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}

func result(ok bool) string {
	if ok {
		return "OK"
	}

	return "fail"
}
