// Command iskra-monitor polls a configured set of meters and prints their
// snapshots.
//
// Usage:
//
//	iskra-monitor -config devices.yaml [flags]
//
// Flags:
//
//	-config string     Device list YAML file (required)
//	-event-log string  Write transport events to a CBOR .ilog file
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-once              Run one update cycle and exit
//
// The config file lists Modbus and REST devices plus the poll interval:
//
//	interval: 10s
//	devices:
//	  - name: main-feed
//	    protocol: modbus-tcp
//	    address: 10.0.0.5:502
//	  - protocol: rest
//	    address: http://10.0.0.8
//	    username: admin
//	    password: iskra
//
// Gateways are expanded: their children are polled alongside the gateway
// itself.
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iskramis/iskra-go/internal/config"
	"github.com/iskramis/iskra-go/pkg/devices"
	"github.com/iskramis/iskra-go/pkg/log"
)

func main() {
	configPath := flag.String("config", "", "Device list YAML file (required)")
	eventLog := flag.String("event-log", "", "Write transport events to a CBOR .ilog file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	once := flag.Bool("once", false, "Run one update cycle and exit")
	flag.Parse()

	stdlog.SetFlags(stdlog.Ltime)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "iskra-monitor: -config is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(*logLevel)

	var events log.Logger = log.NoopLogger{}
	if *eventLog != "" {
		fl, err := log.NewFileLogger(*eventLog)
		if err != nil {
			stdlog.Fatalf("Failed to open event log: %v", err)
		}
		defer fl.Close()
		events = fl
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	devs := buildDevices(ctx, cfg, logger, events)
	if len(devs) == 0 {
		stdlog.Fatal("No devices initialized")
	}
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Interval.Std())
	defer ticker.Stop()

	for {
		for _, d := range devs {
			updateAndPrint(ctx, d)
		}
		if *once {
			return
		}

		select {
		case sig := <-sigCh:
			stdlog.Printf("Received signal: %v, shutting down", sig)
			return
		case <-ticker.C:
		}
	}
}

// buildDevices turns every config entry into an initialized Device,
// expanding gateways into their children. Failures are logged and the
// entry skipped.
func buildDevices(ctx context.Context, cfg *config.Config, logger *slog.Logger, events log.Logger) []devices.Device {
	var devs []devices.Device
	for _, entry := range cfg.Devices {
		adapter := entry.NewAdapter(logger, events)
		dev, err := devices.CreateDevice(ctx, adapter,
			devices.WithLogger(logger), devices.WithEvents(events))
		if err != nil {
			stdlog.Printf("Skipping %s: %v", entry.Name, err)
			adapter.Close()
			continue
		}
		if err := dev.Init(ctx); err != nil {
			stdlog.Printf("Skipping %s: init failed: %v", entry.Name, err)
			dev.Close()
			continue
		}
		stdlog.Printf("Initialized %s %s (%s)", dev.Model(), dev.Serial(), entry.Name)
		devs = append(devs, dev)
		if dev.IsGateway() {
			children := dev.ChildDevices()
			stdlog.Printf("Gateway %s has %d children", dev.Serial(), len(children))
			devs = append(devs, children...)
		}
	}
	return devs
}

func updateAndPrint(ctx context.Context, d devices.Device) {
	if err := d.UpdateStatus(ctx); err != nil {
		stdlog.Printf("Update failed for %s %s: %v", d.Model(), d.Serial(), err)
		return
	}

	fmt.Printf("=== %s %s (updated %s)\n", d.Model(), d.Serial(),
		d.UpdateTimestamp().Format(time.RFC3339))

	if m := d.Measurements(); m != nil {
		for i, p := range m.Phases {
			fmt.Printf("  Phase %d: U=%.1f %s I=%.2f %s P=%.1f %s Q=%.1f %s PF=%.2f\n",
				i+1,
				p.Voltage.Value, p.Voltage.Units,
				p.Current.Value, p.Current.Units,
				p.ActivePower.Value, p.ActivePower.Units,
				p.ReactivePower.Value, p.ReactivePower.Units,
				p.PowerFactor.Value)
		}
		fmt.Printf("  Total: P=%.1f %s f=%.2f %s T=%.1f %s\n",
			m.Total.ActivePower.Value, m.Total.ActivePower.Units,
			m.Frequency.Value, m.Frequency.Units,
			m.Temperature.Value, m.Temperature.Units)
	}

	if c := d.Counters(); c != nil {
		for _, counter := range c.NonResettable {
			if counter.Direction == "" || counter.Direction == "none" {
				continue
			}
			fmt.Printf("  Counter (%s): %.2f %s\n", counter.Type, counter.Value, counter.Units)
		}
	}

	if tb := d.TimeBlocks(); tb != nil {
		fmt.Printf("  Active time block: %.0f, ends in %.0f %s\n",
			tb.ActiveBlockIndex.Value,
			tb.TimeToEndInterval.Value, tb.TimeToEndInterval.Units)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
