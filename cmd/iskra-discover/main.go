// Command iskra-discover finds meters on the local network via UDP
// broadcast and prints them as a table.
//
// Usage:
//
//	iskra-discover [flags]
//
// Flags:
//
//	-broadcast string  Comma-separated broadcast addresses (default "255.255.255.255")
//	-port int          Device listen port (default 33333)
//	-timeout duration  Reply listen window (default 3s)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Probe the default broadcast domain
//	iskra-discover
//
//	# Probe two subnets with a longer window
//	iskra-discover -broadcast 10.0.0.255,10.0.1.255 -timeout 10s
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/iskramis/iskra-go/pkg/discovery"
)

func main() {
	broadcast := flag.String("broadcast", "255.255.255.255", "Comma-separated broadcast addresses")
	port := flag.Int("port", discovery.DefaultPort, "Device listen port")
	timeout := flag.Duration("timeout", discovery.DefaultTimeout, "Reply listen window")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := newLogger(*logLevel)

	d := discovery.New(discovery.Config{
		Port:    *port,
		Timeout: *timeout,
		Logger:  logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
	defer cancel()

	devices, err := d.Discover(ctx, strings.Split(*broadcast, ",")...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovery failed: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IP ADDRESS\tMODEL\tSERIAL\tMODBUS ADDRESS")
	for _, dev := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", dev.IPAddress, dev.Model, dev.Serial, dev.ModbusAddress)
	}
	w.Flush()
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
