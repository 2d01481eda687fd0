// Command iskra-mqtt polls a configured set of meters and publishes their
// snapshots as JSON over MQTT.
//
// Usage:
//
//	iskra-mqtt -config devices.yaml -broker tcp://localhost:1883 [flags]
//
// Flags:
//
//	-config string        Device list YAML file (required)
//	-broker string        MQTT broker URL (required)
//	-topic-prefix string  Topic prefix (default "iskra")
//	-client-id string     MQTT client ID (default "iskra-mqtt")
//	-mqtt-user string     MQTT username
//	-mqtt-pass string     MQTT password
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Snapshots are published per device:
//
//	<prefix>/<serial>/measurements
//	<prefix>/<serial>/counters
//	<prefix>/<serial>/timeblocks
//
// Gateways are expanded: their children publish under their own serials.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/iskramis/iskra-go/internal/config"
	"github.com/iskramis/iskra-go/pkg/devices"
)

func main() {
	configPath := flag.String("config", "", "Device list YAML file (required)")
	broker := flag.String("broker", "", "MQTT broker URL (required)")
	topicPrefix := flag.String("topic-prefix", "iskra", "Topic prefix")
	clientID := flag.String("client-id", "iskra-mqtt", "MQTT client ID")
	mqttUser := flag.String("mqtt-user", "", "MQTT username")
	mqttPass := flag.String("mqtt-pass", "", "MQTT password")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	stdlog.SetFlags(stdlog.Ltime)

	if *configPath == "" || *broker == "" {
		fmt.Fprintln(os.Stderr, "iskra-mqtt: -config and -broker are required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(*logLevel)

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID(*clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	if *mqttUser != "" {
		opts.SetUsername(*mqttUser)
		opts.SetPassword(*mqttPass)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		stdlog.Fatalf("Failed to connect to broker: %v", token.Error())
	}
	defer client.Disconnect(250)
	stdlog.Printf("Connected to %s", *broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	devs := buildDevices(ctx, cfg, logger)
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
			publishDevice(ctx, client, *topicPrefix, d)
		}

		select {
		case sig := <-sigCh:
			stdlog.Printf("Received signal: %v, shutting down", sig)
			return
		case <-ticker.C:
		}
	}
}

func buildDevices(ctx context.Context, cfg *config.Config, logger *slog.Logger) []devices.Device {
	var devs []devices.Device
	for _, entry := range cfg.Devices {
		adapter := entry.NewAdapter(logger, nil)
		dev, err := devices.CreateDevice(ctx, adapter, devices.WithLogger(logger))
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
			devs = append(devs, dev.ChildDevices()...)
		}
	}
	return devs
}

func publishDevice(ctx context.Context, client mqtt.Client, prefix string, d devices.Device) {
	if err := d.UpdateStatus(ctx); err != nil {
		stdlog.Printf("Update failed for %s %s: %v", d.Model(), d.Serial(), err)
		return
	}

	base := fmt.Sprintf("%s/%s", prefix, d.Serial())
	publish(client, base+"/measurements", d.Measurements())
	publish(client, base+"/counters", d.Counters())
	if tb := d.TimeBlocks(); tb != nil {
		publish(client, base+"/timeblocks", tb)
	}
}

func publish(client mqtt.Client, topic string, payload any) {
	if payload == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		stdlog.Printf("Marshal for %s failed: %v", topic, err)
		return
	}
	token := client.Publish(topic, 0, true, raw)
	if token.Wait() && token.Error() != nil {
		stdlog.Printf("Publish to %s failed: %v", topic, token.Error())
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
