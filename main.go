package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/user/blesm/config"
	"github.com/user/blesm/eventqueue"
	"github.com/user/blesm/gap"
	"github.com/user/blesm/logger"
	"github.com/user/blesm/simstack"
	"github.com/user/blesm/smdevice"
	"github.com/user/blesm/stack"
	"github.com/user/blesm/tinygoble"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (defaults apply when empty)")
	stackKind := flag.String("stack", "sim", "radio stack backend: sim or tinygo")
	role := flag.String("role", "peripheral", "device role: peripheral or central")
	demoPeer := flag.Bool("demo-peer", true, "with -stack sim, script a peer central that connects and pairs")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	queue := eventqueue.New()

	var radio stack.Stack
	switch *stackKind {
	case "sim":
		simCfg := simstack.DefaultConfig()
		simCfg.Deterministic = cfg.Sim.Deterministic
		simCfg.Seed = cfg.Sim.Seed
		simCfg.PairingFailureRate = cfg.Sim.PairingFailureRate
		simCfg.EventLog = cfg.Sim.EventLog
		sim := simstack.New(queue, simCfg)
		radio = sim
		if *demoPeer {
			go runDemoPeer(sim)
		}
	case "tinygo":
		radio = tinygoble.New(queue)
	default:
		fmt.Fprintf(os.Stderr, "error: unknown stack %q (want sim or tinygo)\n", *stackKind)
		os.Exit(1)
	}

	serviceIDs, err := cfg.ParseServiceUUIDs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	level, err := cfg.ParseSecurityLevel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	opts := smdevice.Options{
		DeviceName:            cfg.DeviceName,
		ServiceIDs:            serviceIDs,
		AdvertisingIntervalMs: cfg.AdvertisingIntervalMs,
		AdvertisingTimeoutS:   cfg.AdvertisingTimeoutS,
		AutoAcceptPairing:     cfg.AutoAcceptPairing,
		SecurityLevel:         level,
	}

	var dev *smdevice.Device
	switch *role {
	case "peripheral":
		dev = smdevice.NewPeripheral(radio, queue, opts)
	case "central":
		dev = smdevice.NewCentral(radio, queue, opts)
	default:
		fmt.Fprintf(os.Stderr, "error: unknown role %q (want peripheral or central)\n", *role)
		os.Exit(1)
	}

	// Blocks for the lifetime of the device; returns only on a fatal
	// initialization error or an explicit shutdown.
	if err := dev.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// runDemoPeer scripts a central against the simulated stack: connect, let
// the pairing procedure run, hold the encrypted link for a while, then
// disconnect and let the device re-advertise. Repeats forever.
func runDemoPeer(sim *simstack.Stack) {
	for {
		for !sim.IsAdvertising() {
			time.Sleep(100 * time.Millisecond)
		}

		peer := sim.NewPeer()
		if _, err := peer.Connect(); err != nil {
			logger.Warn("demo-peer", "connect: %v", err)
			time.Sleep(time.Second)
			continue
		}

		time.Sleep(3 * time.Second)
		if err := peer.Disconnect(gap.ReasonRemoteUserTerminated); err != nil {
			logger.Warn("demo-peer", "disconnect: %v", err)
		}
		time.Sleep(2 * time.Second)
	}
}
