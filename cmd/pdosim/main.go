package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"

	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/pdosim/bus"
	"github.com/nasa-jpl/pdosim/comm"
	"github.com/nasa-jpl/pdosim/fleet"
	"github.com/nasa-jpl/pdosim/telemetry"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "pdosim.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	if err := k.Load(env.Provider("PDOSIM_", ".", envKey(k)), nil); err != nil {
		log.Fatalf("error loading environment: %v", err)
	}
}

func root() {
	str := `pdosim simulates a fleet of servo axes exchanging process data over a
CANopen-style bus, and exposes an HTTP interface to drive and observe it.

Usage:
	pdosim <command>

Commands:
	run
	bench [ticks]
	listen
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `pdosim is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

Use mkconf to write the defaults to pdosim.yml, then edit it.  Any key may
also be set from the environment, e.g. PDOSIM_FLEET_AXES=3.

While running, edits to Fleet.Trajectory, Fleet.Control, Fleet.HistoryWindow
and Fleet.Mapping in pdosim.yml are applied without a restart.

Register indices in Fleet.Mapping may be numbers (0x6064) or names
(Position, Velocity, Torque, Target, Statusword, Controlword).  At most two
registers fit in one slot.

Trajectory modes: sin, triangle, line, lissajous, circle, step.  Any other
mode holds every target at zero.

Bridge mirrors all bus traffic as CRC-checked telegrams to a TCP peer or
serial port; "pdosim listen" is such a peer and prints what it receives.

MQTT publishes a JSON snapshot every MQTT.Every ticks when MQTT.Broker is set.
GET /stream serves the same snapshots over a WebSocket.`
	fmt.Println(str)
}

func mkconf() {
	c, err := unmarshal(k)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c, err := unmarshal(k)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("pdosim version %v\n", Version)
}

// watch reapplies the config file on every change
func watch(f *fleet.Fleet) {
	fp := file.Provider(ConfigFileName)
	err := fp.Watch(func(event interface{}, err error) {
		if err != nil {
			log.Printf("config watch: %v", err)
			return
		}
		kk := koanf.New(".")
		kk.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
		if err := kk.Load(fp, yaml.Parser()); err != nil {
			log.Printf("config reload: %v", err)
			return
		}
		c, err := unmarshal(kk)
		if err == nil {
			err = reload(f, c)
		}
		if err != nil {
			log.Printf("config reload rejected: %v", err)
			return
		}
		log.Println("config reloaded")
	})
	if err != nil {
		log.Printf("not watching %s: %v", ConfigFileName, err)
	}
}

// openBridge connects the configured stream, or returns nil if there is none
func openBridge(c BridgeSetup, depth int) (*bus.Stream, error) {
	if c.Addr == "" {
		return nil, nil
	}
	var rd *comm.RemoteDevice
	if c.Serial {
		rd = comm.NewRemoteDevice(c.Addr, true, comm.DefaultSerialConf(c.Addr, c.Baud))
	} else {
		rd = comm.NewRemoteDevice(c.Addr, false, nil)
	}
	if err := rd.Open(); err != nil {
		return nil, errors.Wrapf(err, "opening bridge %s", c.Addr)
	}
	return bus.NewStream(rd.Conn, depth), nil
}

func run() {
	c, err := unmarshal(k)
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := bus.NewVirtual(c.QueueDepth)
	f, err := fleet.New(c.Fleet, v.Port("fleet"), v.Port("supervisor"))
	if err != nil {
		log.Fatal(err)
	}

	hub := telemetry.NewHub()
	runner := fleet.Runner{Fleet: f, Period: c.TickPeriod, Hooks: []fleet.Hook{hub.Hook}}

	if c.MQTT.Broker != "" {
		client, err := telemetry.Dial(c.MQTT.Broker, c.MQTT.ClientID, 5*time.Second)
		if err != nil {
			log.Fatal(err)
		}
		defer client.Disconnect(250)
		m := &telemetry.MQTT{Client: client, Topic: c.MQTT.Topic}
		runner.Hooks = append(runner.Hooks, fleet.Every(c.MQTT.Every, m.Hook))
	}

	stream, err := openBridge(c.Bridge, c.QueueDepth)
	if err != nil {
		log.Fatal(err)
	}
	if stream != nil {
		defer stream.Close()
		tap := v.Port("bridge")
		go func() {
			if err := bus.Bridge(ctx, tap, stream, c.Fleet.PollTimeout); err != nil && ctx.Err() == nil {
				log.Printf("bridge stopped: %v", err)
			}
		}()
		log.Println("mirroring bus traffic to", c.Bridge.Addr)
	}

	watch(f)
	go func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("runner stopped: %v", err)
		}
	}()

	mux := BuildMux(f, hub)
	srv := &http.Server{Addr: c.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	log.Println("now listening for requests at ", c.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "bench":
		bench(args[2:])
		return
	case "listen":
		listen()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
