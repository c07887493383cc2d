package main

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/nasa-jpl/pdosim/fleet"
	"github.com/nasa-jpl/pdosim/generichttp"
	"github.com/nasa-jpl/pdosim/od"
	"github.com/nasa-jpl/pdosim/server/middleware/locker"
	"github.com/nasa-jpl/pdosim/telemetry"
)

// BridgeSetup describes where to mirror bus traffic
type BridgeSetup struct {
	// Addr is a host:port for TCP, or a device path such as /dev/ttyUSB0
	// for serial.  Empty disables the bridge.
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Serial determines if the connection is serial/RS232 (True) or TCP (False)
	Serial bool `koanf:"Serial" yaml:"Serial"`

	// Baud is the serial baud rate
	Baud int `koanf:"Baud" yaml:"Baud"`
}

// MQTTSetup describes the telemetry broker
type MQTTSetup struct {
	// Broker is e.g. tcp://localhost:1883.  Empty disables publishing.
	Broker   string `koanf:"Broker" yaml:"Broker"`
	Topic    string `koanf:"Topic" yaml:"Topic"`
	ClientID string `koanf:"ClientID" yaml:"ClientID"`

	// Every publishes one snapshot per this many ticks
	Every int64 `koanf:"Every" yaml:"Every"`
}

// Config is a struct that holds the initialization parameters for the simulator.
// It is to be populated by koanf from defaults, pdosim.yml, and the environment.
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"Addr" yaml:"Addr"`

	// TickPeriod is the wall clock time between ticks
	TickPeriod time.Duration `koanf:"TickPeriod" yaml:"TickPeriod"`

	// QueueDepth is the per-endpoint frame queue of the virtual bus
	QueueDepth int `koanf:"QueueDepth" yaml:"QueueDepth"`

	Fleet  fleet.Config `koanf:"Fleet" yaml:"Fleet"`
	Bridge BridgeSetup  `koanf:"Bridge" yaml:"Bridge"`
	MQTT   MQTTSetup    `koanf:"MQTT" yaml:"MQTT"`
}

// DefaultConfig is what mkconf writes when there is no config file
func DefaultConfig() Config {
	return Config{
		Addr:       ":8000",
		TickPeriod: 20 * time.Millisecond,
		QueueDepth: 512,
		Fleet:      fleet.DefaultConfig(),
		Bridge:     BridgeSetup{Baud: 115200},
		MQTT:       MQTTSetup{Topic: "pdosim/snapshot", ClientID: "pdosim", Every: 10},
	}
}

var indexType = reflect.TypeOf(od.Index(0))

// indexHook lets register indices be written as names or hex strings
func indexHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != indexType || from.Kind() != reflect.String {
		return data, nil
	}
	return od.ParseIndex(data.(string))
}

// unmarshal decodes the whole of k into a Config
func unmarshal(k *koanf.Koanf) (Config, error) {
	c := Config{}
	err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				indexHook),
			Result:           &c,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	})
	if err != nil {
		return c, errors.Wrap(err, "decoding config")
	}
	return c, nil
}

// envKey maps PDOSIM_FLEET_AXES to the existing key Fleet.Axes
func envKey(k *koanf.Koanf) func(string) string {
	return func(s string) string {
		key := strings.Replace(strings.TrimPrefix(s, "PDOSIM_"), "_", ".", -1)
		for _, known := range k.Keys() {
			if strings.EqualFold(known, key) {
				return known
			}
		}
		return key
	}
}

// reload applies the parts of c that can change while running
func reload(f *fleet.Fleet, c Config) error {
	if err := c.Fleet.Validate(); err != nil {
		return err
	}
	if err := f.SetParams(c.Fleet.Trajectory); err != nil {
		return err
	}
	if err := f.SetGains(c.Fleet.Control); err != nil {
		return err
	}
	if err := f.SetHistoryWindow(c.Fleet.HistoryWindow); err != nil {
		return err
	}
	return f.SetAllMappings(c.Fleet.Mapping)
}

// BuildMux converts a fleet into a chi router with its routes, the lock
// and, if hub is non-nil, the snapshot stream
func BuildMux(f *fleet.Fleet, hub *telemetry.Hub) chi.Router {
	root := chi.NewRouter()
	root.Use(middleware.Logger)

	w := fleet.NewHTTPWrapper(f)
	lock := locker.New()
	locker.Inject(w, lock)
	root.Use(lock.Check)
	if hub != nil {
		root.Method("GET", "/stream", hub)
	}
	generichttp.Bind(root, w)
	return root
}
