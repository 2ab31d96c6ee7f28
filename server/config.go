// Package server ties the GNSS source, the filtering pipeline, and the
// outbound sinks (websocket, MQTT) into one anchor watch session.
package server

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"anchorwatch/filter"
)

// Config holds all service configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Server HTTPConfig   `yaml:"server"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Watch  WatchConfig  `yaml:"watch"`
	Anchor AnchorConfig `yaml:"anchor"`
	Filter FilterConfig `yaml:"filter"`
}

type SerialConfig struct {
	Port       string `yaml:"port"`
	Baud       int    `yaml:"baud"`
	RecordPath string `yaml:"record_path"` // empty disables recording
}

type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type WatchConfig struct {
	// StarvationS is how long the session waits without a usable fix
	// before declaring the position source unavailable.
	StarvationS   float64 `yaml:"starvation_s"`
	TrackCapacity int     `yaml:"track_capacity"`
}

// AnchorConfig pre-arms the watch at startup when Set is true.
type AnchorConfig struct {
	Set     bool    `yaml:"set"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
	RadiusM float64 `yaml:"radius_m"`
}

// FilterConfig exposes the pipeline tunables that are worth overriding from
// a config file. Zero values fall back to the pipeline defaults.
type FilterConfig struct {
	MaxAccuracyM        float64 `yaml:"max_accuracy_m"`
	SoftAccuracyM       float64 `yaml:"soft_accuracy_m"`
	PoorAccuracyLimit   int     `yaml:"poor_accuracy_limit"`
	MaxSpeedKn          float64 `yaml:"max_speed_kn"`
	MaxAccelerationMps2 float64 `yaml:"max_acceleration_mps2"`
	ProcessNoise        float64 `yaml:"process_noise"`
	SmootherWindow      int     `yaml:"smoother_window"`
	SmootherDecayS      float64 `yaml:"smoother_decay_s"`
}

// ToFilter merges the overrides onto the pipeline defaults.
func (f FilterConfig) ToFilter() filter.Config {
	cfg := filter.DefaultConfig()
	if f.MaxAccuracyM > 0 {
		cfg.MaxAccuracyM = f.MaxAccuracyM
	}
	if f.SoftAccuracyM > 0 {
		cfg.SoftAccuracyM = f.SoftAccuracyM
	}
	if f.PoorAccuracyLimit > 0 {
		cfg.PoorAccuracyLimit = f.PoorAccuracyLimit
	}
	if f.MaxSpeedKn > 0 {
		cfg.MaxSpeedKn = f.MaxSpeedKn
	}
	if f.MaxAccelerationMps2 > 0 {
		cfg.MaxAccelerationMps2 = f.MaxAccelerationMps2
	}
	if f.ProcessNoise > 0 {
		cfg.ProcessNoise = f.ProcessNoise
	}
	if f.SmootherWindow > 0 {
		cfg.SmootherWindow = f.SmootherWindow
	}
	if f.SmootherDecayS > 0 {
		cfg.SmootherDecayS = f.SmootherDecayS
	}
	return cfg
}

// DefaultServerConfig returns a config with sensible defaults.
func DefaultServerConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/ttyUSB0",
			Baud: 4800,
		},
		Server: HTTPConfig{
			ListenAddr: ":8080",
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Broker:      "tcp://localhost:1883",
			ClientID:    "anchorwatch",
			TopicPrefix: "anchorwatch",
		},
		Watch: WatchConfig{
			StarvationS:   15,
			TrackCapacity: 3600,
		},
	}
}

// LoadConfig reads config from a YAML file, falling back to defaults when
// the file is missing or malformed.
func LoadConfig(path string) *Config {
	cfg := DefaultServerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		return DefaultServerConfig()
	}
	log.Printf("[config] loaded from %s", path)
	return cfg
}
