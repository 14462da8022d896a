// Package config loads the node's typed configuration. Everything here
// is read-only for the life of the process.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/emonode/emonode/proto"
)

type Config struct {
	Node   NodeConfig   `yaml:"node"`
	Radio  RadioConfig  `yaml:"radio"`
	Sensor SensorConfig `yaml:"sensor"`
	Bridge BridgeConfig `yaml:"bridge"`
	Web    WebConfig    `yaml:"web"`
}

type NodeConfig struct {
	ID            int `yaml:"id"`              // radio node identifier, 1-30
	Group         int `yaml:"group"`           // network group, 0-255
	CyclePeriodMS int `yaml:"cycle_period_ms"` // idle period between cycles
}

type RadioConfig struct {
	Band           uint16 `yaml:"band"`             // 433, 868 or 915 (MHz)
	AckMode        bool   `yaml:"ack_mode"`         // retry until acknowledged
	RetryPeriodSec int    `yaml:"retry_period_sec"` // backoff between attempts
	RetryLimit     int    `yaml:"retry_limit"`      // retries after the first attempt
	AckWaitMS      int    `yaml:"ack_wait_ms"`      // ack poll window per attempt
}

type SensorConfig struct {
	Channel       int     `yaml:"channel"`        // CT input channel
	Calibration   float64 `yaml:"calibration"`    // turns-ratio / burden factor
	OnThreshold   float64 `yaml:"on_threshold"`   // whole-amp on/off threshold
	ScaleConstant int     `yaml:"scale_constant"` // supply back-calculation constant

	// Simulated front-end, used when no analog hardware is attached.
	SimAmplitude float64 `yaml:"sim_amplitude"`  // synthetic waveform peak, ADC counts
	SimSupplyRaw int     `yaml:"sim_supply_raw"` // synthetic supply reference reading
}

type BridgeConfig struct {
	URL      string `yaml:"url"`      // ws://host:port/radio; empty = discover
	Discover bool   `yaml:"discover"` // find a gateway over mDNS
}

type WebConfig struct {
	Addr string `yaml:"addr"` // diagnostic HTTP listener
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Node.CyclePeriodMS == 0 {
		c.Node.CyclePeriodMS = 10000
	}
	if c.Radio.Band == 0 {
		c.Radio.Band = 433
	}
	if c.Radio.RetryPeriodSec == 0 {
		c.Radio.RetryPeriodSec = 5
	}
	if c.Radio.RetryLimit == 0 {
		c.Radio.RetryLimit = 5
	}
	if c.Radio.AckWaitMS == 0 {
		c.Radio.AckWaitMS = 100
	}
	if c.Sensor.Calibration == 0 {
		c.Sensor.Calibration = 0.1
	}
	if c.Sensor.OnThreshold == 0 {
		c.Sensor.OnThreshold = 0.1
	}
	if c.Sensor.ScaleConstant == 0 {
		c.Sensor.ScaleConstant = 1126400
	}
	if c.Sensor.SimAmplitude == 0 {
		c.Sensor.SimAmplitude = 25
	}
	if c.Sensor.SimSupplyRaw == 0 {
		c.Sensor.SimSupplyRaw = 900
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":9110"
	}
}

func (c *Config) validate() error {
	if c.Node.ID < proto.MinNodeID || c.Node.ID > proto.MaxNodeID {
		return fmt.Errorf("node.id must be %d-%d, got %d", proto.MinNodeID, proto.MaxNodeID, c.Node.ID)
	}
	if c.Node.Group < 0 || c.Node.Group > 255 {
		return fmt.Errorf("node.group must be 0-255, got %d", c.Node.Group)
	}
	switch c.Radio.Band {
	case 433, 868, 915:
	default:
		return fmt.Errorf("radio.band must be 433, 868 or 915, got %d", c.Radio.Band)
	}
	if c.Radio.RetryLimit < 0 {
		return fmt.Errorf("radio.retry_limit must not be negative")
	}
	if c.Node.CyclePeriodMS < 0 {
		return fmt.Errorf("node.cycle_period_ms must not be negative")
	}
	if c.Bridge.URL == "" && !c.Bridge.Discover {
		return fmt.Errorf("either bridge.url or bridge.discover is required")
	}
	return nil
}
