package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/streetgrid/gridnode/internal/core/domain"
	"github.com/streetgrid/gridnode/pkg/hal"

	"go.uber.org/zap/zapcore"
)

const (
	DRIVER_NONE   = ""
	DRIVER_SIM    = "sim"
	DRIVER_MODBUS = "modbus"

	TRANSPORT_NONE = ""
	TRANSPORT_SIM  = "sim"
	TRANSPORT_MQTT = "mqtt"
)

type Config struct {
	LogLevel zapcore.Level
	NodeId   string        `mapstructure:"node_id"`
	MeshType string        `mapstructure:"mesh_type"`
	Relays   []RelayConfig `mapstructure:"relays"`

	Hardware HardwareConfig `mapstructure:"hardware"`
	Comms    CommsConfig    `mapstructure:"comms"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Loop     LoopConfig     `mapstructure:"loop"`
	Sensing  SensingConfig  `mapstructure:"sensing"`
	Status   StatusConfig   `mapstructure:"status"`
	Port     uint           `mapstructure:"port"`
	HttpLog  bool           `mapstructure:"http_log"`
}

type RelayConfig struct {
	Id       string
	Name     string
	Type     string
	Priority string
	Amperage float32
	IsClosed bool `mapstructure:"is_closed"`
}

type HardwareConfig struct {
	RelayDriver string           `mapstructure:"relay_driver"`
	PowerSensor string           `mapstructure:"power_sensor"`
	RelayPins   []RelayPinConfig `mapstructure:"relay_pins"`
	Modbus      ModbusConfig     `mapstructure:"modbus"`
	Adc         AdcConfig        `mapstructure:"adc"`
}

type RelayPinConfig struct {
	RelayId   string `mapstructure:"relay_id"`
	Pin       uint8
	ActiveLow bool `mapstructure:"active_low"`
}

type ModbusConfig struct {
	Host            string
	Port            uint
	RelayUnitId     uint8   `mapstructure:"relay_unit_id"`
	AdcUnitId       uint8   `mapstructure:"adc_unit_id"`
	TimeoutMillis   uint32  `mapstructure:"timeout_millis"`
	AdcRegister     uint16  `mapstructure:"adc_register"`
	VoltageRegister uint16  `mapstructure:"voltage_register"`
	VoltageScale    float32 `mapstructure:"voltage_scale"`
}

type AdcConfig struct {
	Channel        uint8
	CTRatio        float32 `mapstructure:"ct_ratio"`
	VoltageRef     float32 `mapstructure:"voltage_ref"`
	BurdenResistor float32 `mapstructure:"burden_resistor"`
}

type CommsConfig struct {
	Transport               string      `mapstructure:"transport"`
	SendTimeoutMillis       uint32      `mapstructure:"send_timeout_millis"`
	ReceiveTimeoutMillis    uint32      `mapstructure:"receive_timeout_millis"`
	ReconnectIntervalMillis uint32      `mapstructure:"reconnect_interval_millis"`
	QueueSize               uint        `mapstructure:"queue_size"`
	Radio                   RadioConfig `mapstructure:"radio"`
}

type RadioConfig struct {
	Frequency       uint32
	Bandwidth       uint32
	SpreadingFactor uint8 `mapstructure:"spreading_factor"`
	TxPower         int8  `mapstructure:"tx_power"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type LoopConfig struct {
	SenseIntervalMillis       uint32 `mapstructure:"sense_interval_millis"`
	HeartbeatIntervalMillis   uint32 `mapstructure:"heartbeat_interval_millis"`
	CommandPollIntervalMillis uint32 `mapstructure:"command_poll_interval_millis"`
}

type SensingConfig struct {
	UndervoltageThreshold float32 `mapstructure:"undervoltage_threshold"`
}

type StatusConfig struct {
	Enable bool
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

func (cfg Config) BuildMeshType() (domain.MeshType, error) {
	return domain.ParseMeshType(cfg.MeshType)
}

// BuildRelays returns the relay inventory in configuration order.
func (cfg Config) BuildRelays() ([]domain.Relay, error) {
	relays := make([]domain.Relay, 0, len(cfg.Relays))
	for i, rc := range cfg.Relays {
		relayType, err := domain.ParseRelayType(rc.Type)
		if err != nil {
			return nil, fmt.Errorf("relays[%d] %s: %w", i, rc.Id, err)
		}
		priority, err := domain.ParsePriority(rc.Priority)
		if err != nil {
			return nil, fmt.Errorf("relays[%d] %s: %w", i, rc.Id, err)
		}
		name := rc.Name
		if name == "" {
			name = rc.Id
		}
		relays = append(relays, domain.Relay{
			Id:        rc.Id,
			Name:      name,
			RelayType: relayType,
			Priority:  priority,
			Amperage:  rc.Amperage,
			IsClosed:  rc.IsClosed,
		})
	}
	return relays, nil
}

func (cfg Config) BuildRelayPins() []hal.RelayPin {
	pins := make([]hal.RelayPin, 0, len(cfg.Hardware.RelayPins))
	for _, p := range cfg.Hardware.RelayPins {
		pins = append(pins, hal.RelayPin{
			RelayId:   p.RelayId,
			Pin:       p.Pin,
			ActiveLow: p.ActiveLow,
		})
	}
	return pins
}

func (cfg Config) BuildAdcConfig() hal.AdcConfig {
	adc := hal.DefaultAdcConfig()
	if cfg.Hardware.Adc.CTRatio > 0 {
		adc.CTRatio = cfg.Hardware.Adc.CTRatio
	}
	if cfg.Hardware.Adc.VoltageRef > 0 {
		adc.VoltageRef = cfg.Hardware.Adc.VoltageRef
	}
	if cfg.Hardware.Adc.BurdenResistor > 0 {
		adc.BurdenResistor = cfg.Hardware.Adc.BurdenResistor
	}
	return adc
}

// Validate checks the config for errors that must stop the node at startup.
func (cfg Config) Validate() error {
	var errs []error

	if strings.TrimSpace(cfg.NodeId) == "" {
		errs = append(errs, errors.New("config param node_id is required"))
	}
	if _, err := cfg.BuildMeshType(); err != nil {
		errs = append(errs, fmt.Errorf("config param mesh_type: %w", err))
	}

	ids := make(map[string]bool, len(cfg.Relays))
	for i, r := range cfg.Relays {
		if r.Id == "" {
			errs = append(errs, fmt.Errorf("config param relays[%d].id is required", i))
			continue
		}
		if ids[r.Id] {
			errs = append(errs, fmt.Errorf("duplicate relay id %q", r.Id))
		}
		ids[r.Id] = true
	}
	if _, err := cfg.BuildRelays(); err != nil {
		errs = append(errs, err)
	}

	pins := make(map[uint8]string, len(cfg.Hardware.RelayPins))
	for _, p := range cfg.Hardware.RelayPins {
		if !ids[p.RelayId] {
			errs = append(errs, fmt.Errorf("relay pin %d references unknown relay %q", p.Pin, p.RelayId))
		}
		if other, ok := pins[p.Pin]; ok {
			errs = append(errs, fmt.Errorf("relay pin %d assigned to both %q and %q", p.Pin, other, p.RelayId))
		}
		pins[p.Pin] = p.RelayId
	}

	switch cfg.Hardware.RelayDriver {
	case DRIVER_NONE, DRIVER_SIM, DRIVER_MODBUS:
	default:
		errs = append(errs, fmt.Errorf("unknown hardware.relay_driver %q", cfg.Hardware.RelayDriver))
	}
	switch cfg.Hardware.PowerSensor {
	case DRIVER_NONE, DRIVER_SIM, DRIVER_MODBUS:
	default:
		errs = append(errs, fmt.Errorf("unknown hardware.power_sensor %q", cfg.Hardware.PowerSensor))
	}
	if cfg.Hardware.Adc.Channel >= hal.ADC_CHANNELS {
		errs = append(errs, fmt.Errorf("config param hardware.adc.channel should be < %d", hal.ADC_CHANNELS))
	}
	switch cfg.Comms.Transport {
	case TRANSPORT_NONE, TRANSPORT_SIM, TRANSPORT_MQTT:
	default:
		errs = append(errs, fmt.Errorf("unknown comms.transport %q", cfg.Comms.Transport))
	}

	if cfg.Loop.SenseIntervalMillis == 0 {
		errs = append(errs, errors.New("config param loop.sense_interval_millis should be > 0"))
	}
	if cfg.Loop.HeartbeatIntervalMillis == 0 {
		errs = append(errs, errors.New("config param loop.heartbeat_interval_millis should be > 0"))
	}
	if cfg.Loop.CommandPollIntervalMillis == 0 {
		errs = append(errs, errors.New("config param loop.command_poll_interval_millis should be > 0"))
	}

	return errors.Join(errs...)
}
