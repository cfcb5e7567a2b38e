package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/streetgrid/gridnode/internal/adapter/actor"
	"github.com/streetgrid/gridnode/internal/adapter/link"
	"github.com/streetgrid/gridnode/internal/config"
	"github.com/streetgrid/gridnode/internal/core/actor"
	"github.com/streetgrid/gridnode/internal/core/service"
	"github.com/streetgrid/gridnode/internal/server"
	"github.com/streetgrid/gridnode/internal/util/actorutil"
	"github.com/streetgrid/gridnode/pkg/hal"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// the server has 5 seconds to finish the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	version := versioninfo.Short()
	logger.Info("starting gridnode", zap.String("version", version), zap.String("node", cfg.NodeId),
		zap.String("mesh_type", cfg.MeshType), zap.Int("relays", len(cfg.Relays)))

	relayDriver, err := relayDriverFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("relay driver", zap.Error(err))
	}
	sensor, err := powerSensorFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("power sensor", zap.Error(err))
	}
	node, err := service.NodeFromConfig(cfg, relayDriver, logger)
	if err != nil {
		logger.Fatal("node", zap.Error(err))
	}

	deps := actor.NodeDeps{
		Node:    node,
		Link:    link.NewOrchestratorClient(transportFromConfig(cfg, logger), logger),
		Sensor:  sensor,
		Version: version,
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, deps, statusActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Fatal("could not spawn master actor", zap.Error(err))
	}

	server := server.NewServer(cfg, version, ctx, pid, logger)
	done := make(chan bool, 1)

	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => GRIDNODE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("GRIDNODE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("gridnode")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	if cfg.Comms.Transport == config.TRANSPORT_MQTT || cfg.Status.Enable {
		if cfg.MQTT.Host == "" {
			return nil, errors.New("config param mqtt.host is required by comms.transport=mqtt and status.enable")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func relayDriverFromConfig(cfg *config.Config, logger *zap.Logger) (hal.RelayControl, error) {
	pins := cfg.BuildRelayPins()
	switch cfg.Hardware.RelayDriver {
	case config.DRIVER_SIM:
		return hal.NewSimRelayDriver(pins), nil
	case config.DRIVER_MODBUS:
		driver, err := hal.CreateModbusRelayDriver(cfg.Hardware.Modbus.Host, cfg.Hardware.Modbus.Port,
			cfg.Hardware.Modbus.RelayUnitId, modbusTimeout(cfg), pins, logger, nil)
		if err != nil {
			return nil, err
		}
		// every write redials while the board is unreachable
		if err := driver.Open(); err != nil {
			logger.Warn("relay board not reachable yet", zap.Error(err))
		}
		return driver, nil
	default:
		logger.Warn("no relay driver configured, relay changes are logical only")
		return nil, nil
	}
}

func powerSensorFromConfig(cfg *config.Config, logger *zap.Logger) (hal.PowerSensor, error) {
	adc := cfg.BuildAdcConfig()
	switch cfg.Hardware.PowerSensor {
	case config.DRIVER_SIM:
		return hal.NewSimPowerSensor(adc), nil
	case config.DRIVER_MODBUS:
		m := cfg.Hardware.Modbus
		sensor, err := hal.CreateModbusPowerSensor(m.Host, m.Port, m.AdcUnitId, modbusTimeout(cfg), adc,
			m.AdcRegister, m.VoltageRegister, m.VoltageScale, logger, nil)
		if err != nil {
			return nil, err
		}
		if err := sensor.Open(); err != nil {
			logger.Warn("power sensor not reachable yet", zap.Error(err))
		}
		return sensor, nil
	default:
		logger.Warn("no power sensor configured, line voltage stays at the reference value")
		return nil, nil
	}
}

func transportFromConfig(cfg *config.Config, logger *zap.Logger) link.Transport {
	switch cfg.Comms.Transport {
	case config.TRANSPORT_SIM:
		r := cfg.Comms.Radio
		return link.NewSimRadioTransport(link.RadioConfig{
			Frequency:       r.Frequency,
			Bandwidth:       r.Bandwidth,
			SpreadingFactor: r.SpreadingFactor,
			TxPower:         r.TxPower,
		}, logger)
	case config.TRANSPORT_MQTT:
		return link.NewMQTTTransport(cfg, logger)
	default:
		return link.NewLogTransport(logger)
	}
}

func statusActorProvider(cfg *config.Config, logger *zap.Logger) actor.StatusActorProvider {
	if !cfg.Status.Enable {
		return nil
	}
	return func(nodeActor *pactor.PID, eventStream *eventstream.EventStream) *adactor.StatusActor {
		return adactor.NewStatusActor(cfg, nodeActor, eventStream, logger)
	}
}

func modbusTimeout(cfg *config.Config) time.Duration {
	if cfg.Hardware.Modbus.TimeoutMillis > 0 {
		return time.Duration(cfg.Hardware.Modbus.TimeoutMillis) * time.Millisecond
	}
	return 1 * time.Second
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mesh_type", "AdHoc")
	viper.SetDefault("hardware.modbus.port", 502)
	viper.SetDefault("hardware.modbus.timeout_millis", 1000)
	viper.SetDefault("hardware.modbus.voltage_scale", 0.1)
	viper.SetDefault("hardware.adc.channel", 0)
	viper.SetDefault("hardware.adc.ct_ratio", hal.DefaultAdcConfig().CTRatio)
	viper.SetDefault("hardware.adc.voltage_ref", hal.DefaultAdcConfig().VoltageRef)
	viper.SetDefault("hardware.adc.burden_resistor", hal.DefaultAdcConfig().BurdenResistor)
	viper.SetDefault("comms.send_timeout_millis", 2000)
	viper.SetDefault("comms.receive_timeout_millis", 50)
	viper.SetDefault("comms.reconnect_interval_millis", 5000)
	viper.SetDefault("comms.queue_size", 16)
	viper.SetDefault("comms.radio.frequency", link.DEFAULT_RADIO_FREQUENCY)
	viper.SetDefault("comms.radio.bandwidth", link.DEFAULT_RADIO_BANDWIDTH)
	viper.SetDefault("comms.radio.spreading_factor", link.DEFAULT_RADIO_SPREADING_FACTOR)
	viper.SetDefault("comms.radio.tx_power", link.DEFAULT_RADIO_TX_POWER)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "gridnode")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("loop.sense_interval_millis", 5000)
	viper.SetDefault("loop.heartbeat_interval_millis", 60000)
	viper.SetDefault("loop.command_poll_interval_millis", 100)
	viper.SetDefault("sensing.undervoltage_threshold", service.UNDERVOLTAGE_THRESHOLD)
	viper.SetDefault("status.enable", false)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
