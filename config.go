package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"i4.energy/across/sensorlink/packet"
)

// Config holds the application configuration
type Config struct {
	// SerialPort is the path to the radio's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the radio (e.g. 115200)
	BaudRate int
	// ClientName is carried by every packet
	ClientName string
	// SSID and Password of the access point to join
	SSID     string
	Password string
	// TargetHost and TargetPort form the UDP destination of the packets
	TargetHost string
	TargetPort int
	// SendInterval separates duty cycles
	SendInterval time.Duration
	// ReplyTimeout bounds the wait for each AT reply; zero waits indefinitely
	ReplyTimeout time.Duration
	// AssociateAttempts is the number of join attempts per cycle
	AssociateAttempts int
	// BindAddress is the address the HTTP server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// ListenAddress is the UDP address the collector reads packets from
	ListenAddress string
	// MQTTBroker is the broker URL; empty disables MQTT
	MQTTBroker string
	// MQTTTopic is the topic prefix readings and events are published under
	MQTTTopic string
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
}

// Setting keys, shared by flags and config files. Environment variables use
// the upper case form with underscores.
const (
	keySerialPort        = "serial-port"
	keyBaudRate          = "baud-rate"
	keyClientName        = "client-name"
	keySSID              = "wifi-ssid"
	keyPassword          = "wifi-password"
	keyTargetHost        = "target-host"
	keyTargetPort        = "target-port"
	keySendInterval      = "send-interval"
	keyReplyTimeout      = "reply-timeout"
	keyAssociateAttempts = "associate-attempts"
	keyBindAddress       = "bind-address"
	keyListenAddress     = "listen-address"
	keyMQTTBroker        = "mqtt-broker"
	keyMQTTTopic         = "mqtt-topic"
	keyLogLevel          = "log-level"
)

var envKeys = map[string]string{
	"SERIAL_PORT":        keySerialPort,
	"BAUD_RATE":          keyBaudRate,
	"CLIENT_NAME":        keyClientName,
	"WIFI_SSID":          keySSID,
	"WIFI_PASSWORD":      keyPassword,
	"TARGET_HOST":        keyTargetHost,
	"TARGET_PORT":        keyTargetPort,
	"SEND_INTERVAL":      keySendInterval,
	"REPLY_TIMEOUT":      keyReplyTimeout,
	"ASSOCIATE_ATTEMPTS": keyAssociateAttempts,
	"BIND_ADDRESS":       keyBindAddress,
	"LISTEN_ADDRESS":     keyListenAddress,
	"MQTT_BROKER":        keyMQTTBroker,
	"MQTT_TOPIC":         keyMQTTTopic,
	"LOG_LEVEL":          keyLogLevel,
}

var ErrIncompleteConfig = errors.New("incomplete configuration")

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.ClientName = "sensorlink"
		c.TargetPort = 6301
		c.SendInterval = 10 * time.Second
		c.ReplyTimeout = 10 * time.Second
		c.AssociateAttempts = 3
		c.BindAddress = "0.0.0.0:8080"
		c.ListenAddress = "0.0.0.0:6301"
		c.MQTTTopic = "sensorlink"
		c.LogLevel = "info"
		return nil
	}
}

// WithFile loads configuration from a YAML, JSON or TOML file. An empty
// path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}

		for _, key := range envKeys {
			if v.IsSet(key) {
				if err := c.set(key, v.GetString(key)); err != nil {
					return fmt.Errorf("config file %s: %w", path, err)
				}
			}
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		for env, key := range envKeys {
			if value := os.Getenv(env); value != "" {
				if err := c.set(key, value); err != nil {
					return fmt.Errorf("%s: %w", env, err)
				}
			}
		}
		return nil
	}
}

// WithFlags loads configuration from command-line flags that were set
// explicitly.
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *pflag.Flag) {
			if err != nil {
				return
			}
			if setErr := c.set(f.Name, f.Value.String()); setErr != nil {
				err = fmt.Errorf("flag --%s: %w", f.Name, setErr)
			}
		})
		return err
	}
}

// set assigns value to the setting key. Unknown keys are ignored.
func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case keySerialPort:
		c.SerialPort = value
	case keyBaudRate:
		c.BaudRate, err = strconv.Atoi(value)
	case keyClientName:
		c.ClientName = value
	case keySSID:
		c.SSID = value
	case keyPassword:
		c.Password = value
	case keyTargetHost:
		c.TargetHost = value
	case keyTargetPort:
		c.TargetPort, err = strconv.Atoi(value)
	case keySendInterval:
		c.SendInterval, err = time.ParseDuration(value)
	case keyReplyTimeout:
		c.ReplyTimeout, err = time.ParseDuration(value)
	case keyAssociateAttempts:
		c.AssociateAttempts, err = strconv.Atoi(value)
	case keyBindAddress:
		c.BindAddress = value
	case keyListenAddress:
		c.ListenAddress = value
	case keyMQTTBroker:
		c.MQTTBroker = value
	case keyMQTTTopic:
		c.MQTTTopic = value
	case keyLogLevel:
		c.LogLevel = value
	}
	return err
}

// validateNode checks the settings the node command needs.
func (c *Config) validateNode() error {
	var errs []error
	if c.SerialPort == "" {
		errs = append(errs, errors.New("serial port is required"))
	}
	if c.SSID == "" {
		errs = append(errs, errors.New("wifi ssid is required"))
	}
	if c.TargetHost == "" {
		errs = append(errs, errors.New("target host is required"))
	}
	if c.TargetPort < 0 || c.TargetPort > 65535 {
		errs = append(errs, fmt.Errorf("target port %d out of range", c.TargetPort))
	}
	if n := len(c.ClientName); n == 0 || n > packet.MaxNameLength {
		errs = append(errs, fmt.Errorf("client name must be 1 to %d bytes", packet.MaxNameLength))
	}
	if c.AssociateAttempts < 0 {
		errs = append(errs, errors.New("associate attempts must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrIncompleteConfig, err)
	}
	return nil
}
