package radio

import (
	"fmt"
	"log/slog"
	"time"

	"i4.energy/across/sensorlink/packet"
)

const (
	// DefaultAssociateAttempts is the number of join attempts made by Setup.
	DefaultAssociateAttempts = 3
	// DefaultPollInterval is the pause after a read that returned no data.
	DefaultPollInterval = 10 * time.Millisecond
)

// Config holds the settings of a Radio. Build it with NewConfigBuilder.
type Config struct {
	dialer     Dialer
	clientName string
	// associateAttempts is only honoured when attemptsSet is true, so that
	// an explicit zero can be told apart from the zero value.
	associateAttempts int
	attemptsSet       bool
	replyTimeout      time.Duration
	pollInterval      time.Duration
	observer          Observer
	logger            *slog.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	if len(c.clientName) == 0 || len(c.clientName) > packet.MaxNameLength {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidName, len(c.clientName))
	}
	if c.associateAttempts < 0 {
		return ErrInvalidAttempts
	}
	return nil
}

func (c *Config) setDefaults() {
	if !c.attemptsSet {
		c.associateAttempts = DefaultAssociateAttempts
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.observer == nil {
		c.observer = ObserverFunc(func(Event) {})
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder with default settings.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithClientName sets the name carried by every packet. It must be 1 to 255
// bytes long.
func (b *ConfigBuilder) WithClientName(name string) *ConfigBuilder {
	b.config.clientName = name
	return b
}

// WithAssociateAttempts sets how many times Setup tries to join a network
// before giving up. Zero disables association entirely.
func (b *ConfigBuilder) WithAssociateAttempts(n int) *ConfigBuilder {
	b.config.associateAttempts = n
	b.config.attemptsSet = true
	return b
}

// WithReplyTimeout bounds the wait for each reply. The default of zero waits
// until the radio answers or the operation's context is done.
func (b *ConfigBuilder) WithReplyTimeout(d time.Duration) *ConfigBuilder {
	b.config.replyTimeout = d
	return b
}

// WithPollInterval sets the pause after a read that returned no data. Zero
// selects DefaultPollInterval.
func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.pollInterval = d
	return b
}

func (b *ConfigBuilder) WithObserver(o Observer) *ConfigBuilder {
	b.config.observer = o
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the settings and returns the Config.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	config.setDefaults()
	return config, nil
}
