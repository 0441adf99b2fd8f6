// Package mqtt publishes readings and radio events to an MQTT broker.
package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	publishTimeout = 5 * time.Second
	qos            = byte(1)
)

var ErrUnsupportedScheme = errors.New("unsupported broker scheme")

// Publisher is the part of Client used by sinks and observers.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// Client wraps a paho client connected to one broker.
type Client struct {
	client paho.Client
	logger *slog.Logger
}

// NewClient connects to brokerURL. Supported schemes are mqtt, mqtts, ws
// and wss; credentials may be given in the URL.
func NewClient(brokerURL, clientID string, logger *slog.Logger) (*Client, error) {
	parsed, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %w", err)
	}
	server, secure, err := serverURL(parsed)
	if err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(server)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetMaxReconnectInterval(10 * time.Second)
	if secure {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if parsed.User != nil {
		opts.SetUsername(parsed.User.Username())
		password, _ := parsed.User.Password()
		opts.SetPassword(password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Debug("MQTT connected")
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}

	logger.Info("MQTT client connected", "broker", redact(parsed), "client_id", clientID)
	return &Client{client: client, logger: logger}, nil
}

// Publish sends payload to topic with QoS 1 and waits at most five seconds
// for the broker's acknowledgement.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out after %s", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	c.logger.Debug("Published MQTT message", "topic", topic, "size", len(payload), "retained", retained)
	return nil
}

// Close disconnects, leaving in-flight messages up to 250ms to complete.
func (c *Client) Close() {
	c.client.Disconnect(250)
	c.logger.Debug("MQTT client disconnected")
}

// serverURL maps the user-facing scheme to the one paho dials.
func serverURL(u *url.URL) (server string, secure bool, err error) {
	s := *u
	switch u.Scheme {
	case "mqtt", "tcp":
		s.Scheme = "tcp"
	case "mqtts", "ssl":
		s.Scheme, secure = "ssl", true
	case "ws":
	case "wss":
		secure = true
	default:
		return "", false, fmt.Errorf("%w: %q (supported: mqtt, mqtts, ws, wss)", ErrUnsupportedScheme, u.Scheme)
	}
	if s.Scheme == "tcp" || s.Scheme == "ssl" {
		s.User = nil
	}
	return s.String(), secure, nil
}

// redact hides credentials for logging.
func redact(u *url.URL) string {
	r := *u
	if r.User != nil {
		r.User = url.UserPassword("***", "***")
	}
	return r.String()
}

// Topic joins parts into an MQTT topic, replacing characters that have a
// meaning in topic filters.
func Topic(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			continue
		}
		part = strings.NewReplacer(" ", "_", "+", "plus", "#", "hash").Replace(part)
		clean = append(clean, part)
	}
	return strings.Join(clean, "/")
}
