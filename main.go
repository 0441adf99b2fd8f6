package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"i4.energy/across/sensorlink/collector"
	"i4.energy/across/sensorlink/mqtt"
	"i4.energy/across/sensorlink/radio"
	"i4.energy/across/sensorlink/reporter"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "sensorlink",
	Short:         "Send sensor readings over an ESP8266 radio and collect them",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Drive the radio: join, send readings, leave, repeat",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := config.validateNode(); err != nil {
			return err
		}
		return runNode(cmd.Context(), config, newLogger(config.LogLevel))
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Receive sensor packets over UDP",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runCollector(cmd.Context(), config, newLogger(config.LogLevel))
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Configuration file (YAML, JSON or TOML)")
	pf.String(keyLogLevel, "info", "Log level (debug, info, warn, error)")
	pf.String(keyMQTTBroker, "", "MQTT broker URL (mqtt://, mqtts://, ws://, wss://)")
	pf.String(keyMQTTTopic, "sensorlink", "MQTT topic prefix")

	nf := nodeCmd.Flags()
	nf.String(keySerialPort, "/dev/ttyUSB0", "Serial port to connect to the radio")
	nf.Int(keyBaudRate, radio.DefaultBaudRate, "Baud rate for serial communication")
	nf.String(keyClientName, "sensorlink", "Name carried by every packet")
	nf.String(keySSID, "", "Wi-Fi network to join")
	nf.String(keyPassword, "", "Wi-Fi password")
	nf.String(keyTargetHost, "", "UDP target host")
	nf.Int(keyTargetPort, 6301, "UDP target port")
	nf.Duration(keySendInterval, reporter.DefaultInterval, "Pause between cycles")
	nf.Duration(keyReplyTimeout, 10*time.Second, "Timeout for each AT reply (0 waits indefinitely)")
	nf.Int(keyAssociateAttempts, radio.DefaultAssociateAttempts, "Join attempts per cycle")
	nf.String(keyBindAddress, "0.0.0.0:8080", "Bind address for the HTTP server")

	collectCmd.Flags().String(keyListenAddress, "0.0.0.0:6301", "UDP address to receive packets on")

	rootCmd.AddCommand(nodeCmd, collectCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	return LoadConfig(WithDefaults(), WithFile(configFile), WithEnv(), WithFlags(cmd.Flags()))
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// connectMQTT returns nil when no broker is configured.
func connectMQTT(config *Config, role string, logger *slog.Logger) (*mqtt.Client, error) {
	if config.MQTTBroker == "" {
		return nil, nil
	}
	clientID := fmt.Sprintf("sensorlink-%s-%d", role, os.Getpid())
	return mqtt.NewClient(config.MQTTBroker, clientID, logger.With("component", "mqtt"))
}

func runNode(ctx context.Context, config *Config, logger *slog.Logger) error {
	observers := radio.Observers{logObserver{logger: logger.With("component", "radio")}}

	mc, err := connectMQTT(config, "node", logger)
	if err != nil {
		return err
	}
	if mc != nil {
		defer mc.Close()
		events := newEventPublisher(mc, config.MQTTTopic, logger.With("component", "events"))
		observers = append(observers, events)
		go events.Run(ctx)
	}

	radioConfig, err := radio.NewConfigBuilder().
		WithDialer(radio.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		WithClientName(config.ClientName).
		WithAssociateAttempts(config.AssociateAttempts).
		WithReplyTimeout(config.ReplyTimeout).
		WithObserver(observers).
		WithLogger(logger.With("component", "radio")).
		Build()
	if err != nil {
		return fmt.Errorf("radio config: %w", err)
	}

	r, err := radio.New(ctx, radioConfig)
	if err != nil {
		return err
	}

	rep, err := reporter.New(r, reporter.StaticSource{Light: 1.0, Temperature: 2.0, Humidity: 3.0}, reporter.Config{
		SSID:     config.SSID,
		Password: config.Password,
		Host:     config.TargetHost,
		Port:     config.TargetPort,
		Interval: config.SendInterval,
	}, logger.With("component", "reporter"))
	if err != nil {
		return err
	}

	logger.Info("Starting sensor node", "client_name", config.ClientName, "serial_port", config.SerialPort)

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Radio:  r,
		},
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	runCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		_ = rep.Run(runCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case runErr = <-serverErr:
		logger.Error("HTTP server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	stopReporter()
	<-reporterDone

	if radio.Associated(r.State()) {
		logger.Info("Leaving network")
		if err := r.Disconnect(shutdownCtx); err != nil {
			logger.Warn("Failed to disconnect radio", "error", err)
		}
	}

	logger.Info("Closing radio connection")
	if err := r.Close(); err != nil {
		logger.Error("Failed to close radio", "error", err)
	}

	return runErr
}

func runCollector(ctx context.Context, config *Config, logger *slog.Logger) error {
	sinks := collector.Sinks{collector.LogSink{Logger: logger.With("component", "readings")}}

	mc, err := connectMQTT(config, "collector", logger)
	if err != nil {
		return err
	}
	if mc != nil {
		defer mc.Close()
		sinks = append(sinks, collector.MQTTSink{Publisher: mc, Topic: config.MQTTTopic})
	}

	c, err := collector.Listen(config.ListenAddress, sinks, logger.With("component", "collector"))
	if err != nil {
		return err
	}

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Collector stopped")
	return nil
}
