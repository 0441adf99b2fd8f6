package collector

import (
	"context"
	"encoding/json"
	"log/slog"

	"i4.energy/across/sensorlink/mqtt"
)

// MQTTSink publishes each reading as JSON to <topic>/<name>.
type MQTTSink struct {
	Publisher mqtt.Publisher
	Topic     string
}

func (s MQTTSink) Handle(_ context.Context, r Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.Publisher.Publish(mqtt.Topic(s.Topic, r.Name), payload, false)
}

// LogSink logs each reading.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Handle(_ context.Context, r Reading) error {
	s.Logger.Info("Reading",
		"name", r.Name,
		"light", r.Light,
		"temperature", r.Temperature,
		"humidity", r.Humidity,
		"source", r.Source,
	)
	return nil
}

// Sinks hands a reading to every sink and returns the first error.
type Sinks []Sink

func (s Sinks) Handle(ctx context.Context, r Reading) error {
	var first error
	for _, sink := range s {
		if err := sink.Handle(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
