package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"i4.energy/across/sensorlink/mqtt"
	"i4.energy/across/sensorlink/radio"
)

// logObserver logs every radio event.
type logObserver struct {
	logger *slog.Logger
}

func (o logObserver) Notify(e radio.Event) {
	level := slog.LevelInfo
	if e.Kind.Failed() {
		level = slog.LevelWarn
	}
	attrs := []any{"event", e.Kind.String(), "state", e.State.String()}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}
	o.logger.Log(context.Background(), level, "Radio event", attrs...)
}

// eventMessage is the JSON form of a radio event.
type eventMessage struct {
	Kind     string    `json:"kind"`
	State    string    `json:"state"`
	Error    string    `json:"error,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	Bytes    int       `json:"bytes,omitempty"`
	Time     time.Time `json:"time"`
}

func newEventMessage(e radio.Event) eventMessage {
	m := eventMessage{
		Kind:     e.Kind.String(),
		Attempts: e.Attempts,
		Bytes:    e.Bytes,
		Time:     e.Time.UTC(),
	}
	if e.State != nil {
		m.State = e.State.String()
	}
	if e.Err != nil {
		m.Error = e.Err.Error()
	}
	return m
}

// eventPublisher forwards radio events to <topic>/events. Notify runs while
// the radio is locked, so events are queued and published by Run; when the
// queue is full the event is dropped.
type eventPublisher struct {
	publisher mqtt.Publisher
	topic     string
	queue     chan radio.Event
	logger    *slog.Logger
}

func newEventPublisher(p mqtt.Publisher, topic string, logger *slog.Logger) *eventPublisher {
	return &eventPublisher{
		publisher: p,
		topic:     mqtt.Topic(topic, "events"),
		queue:     make(chan radio.Event, 32),
		logger:    logger,
	}
}

func (p *eventPublisher) Notify(e radio.Event) {
	select {
	case p.queue <- e:
	default:
		p.logger.Warn("Event queue full, dropping event", "event", e.Kind.String())
	}
}

// Run publishes queued events until ctx is done.
func (p *eventPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.queue:
			payload, err := json.Marshal(newEventMessage(e))
			if err != nil {
				p.logger.Error("Failed to encode event", "error", err)
				continue
			}
			if err := p.publisher.Publish(p.topic, payload, false); err != nil {
				p.logger.Warn("Failed to publish event", "error", err)
			}
		}
	}
}
