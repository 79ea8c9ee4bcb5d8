package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pyroassist/go/internal/execution"
)

// WatcherConfig holds configuration for the JetStream consumer
type WatcherConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string        // e.g. "pyro.run.>"
	MaxDeliver    int           // Max delivery attempts
	AckWait       time.Duration // How long to wait for ack
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultWatcherConfig returns default JetStream consumer configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		URL:           nats.DefaultURL,
		StreamName:    "PYRO_RUN",
		ConsumerName:  "pyroassist-watch",
		SubjectFilter: "pyro.run.>",
		MaxDeliver:    3,
		AckWait:       10 * time.Second,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Handler receives every decoded event. A returned error naks the message.
type Handler func(ctx context.Context, env Envelope) error

// Watcher follows a run from another process through JetStream
type Watcher struct {
	nc       *nats.Conn
	consumer jetstream.Consumer
	config   WatcherConfig
}

// NewWatcher connects and creates or reuses the durable consumer
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	opts := []nats.Option{
		nats.Name("pyroassist-watch"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	consumer, err := ensureConsumer(ctx, js, config)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return &Watcher{nc: nc, consumer: consumer, config: config}, nil
}

func ensureConsumer(ctx context.Context, js jetstream.JetStream, config WatcherConfig) (jetstream.Consumer, error) {
	stream, err := js.Stream(ctx, config.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.Consumer(ctx, config.ConsumerName)
	if err == nil {
		log.Info().
			Str("consumer", config.ConsumerName).
			Str("stream", config.StreamName).
			Msg("using existing JetStream consumer")
		return consumer, nil
	}

	consumer, err = stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          config.ConsumerName,
		Durable:       config.ConsumerName,
		Description:   "Remote firing run monitor",
		FilterSubject: config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    config.MaxDeliver,
		AckWait:       config.AckWait,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	log.Info().
		Str("consumer", config.ConsumerName).
		Str("stream", config.StreamName).
		Msg("created JetStream consumer")
	return consumer, nil
}

// Run hands every message to handle until ctx is done
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	log.Info().
		Str("consumer", w.config.ConsumerName).
		Str("stream", w.config.StreamName).
		Msg("watching run events")

	messageCh := make(chan jetstream.Msg, 64)
	consumeCtx, err := w.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("watcher shutting down")
			return nil
		case msg := <-messageCh:
			if err := dispatch(ctx, msg.Data(), handle); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

// Close closes the connection
func (w *Watcher) Close() error {
	if w.nc != nil {
		w.nc.Close()
	}
	return nil
}

func dispatch(ctx context.Context, data []byte, handle Handler) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}
	return handle(ctx, env)
}

// DecodeAlert returns the notice carried by an alert envelope.
func DecodeAlert(env Envelope) (execution.Notice, error) {
	var n execution.Notice
	if env.EventType != "alert" {
		return n, fmt.Errorf("not an alert: %s", env.EventType)
	}
	if err := json.Unmarshal(env.Payload, &n); err != nil {
		return n, fmt.Errorf("unmarshal alert: %w", err)
	}
	return n, nil
}

// DecodeView returns the view carried by a phase envelope.
func DecodeView(env Envelope) (execution.View, error) {
	var v execution.View
	if env.EventType != "phase" {
		return v, fmt.Errorf("not a phase event: %s", env.EventType)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("unmarshal view: %w", err)
	}
	return v, nil
}
