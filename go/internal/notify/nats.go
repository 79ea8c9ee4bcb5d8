package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pyroassist/go/internal/execution"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	Replicas        int
	DuplicateWindow time.Duration // Window for duplicate detection
	AckTimeout      time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "PYRO_RUN",
		SubjectPrefix:   "pyro.run",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
		AckTimeout:      5 * time.Second,
	}
}

// asyncPublisher is the part of jetstream.JetStream the sink uses.
type asyncPublisher interface {
	PublishMsgAsync(msg *nats.Msg, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error)
}

// NATSSink publishes alerts and phase changes to a JetStream stream. Publishing
// is asynchronous; acks are awaited off the runner goroutine.
type NATSSink struct {
	nc     *nats.Conn
	js     asyncPublisher
	config JetStreamConfig

	mu        sync.Mutex
	lastPhase execution.Phase
	wg        sync.WaitGroup
}

// Envelope is the message body of every published event.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func NewNATSSink(cfg JetStreamConfig) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name("pyroassist"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
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
	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	s := newNATSSink(js, cfg)
	s.nc = nc
	return s, nil
}

func newNATSSink(js asyncPublisher, cfg JetStreamConfig) *NATSSink {
	return &NATSSink{js: js, config: cfg}
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg JetStreamConfig) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Firing run alerts and phase changes",
		Subjects:    []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}

	stream, err := js.Stream(ctx, cfg.StreamName)
	if err != nil {
		if _, err = js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", cfg.StreamName).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", cfg.StreamName).Msg("updated JetStream stream")
	}
	return nil
}

// Render publishes a phase event whenever the view's phase differs from the
// last one seen. Ticks within a phase are not published.
func (s *NATSSink) Render(view execution.View) {
	s.mu.Lock()
	changed := view.Phase != s.lastPhase
	s.lastPhase = view.Phase
	s.mu.Unlock()
	if !changed {
		return
	}

	id := fmt.Sprintf("phase-%s-%d-%d", view.Phase, view.Elapsed, time.Now().UnixNano())
	s.publish("phase", id, view)
}

// Alert publishes the alert with its id as the deduplication key.
func (s *NATSSink) Alert(notice execution.Notice) {
	s.publish("alert", notice.ID, notice)
}

func (s *NATSSink) publish(eventType, id string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event")
		return
	}
	data, err := json.Marshal(Envelope{
		EventID:   id,
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Payload:   body,
	})
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal envelope")
		return
	}

	subject := fmt.Sprintf("%s.%s", s.config.SubjectPrefix, eventType)
	fut, err := s.js.PublishMsgAsync(&nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{eventType},
			"Event-ID":   []string{id},
		},
	},
		jetstream.WithMsgID(id),
		jetstream.WithExpectStream(s.config.StreamName),
	)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Str("event_id", id).Msg("publish to JetStream failed")
		return
	}

	s.wg.Add(1)
	go s.awaitAck(subject, id, fut)
}

func (s *NATSSink) awaitAck(subject, id string, fut jetstream.PubAckFuture) {
	defer s.wg.Done()

	timeout := s.config.AckTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	select {
	case ack := <-fut.Ok():
		log.Debug().
			Str("subject", subject).
			Str("event_id", id).
			Uint64("sequence", ack.Sequence).
			Str("stream", ack.Stream).
			Msg("published to JetStream")
	case err := <-fut.Err():
		log.Error().Err(err).Str("subject", subject).Str("event_id", id).Msg("JetStream publish rejected")
	case <-time.After(timeout):
		log.Warn().Str("subject", subject).Str("event_id", id).Msg("JetStream ack timed out")
	}
}

// Close waits for outstanding acks and closes the connection.
func (s *NATSSink) Close() error {
	s.wg.Wait()
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates &&
		len(a.Subjects) == len(b.Subjects) &&
		(len(a.Subjects) == 0 || a.Subjects[0] == b.Subjects[0])
}

var _ execution.Sink = (*NATSSink)(nil)
