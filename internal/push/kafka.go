package push

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"tripmate/server/internal/metrics"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaGateway publishes notifications to a topic and fans every consumed
// notification out to the foreground listeners of this process.
type KafkaGateway struct {
	writer    *kafka.Writer
	reader    *kafka.Reader
	registry  TokenRegistry
	listeners listeners
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewKafkaGateway(cfg KafkaConfig, registry TokenRegistry) *KafkaGateway {
	return &KafkaGateway{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			Topic:          cfg.Topic,
			MinBytes:       1,
			MaxBytes:       10 << 20,
			StartOffset:    kafka.LastOffset,
			CommitInterval: time.Second,
		}),
		registry: registry,
		done:     make(chan struct{}),
	}
}

// Start runs the consumer loop until Close.
func (g *KafkaGateway) Start(ctx context.Context) {
	ctx, g.cancel = context.WithCancel(ctx)
	go g.run(ctx)
}

func (g *KafkaGateway) run(ctx context.Context) {
	defer close(g.done)
	slog.Info("push consumer started", "topic", g.reader.Config().Topic, "group", g.reader.Config().GroupID)
	for {
		m, err := g.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("push fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var n Notification
		if err := json.Unmarshal(m.Value, &n); err != nil {
			slog.Warn("push decode failed", "error", err, "key", string(m.Key))
		} else {
			g.listeners.dispatch(n)
		}

		if err := g.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			slog.Warn("push commit failed", "error", err)
		}
	}
}

func (g *KafkaGateway) RequestPermission(context.Context, string) Permission { return Granted }

func (g *KafkaGateway) RegisterToken(ctx context.Context, user, token string) error {
	return g.registry.Add(ctx, user, token)
}

func (g *KafkaGateway) Token(ctx context.Context, user string) (string, error) {
	return g.registry.Latest(ctx, user)
}

func (g *KafkaGateway) Publish(ctx context.Context, n Notification) {
	value, err := json.Marshal(n)
	if err == nil {
		err = g.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(n.GroupID),
			Value: value,
			Time:  n.CreatedAt,
		})
	}
	metrics.PushPublished.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		slog.Warn("push publish failed", "group_id", n.GroupID, "error", err)
	}
}

func (g *KafkaGateway) OnForegroundMessage(fn func(Notification)) func() {
	return g.listeners.add(fn)
}

func (g *KafkaGateway) Close() error {
	if g.cancel != nil {
		g.cancel()
		<-g.done
	}
	return errors.Join(g.reader.Close(), g.writer.Close())
}
