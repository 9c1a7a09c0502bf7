package publisher

//go:generate mockgen -destination=mock/publisher_mock.go -package=mock github.com/theotor83/utf-rewritten-sub000/publisher Publisher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Shopify/sarama"
	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/theotor83/utf-rewritten-sub000/model"
)

// Publisher emits forum events for downstream consumers.
type Publisher interface {
	PubEvent(ctx context.Context, event string, id int64) error
}

type KafkaPublisher struct {
	Log      *logrus.Entry
	Topic    string
	producer sarama.AsyncProducer
}

func NewKafkaPublisher(hosts []string, topic string, log *logrus.Entry) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Errors = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(hosts, cfg)
	if err != nil {
		return nil, err
	}
	return NewKafkaPublisherWithProducer(producer, topic, log), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer and starts draining its errors.
func NewKafkaPublisherWithProducer(producer sarama.AsyncProducer, topic string, log *logrus.Entry) *KafkaPublisher {
	p := &KafkaPublisher{
		Log:      log,
		Topic:    topic,
		producer: producer,
	}
	go func() {
		for pErr := range producer.Errors() {
			currErr := fmt.Errorf("[publisher] kafka produce err: %v", pErr.Err)
			log.Error(currErr)
			sentry.CaptureException(currErr)
		}
	}()
	return p
}

func (p *KafkaPublisher) PubEvent(ctx context.Context, event string, id int64) error {
	b, err := json.Marshal(&model.Event{Event: event, ID: id, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.Topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(id, 10)),
		Value: sarama.ByteEncoder(b),
	}
	select {
	case p.producer.Input() <- msg:
		p.Log.Debugf("[publisher] event %s(%d) queued", event, id)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct {
	Log *logrus.Entry
}

func (p *NopPublisher) PubEvent(ctx context.Context, event string, id int64) error {
	if p.Log != nil {
		p.Log.Debugf("[publisher] kafka disabled, drop event %s(%d)", event, id)
	}
	return nil
}
