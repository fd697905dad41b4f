package mqttsub

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sguter90/heatmaestro/pkg/decoder"
	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/sguter90/heatmaestro/pkg/settings"
	"go.uber.org/zap"
)

const (
	connectRetries  = 5
	connectTimeout  = 10 * time.Second
	ingestTimeout   = 10 * time.Second
	disconnectQuiet = 250
)

// IngestFunc hands a decoded reading to the ingestion path
type IngestFunc func(ctx context.Context, in models.ReadingInput) error

// Subscriber receives device readings from an MQTT broker and ingests them
type Subscriber struct {
	cfg     settings.MQTTConfig
	decoder decoder.Decoder
	ingest  IngestFunc
	log     *zap.Logger

	mu     sync.Mutex
	client mqtt.Client
	ctx    context.Context
}

// NewSubscriber creates a Subscriber. Payloads are decoded as JSON with the
// same keys the HTTP endpoint accepts.
func NewSubscriber(cfg settings.MQTTConfig, ingest IngestFunc, log *zap.Logger) *Subscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{
		cfg:     cfg,
		decoder: &decoder.JSONDecoder{},
		ingest:  ingest,
		log:     log,
		ctx:     context.Background(),
	}
}

// Start connects to the broker with exponential backoff and subscribes to
// the configured topic. The subscription is renewed on every reconnect and
// the client disconnects when ctx is done.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return nil
}

// Close disconnects from the broker
func (s *Subscriber) Close() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
		client.Disconnect(disconnectQuiet)
		s.log.Info("MQTT connection closed", zap.String("broker", s.cfg.Broker))
	}
}

func (s *Subscriber) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetUsername(s.cfg.Username)
	opts.SetPassword(s.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(s.subscribe)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.log.Warn("MQTT connection lost", zap.String("broker", s.cfg.Broker), zap.Error(err))
	})
	return opts
}

func (s *Subscriber) connect(ctx context.Context) (mqtt.Client, error) {
	opts := s.clientOptions()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		token := client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			return fmt.Errorf("timed out connecting to %s", s.cfg.Broker)
		}
		if err := token.Error(); err != nil {
			s.log.Warn("Failed to connect to MQTT broker", zap.String("broker", s.cfg.Broker), zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, connectRetries-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	s.log.Info("Connected to MQTT broker", zap.String("broker", s.cfg.Broker))
	return client, nil
}

// subscribe runs on every (re)connect
func (s *Subscriber) subscribe(client mqtt.Client) {
	token := client.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		_ = s.handleMessage(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		s.log.Error("Failed to subscribe", zap.String("topic", s.cfg.Topic), zap.Error(token.Error()))
		return
	}
	s.log.Info("Subscribed to readings", zap.String("topic", s.cfg.Topic), zap.Uint8("qos", s.cfg.QoS))
}

// handleMessage decodes and ingests one payload. Malformed payloads are
// logged and dropped; a missing origin defaults to the message topic.
func (s *Subscriber) handleMessage(topic string, payload []byte) error {
	in, err := s.decoder.Decode(bytes.NewReader(payload))
	if err != nil {
		s.log.Warn("Dropping malformed MQTT payload", zap.String("topic", topic), zap.Error(err))
		return err
	}
	if strings.TrimSpace(in.Origin) == "" {
		in.Origin = topic
	}

	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, ingestTimeout)
	defer cancel()

	if err := s.ingest(ctx, in); err != nil {
		s.log.Error("Failed to ingest MQTT reading", zap.String("topic", topic), zap.Error(err))
		return err
	}
	return nil
}
