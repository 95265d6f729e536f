package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the MQTT pairing transport
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
}

// Topic returns the MQTT topic for a transport path
func (c MQTTConfig) Topic(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(c.TopicPrefix, "/") + path
}

// Path returns the transport path for an MQTT topic, or false if the topic
// is outside the prefix.
func (c MQTTConfig) Path(topic string) (string, bool) {
	prefix := strings.TrimRight(c.TopicPrefix, "/")
	if !strings.HasPrefix(topic, prefix+"/") {
		return "", false
	}
	return strings.TrimPrefix(topic, prefix), true
}

func (c MQTTConfig) clientOptions(logger *log.Logger) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.Broker)
	opts.SetClientID(c.ClientID)
	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(c.connectTimeout())
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Printf("MQTT: connection to %s lost: %v", c.Broker, err)
	})
	return opts
}

func (c MQTTConfig) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return 10 * time.Second
	}
	return c.ConnectTimeout
}

func connect(client mqtt.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return errors.New("mqtt connect timed out")
	}
	return token.Error()
}

// waitToken waits for token until ctx is done
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MQTTSender publishes payloads to the broker
type MQTTSender struct {
	cfg    MQTTConfig
	client mqtt.Client
	logger *log.Logger
}

// NewMQTTSender connects to the broker
func NewMQTTSender(cfg MQTTConfig, logger *log.Logger) (*MQTTSender, error) {
	if logger == nil {
		logger = log.Default()
	}

	opts := cfg.clientOptions(logger)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Printf("MQTT: sender connected to %s", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	if err := connect(client, cfg.connectTimeout()); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return &MQTTSender{cfg: cfg, client: client, logger: logger}, nil
}

// Send publishes payload on the topic for path
func (s *MQTTSender) Send(ctx context.Context, path string, payload []byte) error {
	topic := s.cfg.Topic(path)
	if err := waitToken(ctx, s.client.Publish(topic, s.cfg.QoS, false, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker
func (s *MQTTSender) Close() {
	s.client.Disconnect(250)
}

// MQTTReceiver subscribes under the topic prefix and hands payloads to a
// Handler. Handler errors are logged and dropped.
type MQTTReceiver struct {
	cfg     MQTTConfig
	handler Handler
	logger  *log.Logger
	timeout time.Duration
	client  mqtt.Client
}

// NewMQTTReceiver creates a receiver; call Start to connect
func NewMQTTReceiver(cfg MQTTConfig, handler Handler, logger *log.Logger) *MQTTReceiver {
	if logger == nil {
		logger = log.Default()
	}
	return &MQTTReceiver{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Start connects and subscribes. The subscription is renewed on every reconnect.
func (r *MQTTReceiver) Start() error {
	opts := r.cfg.clientOptions(r.logger)
	opts.SetOnConnectHandler(r.onConnect)

	r.client = mqtt.NewClient(opts)
	if err := connect(r.client, r.cfg.connectTimeout()); err != nil {
		return fmt.Errorf("connect to %s: %w", r.cfg.Broker, err)
	}
	return nil
}

// Close disconnects from the broker
func (r *MQTTReceiver) Close() {
	if r.client != nil {
		r.client.Disconnect(250)
	}
}

func (r *MQTTReceiver) subscription() string {
	return strings.TrimRight(r.cfg.TopicPrefix, "/") + "/#"
}

func (r *MQTTReceiver) onConnect(client mqtt.Client) {
	topic := r.subscription()
	token := client.Subscribe(topic, r.cfg.QoS, r.onMessage)
	if !token.WaitTimeout(r.cfg.connectTimeout()) {
		r.logger.Printf("MQTT: subscribe to %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		r.logger.Printf("MQTT: subscribe to %s failed: %v", topic, err)
		return
	}
	r.logger.Printf("MQTT: subscribed to %s", topic)
}

func (r *MQTTReceiver) onMessage(_ mqtt.Client, msg mqtt.Message) {
	path, ok := r.cfg.Path(msg.Topic())
	if !ok {
		r.logger.Printf("MQTT: ignoring message on %s", msg.Topic())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.handler.HandleMessage(ctx, path, msg.Payload()); err != nil {
		r.logger.Printf("MQTT: handling message on %s failed: %v", msg.Topic(), err)
	}
}
