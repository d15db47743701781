// Package mqtt wraps the Eclipse Paho client for the service: a reconnecting
// client with retrying publishes and subscriptions that survive reconnects,
// and a publisher forwarding schedule events to the broker.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/soh/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	AuthMethod  string      `json:"auth_method"`
	QoS         byte        `json:"qos"`
	LWTTopic    string      `json:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload"`
	LWTQoS      byte        `json:"lwt_qos"`
	LWTRetain   bool        `json:"lwt_retain"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// Prefix returns the topic prefix, "soh" when unset.
func (c Config) Prefix() string {
	if c.TopicPrefix == "" {
		return "soh"
	}
	return c.TopicPrefix
}

// Handler receives messages delivered on a subscribed topic.
type Handler func(topic string, payload []byte)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Client is a reconnecting MQTT client. Subscriptions are replayed on every
// (re)connect.
type Client struct {
	cli        pahoClient
	qos        byte
	maxRetries int
	backoff    time.Duration
	log        logger.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewClient connects to the broker described by cfg. A missing client id is
// replaced by a random one.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("mqtt: broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "soh-" + uuid.NewString()
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        logger.New("mqtt_client"),
		subs:       make(map[string]Handler),
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	if c.backoff <= 0 {
		c.backoff = 100 * time.Millisecond
	}
	opts.OnConnect = func(pc paho.Client) {
		c.log.Infof("MQTT connected")
		c.mu.Lock()
		defer c.mu.Unlock()
		for topic, h := range c.subs {
			if token := pc.Subscribe(topic, c.qos, wrap(h)); token.Wait() && token.Error() != nil {
				c.log.Errorf("subscribe %s: %v", topic, token.Error())
			}
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		c.log.Warnf("reconnecting to MQTT broker")
	}
	pc := newMQTTClient(opts)
	if token := pc.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "mqtt connect %s", cfg.Broker)
	}
	c.cli = pc
	return c, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, errors.New("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, errors.Wrap(err, "load cert")
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, errors.Wrap(err, "read ca")
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Publish sends payload to topic, retrying with exponential backoff.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		token := c.cli.Publish(topic, c.qos, retained, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			c.log.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		c.log.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, err)
		if attempt < c.maxRetries {
			time.Sleep(c.backoff * time.Duration(1<<attempt))
		}
	}
	return errors.Wrapf(err, "publish %s", topic)
}

// Subscribe registers h for topic. The subscription is replayed after reconnects.
func (c *Client) Subscribe(topic string, h Handler) error {
	c.mu.Lock()
	c.subs[topic] = h
	c.mu.Unlock()
	if !c.cli.IsConnected() {
		return nil
	}
	token := c.cli.Subscribe(topic, c.qos, wrap(h))
	if token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "subscribe %s", topic)
	}
	return nil
}

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}

func wrap(h Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}
