package fitter

import (
	"cmp"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// requestSuffix ends every topic that carries a fit request.
const requestSuffix = "points"

// MessageHandler is called when a fit request arrives.
// ds is nil when the payload could not be parsed; err then says why.
type MessageHandler func(datasetID string, ds *Dataset, err error)

// MQTTClient manages the MQTT connection and fit request subscriptions
type MQTTClient struct {
	client         mqtt.Client
	config         *Config
	prefix         string
	messageHandler MessageHandler
	isConnected    bool
	mu             sync.RWMutex
}

// RequestTopic is the topic on which fit requests for datasetID arrive.
func RequestTopic(prefix, datasetID string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, datasetID, requestSuffix)
}

// resolvePrefix applies MQTT_PUBLISH_PREFIX, then the config, then the default.
func resolvePrefix(config *Config) string {
	if p := os.Getenv("MQTT_PUBLISH_PREFIX"); p != "" {
		return p
	}
	if config != nil && config.MQTT.PublishPrefix != "" {
		return config.MQTT.PublishPrefix
	}
	return DefaultPublishPrefix
}

// envOr returns the environment variable key, or fallback when it is unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// clientOptions builds paho options for broker. Credentials come from the
// environment first, then the config.
func clientOptions(config *Config, broker string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(envOr("MQTT_CLIENT_ID", cmp.Or(config.MQTT.ClientID, "robustfit"))).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetKeepAlive(time.Minute).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(false).
		SetOrderMatters(false)

	if user := envOr("MQTT_USERNAME", config.MQTT.Username); user != "" {
		opts.SetUsername(user)
		opts.SetPassword(envOr("MQTT_PASSWORD", config.MQTT.Password))
	}
	return opts
}

// InitMQTT creates the MQTT client from config and environment and starts
// connecting in the background. It returns nil when neither MQTT_BROKER nor
// mqtt.broker names a broker.
func InitMQTT(config *Config, handler MessageHandler) (*MQTTClient, error) {
	if config == nil {
		return nil, fmt.Errorf("MQTT enabled but no configuration provided")
	}

	broker := envOr("MQTT_BROKER", config.MQTT.Broker)
	if broker == "" {
		log.Println("MQTT disabled: no broker configured")
		return nil, nil
	}

	c := &MQTTClient{
		config:         config,
		prefix:         resolvePrefix(config),
		messageHandler: handler,
	}
	opts := clientOptions(config, broker).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)
	c.client = mqtt.NewClient(opts)

	go c.connectWithRetry()

	return c, nil
}

// connectWithRetry blocks until the first connection succeeds, doubling the
// pause between attempts up to a minute.
func (c *MQTTClient) connectWithRetry() {
	for delay := time.Second; ; delay = min(2*delay, time.Minute) {
		log.Println("[MQTT] Connecting to broker...")

		token := c.client.Connect()
		switch {
		case !token.WaitTimeout(10 * time.Second):
			log.Println("[MQTT] Connection timeout")
		case token.Error() != nil:
			log.Printf("[MQTT] Connection failed: %v", token.Error())
		default:
			log.Println("[MQTT] Connected")
			c.setConnected(true)
			return
		}

		log.Printf("[MQTT] Retrying connection in %v...", delay)
		time.Sleep(delay)
	}
}

// Topics returns the subscriptions: the request wildcard plus any custom
// dataset topics from the config.
func (c *MQTTClient) Topics() map[string]string {
	topics := map[string]string{RequestTopic(c.prefix, "+"): ""}
	for _, ds := range c.config.Datasets {
		if ds.Topic != "" {
			topics[ds.Topic] = ds.ID
		}
	}
	return topics
}

// onConnect subscribes to all request topics
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("[MQTT] Connected, subscribing to fit request topics...")
	c.setConnected(true)

	for topic, id := range c.Topics() {
		token := client.Subscribe(topic, 1, c.createMessageHandler(id))
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("[MQTT] Subscribed to %s", topic)
		}
	}
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] Connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("[MQTT] Reconnecting...")
}

// createMessageHandler builds the callback for one subscription. An empty
// datasetID means the ID is taken from the topic.
func (c *MQTTClient) createMessageHandler(datasetID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		id := datasetID
		if id == "" {
			var ok bool
			if id, ok = DatasetIDFromTopic(c.prefix, msg.Topic()); !ok {
				log.Printf("[MQTT] Ignoring message on unexpected topic %s", msg.Topic())
				return
			}
		}

		payload := msg.Payload()
		log.Printf("[MQTT] Fit request for %s (topic: %s, size: %d bytes)", id, msg.Topic(), len(payload))

		ds, err := ParseDataset(payload)
		if err != nil {
			log.Printf("[MQTT] Error parsing dataset for %s: %v", id, err)
		} else {
			ds.ID = id
		}
		if c.messageHandler != nil {
			c.messageHandler(id, ds, err)
		}
	}
}

// DatasetIDFromTopic extracts the dataset ID from {prefix}/{id}/points.
func DatasetIDFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/"+requestSuffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] Disconnecting from broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// Prefix returns the topic prefix shared with the publisher
func (c *MQTTClient) Prefix() string {
	return c.prefix
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// NewMQTTClientWithClient wraps an existing mqtt.Client, such as MockClient,
// without connecting. Call Subscribe to register the request handlers.
func NewMQTTClientWithClient(client mqtt.Client, config *Config, handler MessageHandler) *MQTTClient {
	return &MQTTClient{
		client:         client,
		config:         config,
		prefix:         resolvePrefix(config),
		messageHandler: handler,
	}
}

// Subscribe registers the request handlers on an already connected client.
func (c *MQTTClient) Subscribe() {
	c.onConnect(c.client)
}
