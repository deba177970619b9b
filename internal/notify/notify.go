package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// BatchEvent announces a stored batch
type BatchEvent struct {
	RunID     string    `json:"run_id"`
	BatchID   string    `json:"batch_id"`
	Inserted  int       `json:"inserted"`
	Checksum  string    `json:"checksum"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Notifier publishes batch events to subscribers
type Notifier interface {
	Publish(ctx context.Context, event BatchEvent) error
	Close()
}

// Noop discards every event
type Noop struct{}

func (Noop) Publish(context.Context, BatchEvent) error { return nil }
func (Noop) Close() {}

// MQTTOptions configures the broker connection
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Topic     string
}

// publisher is the part of mqtt.Client the notifier uses
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes each event as JSON on a fixed topic (QoS 1, retained)
type MQTTNotifier struct {
	client publisher
	topic  string
}

// NewMQTTNotifier connects to the broker
func NewMQTTNotifier(opts MQTTOptions) (*MQTTNotifier, error) {
	o := mqtt.NewClientOptions()
	o.AddBroker(opts.BrokerURL)
	o.SetClientID(opts.ClientID)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(2 * time.Second)
	c := mqtt.NewClient(o)

	token := c.Connect()
	if !token.WaitTimeout(10*time.Second) {
		return nil, fmt.Errorf("mqtt: timed out connecting to %s", opts.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: failed to connect to %s: %w", opts.BrokerURL, err)
	}
	return &MQTTNotifier{client: c, topic: opts.Topic}, nil
}

func (n *MQTTNotifier) Publish(ctx context.Context, event BatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("mqtt: failed to encode event: %w", err)
	}

	token := n.client.Publish(n.topic, 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt: publish %s: %w", event.BatchID, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", event.BatchID, err)
	}
	return nil
}

func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
}
