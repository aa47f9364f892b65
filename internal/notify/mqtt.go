package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS             = 1
	mqttDisconnectQuiet = 250 // milliseconds
	mqttKeepAlive       = 30 * time.Second
)

// MQTTDialer publishes notifications to an MQTT broker, one topic per
// channel under TopicPrefix.
type MQTTDialer struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Topic returns the topic a channel is published on.
func (d *MQTTDialer) Topic(channel string) string {
	prefix := strings.TrimSuffix(d.TopicPrefix, "/")
	if prefix == "" {
		return channel
	}
	return prefix + "/" + channel
}

func (d *MQTTDialer) options() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(d.BrokerURL)
	opts.SetClientID(d.ClientID)
	if d.Username != "" {
		opts.SetUsername(d.Username)
		opts.SetPassword(d.Password)
	}
	opts.SetCleanSession(true)
	// Reconnects are driven by the Notifier, one attempt per publish.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetKeepAlive(mqttKeepAlive)
	return opts
}

func (d *MQTTDialer) Dial(ctx context.Context) (Conn, error) {
	opts := d.options()
	if deadline, ok := ctx.Deadline(); ok {
		opts.SetConnectTimeout(time.Until(deadline))
	}

	client := pahomqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", d.BrokerURL, err)
	}
	return &mqttConn{client: client, dialer: d}, nil
}

type mqttConn struct {
	client pahomqtt.Client
	dialer *MQTTDialer
}

func (c *mqttConn) Emit(ctx context.Context, channel string, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrClosed
	}
	topic := c.dialer.Topic(channel)
	if err := waitToken(ctx, c.client.Publish(topic, mqttQoS, false, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (c *mqttConn) Close() error {
	c.client.Disconnect(mqttDisconnectQuiet)
	return nil
}

func waitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
