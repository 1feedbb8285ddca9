// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttTimeout = 5 * time.Second

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var _ mqttPublisher = (mqtt.Client)(nil)

// MQTT publishes events as retained JSON messages under <topic>/<block>.
type MQTT struct {
	cli   mqttPublisher
	topic string
}

// NewMQTT creates a sink publishing through cli.
func NewMQTT(cli mqtt.Client, topic string) *MQTT {
	return &MQTT{cli: cli, topic: topic}
}

// DialMQTT connects to the MQTT broker.
func DialMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	cli := mqtt.NewClient(opts)
	tok := cli.Connect()
	if !tok.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("monitor: could not connect to MQTT broker %q: timeout", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("monitor: could not connect to MQTT broker %q: %w", broker, err)
	}
	return cli, nil
}

func (sink *MQTT) Send(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("monitor: could not encode event: %w", err)
	}

	topic := path.Join(sink.topic, evt.Block)
	tok := sink.cli.Publish(topic, 1, true, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tok.Done():
	case <-time.After(mqttTimeout):
		return fmt.Errorf("monitor: could not publish to %q: timeout", topic)
	}

	if err := tok.Error(); err != nil {
		return fmt.Errorf("monitor: could not publish to %q: %w", topic, err)
	}
	return nil
}

var _ Sink = (*MQTT)(nil)
