// Package ingest scores road-condition reports arriving on an MQTT topic.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apex/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/AanchalYadav15/acciguard/config"
	"github.com/AanchalYadav15/acciguard/metrics"
	"github.com/AanchalYadav15/acciguard/scoring"
)

// Predictor is implemented by *services.PredictionService.
type Predictor interface {
	PredictFile(ctx context.Context, filename string, r io.Reader, source string) ([]scoring.PredictionRecord, error)
}

// messageName lets MQTT payloads go through the JSON document parser.
const messageName = "message.json"

// MQTTIngester subscribes to a topic whose messages are a JSON object or an
// array of objects, and scores each message as one batch.
type MQTTIngester struct {
	cfg       config.MQTTConfig
	predictor Predictor
	client    mqtt.Client
}

func NewMQTTIngester(cfg config.MQTTConfig, predictor Predictor) *MQTTIngester {
	return &MQTTIngester{cfg: cfg, predictor: predictor}
}

// Start connects to the broker. Reconnects and resubscription are handled by
// the client until Stop is called.
func (i *MQTTIngester) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(i.cfg.URL)
	opts.SetClientID(fmt.Sprintf("%s-%d", i.cfg.ClientID, time.Now().Unix()))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetDefaultPublishHandler(func(client mqtt.Client, message mqtt.Message) {
		i.handleMessage(ctx, message.Topic(), message.Payload())
	})
	opts.OnConnect = func(client mqtt.Client) {
		token := client.Subscribe(i.cfg.Topic, 1, nil)
		token.Wait()
		if token.Error() != nil {
			log.WithError(token.Error()).Error("mqtt subscribe failed")
			return
		}
		log.WithField("topic", i.cfg.Topic).Info("mqtt subscribed")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost")
	}

	i.client = mqtt.NewClient(opts)
	token := i.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.WithField("broker", i.cfg.URL).Warn("mqtt broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (i *MQTTIngester) Stop() {
	if i.client != nil {
		i.client.Disconnect(250)
	}
}

// handleMessage reports whether the payload was scored and stored.
func (i *MQTTIngester) handleMessage(ctx context.Context, topic string, payload []byte) bool {
	entry := log.WithField("topic", topic)
	recs, err := i.predictor.PredictFile(ctx, messageName, bytes.NewReader(payload), metrics.SourceMQTT)
	if err != nil {
		entry.WithError(err).Warn("rejected mqtt message")
		return false
	}
	entry.WithField("count", len(recs)).Debug("scored mqtt message")
	return true
}
