package publish

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
)

// Publisher fans out appended samples to an MQTT broker so other
// consumers (displays, recorders) can follow the hive live.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// Connect connects to the broker and returns a ready publisher.
func Connect(broker, clientID, topic string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	log.Printf("connected to MQTT broker at %s", broker)

	return &Publisher{client: client, topic: topic}, nil
}

// PublishSample publishes one sample as JSON. Publish failures are
// logged, not surfaced: the fan-out is best-effort and must never stall
// a refresh action.
func (p *Publisher) PublishSample(sample types.Sample) {
	payload, err := json.Marshal(sample)
	if err != nil {
		log.Printf("error marshalling sample: %s", err)
		return
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("failed to publish sample: %s", token.Error())
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
