package actionlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/mqtt"
)

// Publisher is the subset of mqtt.Client used by MQTTLog.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTLog publishes every record as JSON. Point records go to the point's
// action topic, records without a point to the event topic for their action.
type MQTTLog struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
}

// NewMQTTLog creates an MQTT sink.
func NewMQTTLog(pub Publisher, topics mqtt.Topics, qos byte) *MQTTLog {
	return &MQTTLog{pub: pub, topics: topics, qos: qos}
}

// Append implements Log.
func (l *MQTTLog) Append(_ context.Context, rec Record) error {
	rec.normalise()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding action record: %w", err)
	}

	topic := l.topics.Event(rec.Action)
	if rec.Point != "" {
		topic = l.topics.Action(rec.Point)
	}
	if err := l.pub.Publish(topic, payload, l.qos, false); err != nil {
		return fmt.Errorf("publishing action record: %w", err)
	}
	return nil
}
