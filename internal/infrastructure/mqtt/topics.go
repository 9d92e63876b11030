package mqtt

import "strings"

// DefaultTopicPrefix is used when Topics.Prefix is empty.
const DefaultTopicPrefix = "graylogic/operator"

// Topics builds the operator's MQTT topics under a configurable prefix.
//
//	topics := mqtt.Topics{Prefix: "site7/operator"}
//	topics.Action("360.005-JV40_Pos") // "site7/operator/action/360.005-JV40_Pos"
//	topics.Sensor("relative_humidity") // "site7/operator/sensor/relative_humidity"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.TrimSuffix(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// Status returns the retained online/offline status topic (also the LWT topic).
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// Action returns the topic for records about one point.
func (t Topics) Action(point string) string {
	return t.prefix() + "/action/" + segment(point)
}

// Event returns the topic for records that concern no single point.
func (t Topics) Event(action string) string {
	return t.prefix() + "/event/" + segment(action)
}

// Sensor returns the topic a sensor metric is published on.
func (t Topics) Sensor(metric string) string {
	return t.prefix() + "/sensor/" + segment(metric)
}

// AllSensors returns the wildcard subscription for every sensor metric.
func (t Topics) AllSensors() string {
	return t.prefix() + "/sensor/+"
}

// SensorMetric extracts the metric name from a sensor topic.
// Returns "" when topic is not a sensor topic under this prefix.
func (t Topics) SensorMetric(topic string) string {
	base := t.prefix() + "/sensor/"
	if !strings.HasPrefix(topic, base) {
		return ""
	}
	metric := strings.TrimPrefix(topic, base)
	if metric == "" || strings.Contains(metric, "/") {
		return ""
	}
	return metric
}

// segment makes s safe as a single topic level.
func segment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
