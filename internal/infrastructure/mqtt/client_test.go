package mqtt

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Broker tests require Mosquitto at 127.0.0.1:1883 and are skipped otherwise.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-operator-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "graylogic/operator-test",
	}
}

var (
	brokerOnce sync.Once
	brokerUp   bool
)

// connectOrSkip connects to the local broker or skips the test.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	brokerOnce.Do(func() {
		conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", 200*time.Millisecond)
		if err == nil {
			conn.Close()
			brokerUp = true
		}
	})
	if !brokerUp {
		t.Skip("no MQTT broker on 127.0.0.1:1883")
	}
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// offlineClient returns a client that was never connected.
func offlineClient() *Client {
	cfg := testConfig()
	return &Client{
		cfg:           cfg,
		client:        pahomqtt.NewClient(buildClientOptions(cfg)),
		topics:        Topics{Prefix: cfg.TopicPrefix},
		subscriptions: make(map[string]subscription),
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "site7/operator/"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", topics.Status(), "site7/operator/status"},
		{"action", topics.Action("360.005-JV40_Pos"), "site7/operator/action/360.005-JV40_Pos"},
		{"event", topics.Event("auto_evaluate"), "site7/operator/event/auto_evaluate"},
		{"sensor", topics.Sensor("relative_humidity"), "site7/operator/sensor/relative_humidity"},
		{"all sensors", topics.AllSensors(), "site7/operator/sensor/+"},
		{"wildcards escaped", topics.Action("a/b+c#"), "site7/operator/action/a_b_c_"},
		{"empty segment", topics.Event(""), "site7/operator/event/_"},
		{"default prefix", Topics{}.Status(), DefaultTopicPrefix + "/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestSensorMetric(t *testing.T) {
	topics := Topics{Prefix: "graylogic/operator"}

	tests := []struct {
		topic string
		want  string
	}{
		{"graylogic/operator/sensor/temperature", "temperature"},
		{"graylogic/operator/sensor/", ""},
		{"graylogic/operator/sensor/a/b", ""},
		{"other/sensor/temperature", ""},
	}
	for _, tt := range tests {
		if got := topics.SensorMetric(tt.topic); got != tt.want {
			t.Errorf("SensorMetric(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBrokerURL(t *testing.T) {
	cfg := testConfig()
	if got := brokerURL(cfg); got != "tcp://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q", got)
	}
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	if got := brokerURL(cfg); got != "ssl://127.0.0.1:8883" {
		t.Errorf("brokerURL(tls) = %q", got)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("op-1")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, `"client_id":"op-1"`) {
		t.Errorf("online payload = %s", online)
	}
	offline := buildOfflinePayload("op-1")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", offline)
	}
}

// =============================================================================
// Validation Tests (no broker)
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	client := offlineClient()

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		want    error
	}{
		{"empty topic", "", 1, []byte("x"), ErrInvalidTopic},
		{"invalid qos", "a/b", 3, []byte("x"), ErrInvalidQoS},
		{"oversized payload", "a/b", 1, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"not connected", "a/b", 1, []byte("x"), ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := offlineClient()
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("a/b", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("a/b", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("a/b", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(offline) error = %v, want ErrNotConnected", err)
	}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("a/b"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe(offline) error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckOffline(t *testing.T) {
	client := offlineClient()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

func TestWrapHandler_LogsErrorsAndRecoversPanics(t *testing.T) {
	client := offlineClient()
	logger := &recordingLogger{}
	client.SetLogger(logger)
	msg := fakeMessage{topic: "graylogic/operator-test/sensor/temperature", payload: []byte("21.5")}

	var gotTopic string
	client.wrapHandler(func(topic string, _ []byte) error {
		gotTopic = topic
		return errors.New("bad reading")
	})(nil, msg)

	client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, msg)

	if gotTopic != msg.topic {
		t.Errorf("handler topic = %q, want %q", gotTopic, msg.topic)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one handler error", logger.warns)
	}
	if len(logger.errs) != 1 {
		t.Errorf("errors = %v, want one recovered panic", logger.errs)
	}
}

// =============================================================================
// Broker Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t)

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client := connectOrSkip(t)
	topics := client.Topics()

	received := make(chan string, 1)
	err := client.Subscribe(topics.AllSensors(), 1, func(topic string, payload []byte) error {
		received <- topics.SensorMetric(topic) + "=" + string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := client.Publish(topics.Sensor("relative_humidity"), []byte("63.5"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "relative_humidity=63.5" {
			t.Errorf("received %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(topics.AllSensors()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestPublishAfterClose(t *testing.T) {
	client := connectOrSkip(t)
	client.Close()

	err := client.Publish(client.Topics().Status(), []byte("x"), 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}
