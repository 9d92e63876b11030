package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-operator/internal/console"
	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-operator/internal/operation"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
)

// Magnus formula coefficients for dew point over water.
const (
	magnusA = 17.62
	magnusB = 243.12

	// minHumidity keeps the logarithm finite for zero readings.
	minHumidity = 0.1
)

// Source supplies the readings for one cycle.
type Source interface {
	Sense(ctx context.Context, sess console.Session) ([]Reading, error)
}

// DewPoint returns the dew point in °C for a temperature in °C and a
// relative humidity in percent.
func DewPoint(tempC, rhPercent float64) float64 {
	gamma := magnusA*tempC/(magnusB+tempC) + math.Log(math.Max(rhPercent, minHumidity)/100)
	return magnusB * gamma / (magnusA - gamma)
}

// WithDerived adds dew_point (from temperature and relative_humidity) and
// condensation_risk (dew point minus outdoor temperature) when their inputs
// are present and the readings do not already carry them.
func WithDerived(readings []Reading, now time.Time) []Reading {
	byMetric := make(map[string]float64, len(readings))
	for _, r := range readings {
		byMetric[r.Metric] = r.Value
	}

	dew, haveDew := byMetric[MetricDewPoint]
	if !haveDew {
		t, okT := byMetric[MetricTemperature]
		rh, okRH := byMetric[MetricRelativeHumidity]
		if okT && okRH {
			dew, haveDew = DewPoint(t, rh), true
			readings = append(readings, Reading{Metric: MetricDewPoint, Value: dew, Timestamp: now})
		}
	}
	if _, ok := byMetric[MetricCondensationRisk]; !ok && haveDew {
		if outdoor, ok := byMetric[MetricOutdoorTemperature]; ok {
			readings = append(readings, Reading{Metric: MetricCondensationRisk, Value: dew - outdoor, Timestamp: now})
		}
	}
	return readings
}

// Retrier runs one request with retries. *retry.Engine implements it.
type Retrier interface {
	Run(ctx context.Context, sess console.Session, req operation.Request, policy retry.Policy) operation.Outcome
}

// PointSource reads sensor points through the console every cycle.
type PointSource struct {
	points  map[string]string
	retrier Retrier
	policy  retry.Policy
	now     func() time.Time
	logger  Logger
}

// NewPointSource creates a source reading the metric → point map.
func NewPointSource(points map[string]string, retrier Retrier, policy retry.Policy, logger Logger) *PointSource {
	if logger == nil {
		logger = noopLogger{}
	}
	return &PointSource{
		points:  points,
		retrier: retrier,
		policy:  policy,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// Sense reads every configured point in metric order. A point that cannot
// be read is skipped; ErrNoReadings is returned only when none could.
func (s *PointSource) Sense(ctx context.Context, sess console.Session) ([]Reading, error) {
	metrics := make([]string, 0, len(s.points))
	for m := range s.points {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var readings []Reading
	var failed []string
	for _, metric := range metrics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := operation.NewRequest(s.points[metric], operation.KindRead, nil, false)
		if err != nil {
			return nil, err
		}
		out := s.retrier.Run(ctx, sess, req, s.policy)
		if !out.Success || out.ObservedValue == nil {
			s.logger.Warn("sensor read failed", "metric", metric, "point", req.Point.String(), "message", out.Message)
			failed = append(failed, metric)
			continue
		}
		readings = append(readings, Reading{Metric: metric, Value: *out.ObservedValue, Timestamp: out.Timestamp})
	}

	if len(readings) == 0 {
		return nil, fmt.Errorf("%w: failed metrics %s", ErrNoReadings, strings.Join(failed, ", "))
	}
	return WithDerived(readings, s.now()), nil
}

// Subscriber is the subset of mqtt.Client used by MQTTSource.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// sensorPayload is the JSON form of a pushed reading. A bare number
// ("21.5" or "21,5") is also accepted.
type sensorPayload struct {
	Value     *float64  `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTSource caches the latest reading pushed on each sensor topic.
type MQTTSource struct {
	sub    Subscriber
	topics mqtt.Topics
	maxAge time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	latest  map[string]Reading
	started bool
}

// NewMQTTSource creates a push source. Readings older than maxAge at Sense
// time are ignored. now may be nil.
func NewMQTTSource(sub Subscriber, topics mqtt.Topics, maxAge time.Duration, now func() time.Time) *MQTTSource {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MQTTSource{
		sub:    sub,
		topics: topics,
		maxAge: maxAge,
		now:    now,
		latest: make(map[string]Reading),
	}
}

// Start subscribes to every sensor topic.
func (s *MQTTSource) Start() error {
	if err := s.sub.Subscribe(s.topics.AllSensors(), 1, s.handle); err != nil {
		return fmt.Errorf("subscribing to sensor topics: %w", err)
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

// Stop unsubscribes from the sensor topics. Sense fails afterwards. Stop on
// a source that was never started does nothing.
func (s *MQTTSource) Stop() error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return nil
	}
	if err := s.sub.Unsubscribe(s.topics.AllSensors()); err != nil {
		return fmt.Errorf("unsubscribing from sensor topics: %w", err)
	}
	return nil
}

// handle stores one pushed reading.
func (s *MQTTSource) handle(topic string, payload []byte) error {
	metric := s.topics.SensorMetric(topic)
	if metric == "" {
		return fmt.Errorf("not a sensor topic: %s", topic)
	}

	reading := Reading{Metric: metric, Timestamp: s.now()}
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "{") {
		var p sensorPayload
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return fmt.Errorf("decoding %s payload: %w", metric, err)
		}
		if p.Value == nil {
			return fmt.Errorf("%s payload has no value", metric)
		}
		reading.Value = *p.Value
		if !p.Timestamp.IsZero() {
			reading.Timestamp = p.Timestamp
		}
	} else {
		v, err := operation.ParseValue(text)
		if err != nil {
			return fmt.Errorf("parsing %s payload: %w", metric, err)
		}
		reading.Value = v
	}

	s.mu.Lock()
	s.latest[metric] = reading
	s.mu.Unlock()
	return nil
}

// Sense returns the fresh cached readings in metric order. The session is
// not used.
func (s *MQTTSource) Sense(_ context.Context, _ console.Session) ([]Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrSourceNotStarted
	}

	now := s.now()
	readings := make([]Reading, 0, len(s.latest))
	for _, r := range s.latest {
		if s.maxAge > 0 && now.Sub(r.Timestamp) > s.maxAge {
			continue
		}
		readings = append(readings, r)
	}
	if len(readings) == 0 {
		return nil, ErrNoReadings
	}
	sort.Slice(readings, func(i, j int) bool { return readings[i].Metric < readings[j].Metric })
	return WithDerived(readings, now), nil
}
