package bulkread

import (
	"time"

	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/config"
)

// Categories that get an average in every snapshot.
const (
	CategoryTemperature = "temperature"
	CategoryHumidity    = "humidity"
	CategoryPressure    = "pressure"
)

// averagedCategories lists the categories in snapshot order.
var averagedCategories = []string{CategoryTemperature, CategoryHumidity, CategoryPressure}

// Point is one point read by the bulk reader.
type Point struct {
	Name     string `json:"name"`
	Unit     string `json:"unit,omitempty"`
	Category string `json:"category,omitempty"`
}

// DefaultPoints returns the room unit points read when none are configured.
func DefaultPoints() []Point {
	return []Point{
		{Name: "360.005-JV40_Pos", Unit: "%", Category: "ventilation"},
		{Name: "360.005-JV50_Pos", Unit: "%", Category: "heating"},
		{Name: "360.005-JP40_Pos", Unit: "%", Category: "cooling"},
		{Name: "360.005-RT40", Unit: "°C", Category: CategoryTemperature},
		{Name: "360.005-RH40", Unit: "%", Category: CategoryHumidity},
		{Name: "360.005-SB40", Unit: "%", Category: CategoryHumidity},
	}
}

// PointsFromConfig converts the configured point list, falling back to
// DefaultPoints when it is empty.
func PointsFromConfig(cfg []config.BulkPointConfig) []Point {
	if len(cfg) == 0 {
		return DefaultPoints()
	}
	points := make([]Point, len(cfg))
	for i, p := range cfg {
		points[i] = Point{Name: p.Name, Unit: p.Unit, Category: p.Category}
	}
	return points
}

// PointReading is the result of reading one point.
type PointReading struct {
	Point
	Value     *float64  `json:"value"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Average is the mean of the successful readings in one category.
type Average struct {
	Value   float64 `json:"value"`
	Samples int     `json:"samples"`
}

// Snapshot is one bulk read of every configured point.
type Snapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Cycle     int                `json:"cycle,omitempty"`
	Points    []PointReading     `json:"points"`
	Averages  map[string]Average `json:"averages,omitempty"`
}

// Succeeded returns the number of points read successfully.
func (s Snapshot) Succeeded() int {
	n := 0
	for _, p := range s.Points {
		if p.Success {
			n++
		}
	}
	return n
}

// computeAverages fills s.Averages from the successful readings.
func (s *Snapshot) computeAverages() {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, p := range s.Points {
		if !p.Success || p.Value == nil {
			continue
		}
		sums[p.Category] += *p.Value
		counts[p.Category]++
	}

	s.Averages = nil
	for _, c := range averagedCategories {
		if counts[c] == 0 {
			continue
		}
		if s.Averages == nil {
			s.Averages = make(map[string]Average, len(averagedCategories))
		}
		s.Averages[c] = Average{Value: sums[c] / float64(counts[c]), Samples: counts[c]}
	}
}
