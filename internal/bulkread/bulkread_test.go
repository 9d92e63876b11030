package bulkread_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-operator/internal/actionlog"
	"github.com/nerrad567/gray-logic-operator/internal/bulkread"
	"github.com/nerrad567/gray-logic-operator/internal/console"
	"github.com/nerrad567/gray-logic-operator/internal/console/consoletest"
	"github.com/nerrad567/gray-logic-operator/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
)

var at = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

var values = map[string]string{
	"360.005-RT40":     "21,5",
	"360.005-RT41":     "22,5",
	"360.005-RH40":     "40",
	"360.005-SB40":     "50",
	"360.005-JV40_Pos": "30",
}

var testPoints = []bulkread.Point{
	{Name: "360.005-RT40", Unit: "°C", Category: bulkread.CategoryTemperature},
	{Name: "360.005-RT41", Unit: "°C", Category: bulkread.CategoryTemperature},
	{Name: "360.005-RH40", Unit: "%", Category: bulkread.CategoryHumidity},
	{Name: "360.005-QT90", Unit: "Pa", Category: bulkread.CategoryPressure},
	{Name: "360.005-SB40", Unit: "%", Category: bulkread.CategoryHumidity},
	{Name: "360.005-JV40_Pos", Unit: "%", Category: "ventilation"},
}

// opener hands out fake sessions and remembers them.
type opener struct {
	mu       sync.Mutex
	sessions []*consoletest.Session
	failures int
}

func (o *opener) Open(_ context.Context) (bulkread.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failures > 0 {
		o.failures--
		return nil, errors.New("browser did not start")
	}
	sess := consoletest.New()
	for label, v := range values {
		sess.AddPoint(label, v)
	}
	o.sessions = append(o.sessions, sess)
	return sess, nil
}

func (o *opener) opened() []*consoletest.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*consoletest.Session(nil), o.sessions...)
}

func noSleep(context.Context, time.Duration) error { return nil }

func newReader(o *opener, workers int, log actionlog.Log) *bulkread.Reader {
	exec := console.NewExecutor(console.ExecutorOptions{StepTimeout: time.Second})
	engine := retry.New(exec.Execute, retry.Options{Sleep: noSleep, Log: log, Source: actionlog.SourceScheduler})
	policy := retry.Policy{MaxAttempts: 2, BackoffBase: time.Millisecond}
	return bulkread.NewReader(o.Open, engine, bulkread.ReaderOptions{
		Workers: workers,
		Policy:  &policy,
		Now:     func() time.Time { return at },
	})
}

func TestReadAll(t *testing.T) {
	o := &opener{}
	snap, err := newReader(o, 3, nil).ReadAll(context.Background(), testPoints)
	require.NoError(t, err)

	assert.Equal(t, at, snap.Timestamp)
	require.Len(t, snap.Points, len(testPoints))
	for i, p := range snap.Points {
		assert.Equal(t, testPoints[i].Name, p.Name, "points keep their order")
	}
	assert.Equal(t, 5, snap.Succeeded())

	rt40 := snap.Points[0]
	require.True(t, rt40.Success)
	assert.InDelta(t, 21.5, *rt40.Value, 1e-9)

	missing := snap.Points[3]
	assert.False(t, missing.Success)
	assert.Nil(t, missing.Value)
	assert.Contains(t, missing.Error, "not found")
	assert.Equal(t, 2, missing.Attempt)

	require.Len(t, snap.Averages, 2)
	assert.InDelta(t, 22.0, snap.Averages[bulkread.CategoryTemperature].Value, 1e-9)
	assert.Equal(t, 2, snap.Averages[bulkread.CategoryTemperature].Samples)
	assert.InDelta(t, 45.0, snap.Averages[bulkread.CategoryHumidity].Value, 1e-9)
	_, hasPressure := snap.Averages[bulkread.CategoryPressure]
	assert.False(t, hasPressure)

	sessions := o.opened()
	assert.LessOrEqual(t, len(sessions), 3)
	for _, s := range sessions {
		assert.True(t, s.Closed())
	}
}

func TestReadAll_WorkersCappedByPoints(t *testing.T) {
	o := &opener{}
	_, err := newReader(o, 10, nil).ReadAll(context.Background(), testPoints[:2])
	require.NoError(t, err)
	assert.Len(t, o.opened(), 2)
}

func TestReadAll_WorkerOpenFailure(t *testing.T) {
	o := &opener{failures: 1}
	snap, err := newReader(o, 2, nil).ReadAll(context.Background(), testPoints)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Succeeded())
	assert.Len(t, o.opened(), 1)
}

func TestReadAll_NoSession(t *testing.T) {
	o := &opener{failures: 100}
	snap, err := newReader(o, 2, nil).ReadAll(context.Background(), testPoints)

	require.ErrorIs(t, err, bulkread.ErrNoSession)
	require.Len(t, snap.Points, len(testPoints))
	for _, p := range snap.Points {
		assert.False(t, p.Success)
		assert.Contains(t, p.Error, "no console session")
	}
	assert.Empty(t, snap.Averages)
}

func TestReadAll_NoPoints(t *testing.T) {
	_, err := newReader(&opener{}, 2, nil).ReadAll(context.Background(), nil)
	assert.ErrorIs(t, err, bulkread.ErrNoPoints)
}

func TestReadAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := newReader(&opener{}, 2, nil).ReadAll(ctx, testPoints)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, snap.Succeeded())
}

func TestPointsFromConfig(t *testing.T) {
	assert.Equal(t, bulkread.DefaultPoints(), bulkread.PointsFromConfig(nil))

	got := bulkread.PointsFromConfig([]config.BulkPointConfig{
		{Name: "360.005-RT40", Unit: "°C", Category: "temperature"},
	})
	assert.Equal(t, []bulkread.Point{{Name: "360.005-RT40", Unit: "°C", Category: "temperature"}}, got)
}

type memorySnapshots struct {
	snaps []bulkread.Snapshot
	err   error
}

func (m *memorySnapshots) Append(s bulkread.Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.snaps = append(m.snaps, s)
	return nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	values   map[string]float64
	averages map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{values: map[string]float64{}, averages: map[string]float64{}}
}

func (f *fakeMetrics) WritePointValue(point, _, _ string, value float64, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[point] = value
}

func (f *fakeMetrics) WriteCategoryAverage(category string, average float64, _ int, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.averages[category] = average
}

type recordingSleeper struct {
	waits []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return s.err
}

func bulkRecords(log *actionlog.Memory) []actionlog.Record {
	var out []actionlog.Record
	for _, r := range log.Records() {
		if r.Action == actionlog.ActionBulkRead {
			out = append(out, r)
		}
	}
	return out
}

func TestScheduler_Run(t *testing.T) {
	log := &actionlog.Memory{}
	snaps := &memorySnapshots{}
	metrics := newFakeMetrics()
	sleeper := &recordingSleeper{}

	sched := bulkread.NewScheduler(newReader(&opener{}, 2, log), testPoints, bulkread.SchedulerOptions{
		Interval:  30 * time.Minute,
		Snapshots: snaps,
		Metrics:   metrics,
		Log:       log,
		Sleep:     sleeper.Sleep,
	})
	require.NoError(t, sched.Run(context.Background(), 2))

	require.Len(t, snaps.snaps, 2)
	assert.Equal(t, 1, snaps.snaps[0].Cycle)
	assert.Equal(t, 2, snaps.snaps[1].Cycle)
	assert.Equal(t, []time.Duration{30 * time.Minute}, sleeper.waits)

	assert.Len(t, metrics.values, 5)
	assert.InDelta(t, 30.0, metrics.values["360.005-JV40_Pos"], 1e-9)
	assert.InDelta(t, 22.0, metrics.averages[bulkread.CategoryTemperature], 1e-9)

	recs := bulkRecords(log)
	require.Len(t, recs, 2)
	assert.Equal(t, actionlog.SourceScheduler, recs[0].Source)
	assert.False(t, recs[0].Success, "one point is missing")
	assert.Equal(t, "read 5/6 points", recs[0].Message)
	assert.Equal(t, 2, recs[1].Details["cycle"])
}

func TestScheduler_FailedCycleContinues(t *testing.T) {
	log := &actionlog.Memory{}
	snaps := &memorySnapshots{}

	sched := bulkread.NewScheduler(newReader(&opener{failures: 2}, 2, log), testPoints, bulkread.SchedulerOptions{
		Snapshots: snaps,
		Log:       log,
		Sleep:     noSleep,
	})
	require.NoError(t, sched.Run(context.Background(), 2))

	require.Len(t, snaps.snaps, 1, "only the second cycle had sessions")
	assert.Equal(t, 2, snaps.snaps[0].Cycle)

	recs := bulkRecords(log)
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Success)
	assert.Contains(t, recs[0].Message, "no console session")
	assert.Equal(t, "read 5/6 points", recs[1].Message)
}

func TestScheduler_SnapshotFailure(t *testing.T) {
	log := &actionlog.Memory{}
	sched := bulkread.NewScheduler(newReader(&opener{}, 1, log), testPoints[:1], bulkread.SchedulerOptions{
		Snapshots: &memorySnapshots{err: errors.New("disk full")},
		Log:       log,
	})

	_, err := sched.Cycle(context.Background(), 1)
	require.Error(t, err)

	recs := bulkRecords(log)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
	assert.Contains(t, recs[0].Message, "disk full")
}

func TestScheduler_StopsWhenSleepInterrupted(t *testing.T) {
	sleeper := &recordingSleeper{err: context.Canceled}
	snaps := &memorySnapshots{}
	sched := bulkread.NewScheduler(newReader(&opener{}, 1, nil), testPoints[:1], bulkread.SchedulerOptions{
		Snapshots: snaps,
		Sleep:     sleeper.Sleep,
	})

	require.NoError(t, sched.Run(context.Background(), 0))
	assert.Len(t, snaps.snaps, 1)
	assert.Equal(t, []time.Duration{bulkread.DefaultInterval}, sleeper.waits)
}

func TestSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "snapshots.jsonl")
	f, err := bulkread.OpenSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())

	snap, err := newReader(&opener{}, 2, nil).ReadAll(context.Background(), testPoints)
	require.NoError(t, err)
	snap.Cycle = 7
	require.NoError(t, f.Append(snap))
	require.NoError(t, f.Append(snap))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Append(snap), bulkread.ErrClosed)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []bulkread.Snapshot
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var s bulkread.Snapshot
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		lines = append(lines, s)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, 7, lines[0].Cycle)
	assert.Len(t, lines[0].Points, len(testPoints))
	assert.InDelta(t, 45.0, lines[0].Averages[bulkread.CategoryHumidity].Value, 1e-9)

	_, err = bulkread.OpenSnapshotFile("")
	assert.ErrorIs(t, err, bulkread.ErrNoPath)
}
