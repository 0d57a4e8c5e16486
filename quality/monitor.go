package quality

import (
	"sort"
	"sync"
	"time"
)

// DelayRecord is one historical delay observation. Records are appended and
// swept by age; none is ever edited in place.
type DelayRecord struct {
	RouteID      string    `json:"routeId"`
	RouteName    string    `json:"routeName"`
	ObservedAt   time.Time `json:"observedAt"`
	DelaySeconds int       `json:"delaySeconds"`
	StopID       string    `json:"stopId"`
	StopName     string    `json:"stopName"`
}

// RouteReliability pairs a route with its on-time percentage.
type RouteReliability struct {
	RouteID     string  `json:"routeId"`
	RouteName   string  `json:"routeName"`
	Reliability float64 `json:"reliability"`
	Records     int     `json:"records"`
}

// Snapshot is the per-route quality summary handed to the API.
type Snapshot struct {
	RouteID           string             `json:"routeId"`
	Reliability       float64            `json:"reliability"`
	AverageDelay      float64            `json:"avgDelaySeconds"`
	Records           int                `json:"records"`
	GlobalReliability float64            `json:"globalReliability"`
	GlobalAvgDelay    float64            `json:"globalAvgDelaySeconds"`
	TopReliable       []RouteReliability `json:"topReliable"`
	LeastReliable     []RouteReliability `json:"leastReliable"`
}

// RecordSink receives every appended record, for optional persistence.
type RecordSink interface {
	Append(rec DelayRecord) error
}

// onTimeBoundSec matches the reconciler's ON_TIME band.
const onTimeBoundSec = 60

// Options configures a Monitor. Zero values use the defaults: 7 days
// retention, 3 days prediction lookback, ±30 minutes time-of-day window.
type Options struct {
	Retention        time.Duration
	PredictionWindow time.Duration
	TimeOfDayWindow  time.Duration
	Now              func() time.Time
	Sink             RecordSink
}

// Monitor accumulates delay records per route over a rolling window and
// computes reliability statistics. Safe for concurrent use.
type Monitor struct {
	mu      sync.Mutex
	byRoute map[string][]DelayRecord

	retention        time.Duration
	predictionWindow time.Duration
	todWindow        time.Duration
	now              func() time.Time
	sink             RecordSink
}

// NewMonitor creates an empty monitor.
func NewMonitor(opts Options) *Monitor {
	m := &Monitor{
		byRoute:          map[string][]DelayRecord{},
		retention:        opts.Retention,
		predictionWindow: opts.PredictionWindow,
		todWindow:        opts.TimeOfDayWindow,
		now:              opts.Now,
		sink:             opts.Sink,
	}
	if m.retention <= 0 {
		m.retention = 7 * 24 * time.Hour
	}
	if m.predictionWindow <= 0 {
		m.predictionWindow = 3 * 24 * time.Hour
	}
	if m.todWindow <= 0 {
		m.todWindow = 30 * time.Minute
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Record appends an observation and sweeps expired records for the route.
func (m *Monitor) Record(rec DelayRecord) {
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = m.now()
	}
	m.mu.Lock()
	m.byRoute[rec.RouteID] = m.sweep(append(m.byRoute[rec.RouteID], rec))
	m.mu.Unlock()

	if m.sink != nil {
		_ = m.sink.Append(rec) // persistence is best-effort
	}
}

// restore appends without touching the sink; used when replaying history.
func (m *Monitor) restore(rec DelayRecord) {
	m.mu.Lock()
	m.byRoute[rec.RouteID] = m.sweep(append(m.byRoute[rec.RouteID], rec))
	m.mu.Unlock()
}

func (m *Monitor) sweep(recs []DelayRecord) []DelayRecord {
	cutoff := m.now().Add(-m.retention)
	kept := recs[:0]
	for _, r := range recs {
		if r.ObservedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}

// Reliability returns the percentage of a route's records within the
// on-time band, and the record count. Zero records yield 0, 0.
func (m *Monitor) Reliability(routeID string) (float64, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return reliabilityOf(m.byRoute[routeID])
}

func reliabilityOf(recs []DelayRecord) (float64, int) {
	if len(recs) == 0 {
		return 0, 0
	}
	onTime := 0
	for _, r := range recs {
		if r.DelaySeconds >= -onTimeBoundSec && r.DelaySeconds <= onTimeBoundSec {
			onTime++
		}
	}
	return 100 * float64(onTime) / float64(len(recs)), len(recs)
}

// AverageDelay returns the mean delay over a route's records.
func (m *Monitor) AverageDelay(routeID string) (float64, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return averageOf(m.byRoute[routeID])
}

func averageOf(recs []DelayRecord) (float64, int) {
	if len(recs) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range recs {
		sum += r.DelaySeconds
	}
	return float64(sum) / float64(len(recs)), len(recs)
}

// PredictDelay estimates the delay at a stop for a scheduled time of day:
// the mean over recent records at the same stop within the time-of-day
// window. Rush-hour patterns survive the averaging this way. The boolean is
// false when no record qualifies.
func (m *Monitor) PredictDelay(routeID, stopID string, scheduledAt time.Time) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.predictionWindow)
	target := minutesOfDay(scheduledAt)
	windowMin := int(m.todWindow / time.Minute)

	sum, n := 0, 0
	for _, r := range m.byRoute[routeID] {
		if r.StopID != stopID || r.ObservedAt.Before(cutoff) {
			continue
		}
		if timeOfDayDiff(minutesOfDay(r.ObservedAt), target) > windowMin {
			continue
		}
		sum += r.DelaySeconds
		n++
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

func minutesOfDay(t time.Time) int { return t.Hour()*60 + t.Minute() }

// timeOfDayDiff is the circular distance in minutes, so 23:50 and 00:10
// are 20 minutes apart.
func timeOfDayDiff(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 720 {
		d = 1440 - d
	}
	return d
}

// TopReliable returns the n most reliable routes by on-time percentage.
func (m *Monitor) TopReliable(n int) []RouteReliability {
	return m.rankedRoutes(n, true)
}

// LeastReliable returns the n least reliable routes.
func (m *Monitor) LeastReliable(n int) []RouteReliability {
	return m.rankedRoutes(n, false)
}

func (m *Monitor) rankedRoutes(n int, best bool) []RouteReliability {
	m.mu.Lock()
	ranked := make([]RouteReliability, 0, len(m.byRoute))
	for routeID, recs := range m.byRoute {
		pct, count := reliabilityOf(recs)
		if count == 0 {
			continue
		}
		name := routeID
		if len(recs) > 0 && recs[0].RouteName != "" {
			name = recs[0].RouteName
		}
		ranked = append(ranked, RouteReliability{RouteID: routeID, RouteName: name, Reliability: pct, Records: count})
	}
	m.mu.Unlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Reliability != ranked[j].Reliability {
			if best {
				return ranked[i].Reliability > ranked[j].Reliability
			}
			return ranked[i].Reliability < ranked[j].Reliability
		}
		return ranked[i].RouteID < ranked[j].RouteID
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// GlobalReliability is the on-time percentage across all routes.
func (m *Monitor) GlobalReliability() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	onTime, total := 0, 0
	for _, recs := range m.byRoute {
		for _, r := range recs {
			if r.DelaySeconds >= -onTimeBoundSec && r.DelaySeconds <= onTimeBoundSec {
				onTime++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return 100 * float64(onTime) / float64(total)
}

// GlobalAverageDelay is the mean delay across all routes.
func (m *Monitor) GlobalAverageDelay() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, total := 0, 0
	for _, recs := range m.byRoute {
		for _, r := range recs {
			sum += r.DelaySeconds
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(sum) / float64(total)
}

// RecordCount is the total number of records held.
func (m *Monitor) RecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, recs := range m.byRoute {
		total += len(recs)
	}
	return total
}

// RouteSnapshot assembles the quality summary for one route.
func (m *Monitor) RouteSnapshot(routeID string, topN int) Snapshot {
	rel, count := m.Reliability(routeID)
	avg, _ := m.AverageDelay(routeID)
	return Snapshot{
		RouteID:           routeID,
		Reliability:       rel,
		AverageDelay:      avg,
		Records:           count,
		GlobalReliability: m.GlobalReliability(),
		GlobalAvgDelay:    m.GlobalAverageDelay(),
		TopReliable:       m.TopReliable(topN),
		LeastReliable:     m.LeastReliable(topN),
	}
}
