package feed

import "time"

// ScheduleRelationship is the per-stop tag from the realtime feed.
type ScheduleRelationship int

const (
	RelScheduled ScheduleRelationship = 0
	RelSkipped   ScheduleRelationship = 1
	RelNoData    ScheduleRelationship = 2
)

// StopUpdate is one live stop-time update. Optional wire fields stay
// optional here: delays are pointers, epoch times are 0 when absent and the
// sequence is -1 when absent.
type StopUpdate struct {
	StopID         string
	StopSequence   int
	ArrivalDelay   *int // seconds, negative = early
	ArrivalTime    int64
	DepartureDelay *int
	DepartureTime  int64
	Relationship   ScheduleRelationship
}

// TripUpdate is one live trip as reported by the feed. The trip identifier
// is the feed's own; it may differ lexically from the static one.
type TripUpdate struct {
	TripID      string
	RouteID     string
	Direction   int // -1 unknown
	VehicleID   string
	Timestamp   int64
	StopUpdates []StopUpdate

	byStop map[string]int
}

// StopUpdateFor returns the update for a stop, if the trip reports one.
func (tu *TripUpdate) StopUpdateFor(stopID string) (*StopUpdate, bool) {
	if tu == nil {
		return nil, false
	}
	if tu.byStop != nil {
		if i, ok := tu.byStop[stopID]; ok {
			return &tu.StopUpdates[i], true
		}
		return nil, false
	}
	for i := range tu.StopUpdates {
		if tu.StopUpdates[i].StopID == stopID {
			return &tu.StopUpdates[i], true
		}
	}
	return nil, false
}

// Snapshot is one decoded feed. It is replaced atomically by the cache and
// never mutated in place; readers may hold it across the next refresh.
type Snapshot struct {
	FetchedAt       time.Time
	HeaderTimestamp int64
	Updates         map[string]*TripUpdate
	Order           []string // trip ids in decode order, for deterministic scans
}

// Empty returns a snapshot with no entries, used when no feed data is
// available at all.
func Empty(at time.Time) *Snapshot {
	return &Snapshot{FetchedAt: at, Updates: map[string]*TripUpdate{}}
}

// Len is the number of live trips in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Updates)
}
