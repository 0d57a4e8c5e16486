package reconcile

import "time"

// Status classifies a reconciled departure.
type Status string

const (
	StatusOnTime  Status = "ON_TIME"
	StatusDelayed Status = "DELAYED"
	StatusEarly   Status = "EARLY"
	StatusNoData  Status = "NO_DATA"
	StatusSkipped Status = "SKIPPED"
)

// OnTimeToleranceSec bounds the ON_TIME band, inclusive on both sides.
const OnTimeToleranceSec = 60

// StatusForDelay derives the status from a delay in seconds. Pure function;
// SKIPPED and NO_DATA are decided by the caller from feed tags and match
// outcome, not from the number.
func StatusForDelay(delaySec int) Status {
	switch {
	case delaySec > OnTimeToleranceSec:
		return StatusDelayed
	case delaySec < -OnTimeToleranceSec:
		return StatusEarly
	default:
		return StatusOnTime
	}
}

// DelayInfo is one reconciled departure. Created per query and handed to
// the caller; nothing retains it except the quality monitor's derived
// records.
type DelayInfo struct {
	StopID       string    `json:"stopId"`
	StopName     string    `json:"stopName"`
	TripID       string    `json:"tripId"`
	RouteID      string    `json:"routeId"`
	RouteName    string    `json:"routeName"`
	Headsign     string    `json:"headsign"`
	Scheduled    time.Time `json:"scheduled"`
	Predicted    time.Time `json:"predicted"`
	DelaySeconds int       `json:"delaySeconds"`
	Status       Status    `json:"status"`
	LiveTripID   string    `json:"liveTripId,omitempty"`
	Tier         MatchTier `json:"-"`
	ObservedAt   time.Time `json:"observedAt"`
}

// HasLiveData reports whether the record carries a usable live observation.
func (d DelayInfo) HasLiveData() bool {
	return d.Status != StatusNoData && d.Status != StatusSkipped
}
