package reconcile

import (
	"time"

	"github.com/openmobility/delaywatch/feed"
	"github.com/openmobility/delaywatch/schedule"
)

// MatchTier records which strategy resolved a match.
type MatchTier int

const (
	TierNone MatchTier = iota
	TierDirect
	TierNormalized
	TierFallback
)

func (t MatchTier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierNormalized:
		return "normalized"
	case TierFallback:
		return "fallback"
	default:
		return "none"
	}
}

// ConsumedSet tracks live trip identifiers already attributed to a static
// departure within one reconciliation pass. One live vehicle must never
// explain two different scheduled departures in the same query.
type ConsumedSet map[string]struct{}

func (s ConsumedSet) has(id string) bool { _, ok := s[id]; return ok }
func (s ConsumedSet) add(id string)      { s[id] = struct{}{} }

// Matcher resolves a scheduled trip occurrence to at most one live trip
// update. It is stateless; all per-query state lives in the ConsumedSet the
// caller allocates per pass.
type Matcher struct {
	normalizer     IDNormalizer
	fallbackWindow time.Duration
}

// NewMatcher builds a matcher. A nil normalizer disables tier 2; a
// non-positive window falls back to 5 minutes.
func NewMatcher(normalizer IDNormalizer, fallbackWindow time.Duration) *Matcher {
	if fallbackWindow <= 0 {
		fallbackWindow = 5 * time.Minute
	}
	return &Matcher{normalizer: normalizer, fallbackWindow: fallbackWindow}
}

// Match applies the tiered strategies in order and stops at the first hit:
// direct identifier equality, normalized identifier variants, then a
// route+direction+time-window scan. Every successful match consumes the
// live identifier for the rest of the pass. A nil result is normal, not an
// error: the departure simply has no live counterpart.
func (m *Matcher) Match(trip *schedule.Trip, stopID string, scheduledAt time.Time, snap *feed.Snapshot, consumed ConsumedSet) (*feed.TripUpdate, MatchTier) {
	if trip == nil || snap == nil {
		return nil, TierNone
	}

	if up, ok := snap.Updates[trip.ID]; ok && !consumed.has(up.TripID) {
		consumed.add(up.TripID)
		return up, TierDirect
	}

	if m.normalizer != nil {
		for _, cand := range m.normalizer.Candidates(trip.ID) {
			if up, ok := snap.Updates[cand]; ok && !consumed.has(up.TripID) {
				consumed.add(up.TripID)
				return up, TierNormalized
			}
		}
	}

	if up := m.fallback(trip, stopID, scheduledAt, snap, consumed); up != nil {
		consumed.add(up.TripID)
		return up, TierFallback
	}
	return nil, TierNone
}

// fallback scans unconsumed updates on the same route and direction for one
// reporting the target stop within the time window, preferring the smallest
// absolute difference. Ties keep the earliest entity in decode order.
func (m *Matcher) fallback(trip *schedule.Trip, stopID string, scheduledAt time.Time, snap *feed.Snapshot, consumed ConsumedSet) *feed.TripUpdate {
	window := int64(m.fallbackWindow / time.Second)
	scheduled := scheduledAt.Unix()

	var best *feed.TripUpdate
	var bestDiff int64
	for _, id := range snap.Order {
		up := snap.Updates[id]
		if consumed.has(up.TripID) {
			continue
		}
		if up.RouteID == "" || up.RouteID != trip.RouteID {
			continue
		}
		if up.Direction >= 0 && trip.Direction >= 0 && up.Direction != trip.Direction {
			continue
		}
		su, ok := up.StopUpdateFor(stopID)
		if !ok {
			continue
		}
		live := su.ArrivalTime
		if live == 0 {
			live = su.DepartureTime
		}
		if live == 0 {
			continue
		}
		diff := live - scheduled
		if diff < 0 {
			diff = -diff
		}
		if diff > window {
			continue
		}
		if best == nil || diff < bestDiff {
			best = up
			bestDiff = diff
		}
	}
	return best
}
