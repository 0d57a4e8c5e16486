package reconcile

import (
	"sort"
	"time"

	"github.com/openmobility/delaywatch/feed"
	"github.com/openmobility/delaywatch/schedule"
)

// Reconciler drives the matcher across all scheduled departures for a stop
// or route within a lookahead horizon. It holds no mutable state between
// calls; the consumed set is freshly allocated at the start of every pass.
type Reconciler struct {
	store   *schedule.Store
	matcher *Matcher
	horizon time.Duration
	grace   time.Duration
}

// NewReconciler builds a reconciler. Non-positive horizon/grace fall back
// to 40 minutes and 2 minutes.
func NewReconciler(store *schedule.Store, matcher *Matcher, horizon, grace time.Duration) *Reconciler {
	if horizon <= 0 {
		horizon = 40 * time.Minute
	}
	if grace < 0 {
		grace = 2 * time.Minute
	}
	if grace == 0 {
		grace = 2 * time.Minute
	}
	return &Reconciler{store: store, matcher: matcher, horizon: horizon, grace: grace}
}

// ReconcileStop produces delay records for every scheduled departure at the
// stop between now minus the grace window and now plus the horizon. An
// unknown stop yields an empty slice; that is a normal query outcome.
func (r *Reconciler) ReconcileStop(stopID string, now time.Time, snap *feed.Snapshot) []DelayInfo {
	out := []DelayInfo{}
	consumed := ConsumedSet{}
	seen := map[string]struct{}{}
	for _, occ := range r.departuresAt(stopID, now) {
		info, ok := r.reconcileDeparture(occ, now, snap, consumed)
		if !ok {
			continue
		}
		key := info.RouteID + "|" + info.Predicted.Format("15:04")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, info)
	}
	sortByEffectiveTime(out)
	return out
}

// ReconcileRoute reconciles every stop served by the route (optionally one
// direction) within the horizon. Each stop gets its own consumed set, so a
// live vehicle explains at most one departure per stop but still surfaces at
// every stop it serves.
func (r *Reconciler) ReconcileRoute(routeID string, direction int, now time.Time, snap *feed.Snapshot) map[string][]DelayInfo {
	windowStart := now.Add(-r.grace)
	windowEnd := now.Add(r.horizon)

	byStop := map[string][]occurrence{}
	for _, trip := range r.store.TripsForRoute(routeID, direction) {
		for _, st := range trip.StopTimes {
			for _, day := range serviceDays(st, now) {
				scheduledAt := st.DepartureAt(day)
				if scheduledAt.Before(windowStart) || scheduledAt.After(windowEnd) {
					continue
				}
				if !r.serviceRuns(trip, day) {
					continue
				}
				byStop[st.StopID] = append(byStop[st.StopID], occurrence{trip: trip, st: st, at: scheduledAt})
			}
		}
	}

	out := map[string][]DelayInfo{}
	for stopID, occs := range byStop {
		sort.Slice(occs, func(i, j int) bool { return occs[i].at.Before(occs[j].at) })
		consumed := ConsumedSet{}
		seen := map[string]struct{}{}
		infos := []DelayInfo{}
		for _, occ := range occs {
			info, ok := r.reconcileDeparture(occ, now, snap, consumed)
			if !ok {
				continue
			}
			key := info.RouteID + "|" + info.Predicted.Format("15:04")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			infos = append(infos, info)
		}
		sortByEffectiveTime(infos)
		out[stopID] = infos
	}
	return out
}

// occurrence is one scheduled departure resolved to a concrete wall-clock
// time on a service day.
type occurrence struct {
	trip *schedule.Trip
	st   schedule.StopTime
	at   time.Time
}

// departuresAt enumerates the stop's scheduled departures inside the
// window, resolving cross-midnight stop times against the previous service
// day as well.
func (r *Reconciler) departuresAt(stopID string, now time.Time) []occurrence {
	windowStart := now.Add(-r.grace)
	windowEnd := now.Add(r.horizon)
	var occs []occurrence
	for _, st := range r.store.DeparturesForStop(stopID) {
		trip, ok := r.store.Trip(st.TripID)
		if !ok {
			continue
		}
		for _, day := range serviceDays(st, now) {
			at := st.DepartureAt(day)
			if at.Before(windowStart) || at.After(windowEnd) {
				continue
			}
			if !r.serviceRuns(trip, day) {
				continue
			}
			occs = append(occs, occurrence{trip: trip, st: st, at: at})
		}
	}
	sort.Slice(occs, func(i, j int) bool { return occs[i].at.Before(occs[j].at) })
	return occs
}

// serviceDays returns the candidate service days for a stop time relative
// to now. A raw time past 24:00 belongs to the previous service day when it
// surfaces after midnight, so both days are tried for those.
func serviceDays(st schedule.StopTime, now time.Time) []time.Time {
	today := schedule.ServiceDayStart(now)
	if st.DepartureSec >= 86400 {
		return []time.Time{today.AddDate(0, 0, -1), today}
	}
	return []time.Time{today}
}

func (r *Reconciler) serviceRuns(trip *schedule.Trip, day time.Time) bool {
	if trip.ServiceID == "" {
		return true
	}
	svc := r.store.Service(trip.ServiceID)
	if svc == nil {
		return true // calendar not loaded, assume running
	}
	return svc.RunsOn(day)
}

func (r *Reconciler) reconcileDeparture(occ occurrence, now time.Time, snap *feed.Snapshot, consumed ConsumedSet) (DelayInfo, bool) {
	trip := occ.trip
	info := DelayInfo{
		StopID:     occ.st.StopID,
		TripID:     trip.ID,
		RouteID:    trip.RouteID,
		Headsign:   r.store.DirectionLabel(trip.ID),
		Scheduled:  occ.at,
		Predicted:  occ.at,
		Status:     StatusNoData,
		ObservedAt: now,
	}
	if stop, ok := r.store.Stop(occ.st.StopID); ok {
		info.StopName = stop.Name
	}
	if route, ok := r.store.Route(trip.RouteID); ok {
		info.RouteName = route.ShortName
		if info.RouteName == "" {
			info.RouteName = route.LongName
		}
	}
	if info.RouteName == "" {
		info.RouteName = trip.RouteID
	}

	up, tier := r.matcher.Match(trip, occ.st.StopID, occ.at, snap, consumed)
	info.Tier = tier
	if up == nil {
		return info, true
	}
	info.LiveTripID = up.TripID

	su, ok := up.StopUpdateFor(occ.st.StopID)
	if !ok {
		return info, true // matched trip reports nothing for this stop
	}
	switch su.Relationship {
	case feed.RelSkipped:
		info.Status = StatusSkipped
		return info, true
	case feed.RelNoData:
		return info, true
	}

	delay, ok := delayFor(su, occ.at)
	if !ok {
		return info, true
	}
	info.DelaySeconds = delay
	info.Predicted = occ.at.Add(time.Duration(delay) * time.Second)
	info.Status = StatusForDelay(delay)
	return info, true
}

// delayFor extracts the delay in seconds for a stop update, preferring the
// explicit delay fields, then deriving from absolute epoch times.
func delayFor(su *feed.StopUpdate, scheduledAt time.Time) (int, bool) {
	if su.ArrivalDelay != nil {
		return *su.ArrivalDelay, true
	}
	if su.DepartureDelay != nil {
		return *su.DepartureDelay, true
	}
	if su.ArrivalTime > 0 {
		return int(su.ArrivalTime - scheduledAt.Unix()), true
	}
	if su.DepartureTime > 0 {
		return int(su.DepartureTime - scheduledAt.Unix()), true
	}
	return 0, false
}

func sortByEffectiveTime(infos []DelayInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Predicted.Equal(infos[j].Predicted) {
			return infos[i].Predicted.Before(infos[j].Predicted)
		}
		return infos[i].TripID < infos[j].TripID
	})
}
