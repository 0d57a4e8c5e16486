package schedule

import "sort"

// Store is the immutable in-memory index over the static schedule. It is
// built once at startup; after build no method mutates it, so concurrent
// readers need no locking.
type Store struct {
	stops    map[string]*Stop
	routes   map[string]*Route
	trips    map[string]*Trip
	services map[string]*Service

	rawStopTimes []StopTime // loader scratch, joined into trips by build

	stopTimesByStop map[string][]StopTime
	lastStopOfTrip  map[string]*Stop
	tripsByRoute    map[string][]*Trip
}

func newStore() *Store {
	return &Store{
		stops:           map[string]*Stop{},
		routes:          map[string]*Route{},
		trips:           map[string]*Trip{},
		services:        map[string]*Service{},
		stopTimesByStop: map[string][]StopTime{},
		lastStopOfTrip:  map[string]*Stop{},
		tripsByRoute:    map[string][]*Trip{},
	}
}

func (s *Store) serviceFor(id string) *Service {
	svc, ok := s.services[id]
	if !ok {
		svc = &Service{ID: id, Added: map[string]bool{}, Removed: map[string]bool{}}
		s.services[id] = svc
	}
	return svc
}

// build joins stop times onto trips, orders them by sequence and derives the
// per-stop and terminal-stop indexes.
func (s *Store) build() {
	for _, st := range s.rawStopTimes {
		trip, ok := s.trips[st.TripID]
		if !ok {
			continue // stop time for an unknown trip, drop it
		}
		trip.StopTimes = append(trip.StopTimes, st)
		s.stopTimesByStop[st.StopID] = append(s.stopTimesByStop[st.StopID], st)
	}
	s.rawStopTimes = nil

	for _, trip := range s.trips {
		sort.Slice(trip.StopTimes, func(i, j int) bool {
			return trip.StopTimes[i].Sequence < trip.StopTimes[j].Sequence
		})
		if n := len(trip.StopTimes); n > 0 {
			if stop, ok := s.stops[trip.StopTimes[n-1].StopID]; ok {
				s.lastStopOfTrip[trip.ID] = stop
			}
		}
		s.tripsByRoute[trip.RouteID] = append(s.tripsByRoute[trip.RouteID], trip)
	}

	for stopID := range s.stopTimesByStop {
		sts := s.stopTimesByStop[stopID]
		sort.Slice(sts, func(i, j int) bool {
			if sts[i].DepartureSec != sts[j].DepartureSec {
				return sts[i].DepartureSec < sts[j].DepartureSec
			}
			return sts[i].TripID < sts[j].TripID
		})
	}
	for routeID := range s.tripsByRoute {
		trips := s.tripsByRoute[routeID]
		sort.Slice(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })
	}
}

// Stop returns the stop with the given identifier.
func (s *Store) Stop(id string) (*Stop, bool) {
	st, ok := s.stops[id]
	return st, ok
}

// Route returns the route with the given identifier.
func (s *Store) Route(id string) (*Route, bool) {
	r, ok := s.routes[id]
	return r, ok
}

// Trip returns the trip with the given identifier.
func (s *Store) Trip(id string) (*Trip, bool) {
	t, ok := s.trips[id]
	return t, ok
}

// Service returns the service calendar for the given identifier, or nil.
func (s *Store) Service(id string) *Service {
	return s.services[id]
}

// DeparturesForStop returns all stop times calling at the stop, ordered by
// departure time. The returned slice must not be mutated.
func (s *Store) DeparturesForStop(stopID string) []StopTime {
	return s.stopTimesByStop[stopID]
}

// LastStop returns the terminal stop of a trip: the stop time with the
// maximum sequence.
func (s *Store) LastStop(tripID string) (*Stop, bool) {
	st, ok := s.lastStopOfTrip[tripID]
	return st, ok
}

// DirectionLabel is the destination display text for a trip: its headsign,
// or the terminal stop name when the headsign is blank.
func (s *Store) DirectionLabel(tripID string) string {
	trip, ok := s.trips[tripID]
	if !ok {
		return ""
	}
	if trip.Headsign != "" {
		return trip.Headsign
	}
	if last, ok := s.lastStopOfTrip[tripID]; ok {
		return last.Name
	}
	return ""
}

// TripsForRoute returns the trips of a route, optionally filtered by
// direction. Pass DirectionUnknown to get both directions.
func (s *Store) TripsForRoute(routeID string, direction int) []*Trip {
	trips := s.tripsByRoute[routeID]
	if direction == DirectionUnknown {
		return trips
	}
	out := make([]*Trip, 0, len(trips))
	for _, t := range trips {
		if t.Direction == direction {
			out = append(out, t)
		}
	}
	return out
}

// StopCount and friends surface index sizes for health reporting.
func (s *Store) StopCount() int  { return len(s.stops) }
func (s *Store) RouteCount() int { return len(s.routes) }
func (s *Store) TripCount() int  { return len(s.trips) }
