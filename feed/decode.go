package feed

import (
	"fmt"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// Decode unmarshals a GTFS-RT FeedMessage and maps its trip updates into a
// Snapshot. Entities without a trip update or trip identifier are ignored;
// missing optional fields decode to their absent markers rather than zero
// guesses.
func Decode(raw []byte, fetchedAt time.Time) (*Snapshot, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(raw, &fm); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	snap := &Snapshot{
		FetchedAt: fetchedAt,
		Updates:   make(map[string]*TripUpdate, len(fm.Entity)),
	}
	if fm.Header != nil && fm.Header.Timestamp != nil {
		snap.HeaderTimestamp = int64(*fm.Header.Timestamp)
	}

	for _, e := range fm.Entity {
		tu := e.TripUpdate
		if tu == nil || tu.Trip == nil || tu.Trip.TripId == nil {
			continue
		}
		up := &TripUpdate{
			TripID:    *tu.Trip.TripId,
			Direction: -1,
			byStop:    map[string]int{},
		}
		if tu.Trip.RouteId != nil {
			up.RouteID = *tu.Trip.RouteId
		}
		if tu.Trip.DirectionId != nil {
			up.Direction = int(*tu.Trip.DirectionId)
		}
		if tu.Vehicle != nil && tu.Vehicle.Id != nil {
			up.VehicleID = *tu.Vehicle.Id
		}
		if tu.Timestamp != nil {
			up.Timestamp = int64(*tu.Timestamp)
		} else {
			up.Timestamp = snap.HeaderTimestamp
		}

		for _, stu := range tu.StopTimeUpdate {
			su := StopUpdate{StopSequence: -1}
			if stu.StopId != nil {
				su.StopID = *stu.StopId
			}
			if stu.StopSequence != nil {
				su.StopSequence = int(*stu.StopSequence)
			}
			if stu.Arrival != nil {
				if stu.Arrival.Delay != nil {
					d := int(*stu.Arrival.Delay)
					su.ArrivalDelay = &d
				}
				if stu.Arrival.Time != nil {
					su.ArrivalTime = *stu.Arrival.Time
				}
			}
			if stu.Departure != nil {
				if stu.Departure.Delay != nil {
					d := int(*stu.Departure.Delay)
					su.DepartureDelay = &d
				}
				if stu.Departure.Time != nil {
					su.DepartureTime = *stu.Departure.Time
				}
			}
			if stu.ScheduleRelationship != nil {
				switch *stu.ScheduleRelationship {
				case gtfsrtpb.TripUpdate_StopTimeUpdate_SKIPPED:
					su.Relationship = RelSkipped
				case gtfsrtpb.TripUpdate_StopTimeUpdate_NO_DATA:
					su.Relationship = RelNoData
				default:
					su.Relationship = RelScheduled
				}
			}
			if su.StopID != "" {
				up.byStop[su.StopID] = len(up.StopUpdates)
			}
			up.StopUpdates = append(up.StopUpdates, su)
		}

		if _, dup := snap.Updates[up.TripID]; !dup {
			snap.Order = append(snap.Order, up.TripID)
		}
		snap.Updates[up.TripID] = up
	}
	return snap, nil
}
