package reconcile

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmobility/delaywatch/feed"
	"github.com/openmobility/delaywatch/schedule"
)

// Monday inside the WEEK service range.
var testNow = time.Date(2025, 3, 10, 8, 20, 0, 0, time.UTC)

func testStore(t *testing.T) *schedule.Store {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("stops.txt",
		"stop_id,stop_name,stop_lat,stop_lon\n"+
			"S1,Central Station,59.911,10.753\n"+
			"S2,Harbor,59.905,10.745\n"+
			"S3,East End,59.915,10.790\n")
	write("routes.txt",
		"route_id,route_short_name,route_long_name,route_type\n"+
			"R1,12,Ring Line,0\n"+
			"R2,7,Harbor Line,3\n")
	write("trips.txt",
		"route_id,service_id,trip_id,trip_headsign,direction_id\n"+
			"R1,WEEK,T1,Central,0\n"+
			"R2,WEEK,T2,Harbor,0\n"+
			"R2,WEEK,T2X,Harbor,0\n"+
			"R1,SAT,TSAT,Central,0\n"+
			"R1,WEEK,TNIGHT,Central,0\n")
	write("stop_times.txt",
		"trip_id,arrival_time,departure_time,stop_id,stop_sequence\n"+
			"T1,08:25:00,08:25:00,S2,1\n"+
			"T1,08:30:00,08:30:00,S1,2\n"+
			"T1,08:40:00,08:40:00,S3,3\n"+
			"T2,08:35:00,08:35:00,S1,1\n"+
			"T2,08:50:00,08:50:00,S3,2\n"+
			"T2X,08:45:00,08:45:00,S1,1\n"+
			"TSAT,08:32:00,08:32:00,S1,1\n"+
			"TNIGHT,24:30:00,24:30:00,S1,1\n")
	write("calendar.txt",
		"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n"+
			"WEEK,1,1,1,1,1,0,0,20250101,20251231\n"+
			"SAT,0,0,0,0,0,1,0,20250101,20251231\n")

	store, _, err := schedule.Load(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func testReconciler(t *testing.T) *Reconciler {
	t.Helper()
	m := NewMatcher(DirectionalPrefixes("0#", "1#"), 5*time.Minute)
	return NewReconciler(testStore(t), m, 40*time.Minute, 2*time.Minute)
}

func delayPtr(v int) *int { return &v }

func findByTrip(t *testing.T, infos []DelayInfo, tripID string) DelayInfo {
	t.Helper()
	for _, info := range infos {
		if info.TripID == tripID {
			return info
		}
	}
	t.Fatalf("no record for trip %s in %+v", tripID, infos)
	return DelayInfo{}
}

func TestReconcileStopNormalizedDelay(t *testing.T) {
	r := testReconciler(t)
	// The static T1 surfaces live as "1#T1", running three minutes late.
	snap := snapshotOf(&feed.TripUpdate{
		TripID: "1#T1", RouteID: "R1", Direction: 0,
		StopUpdates: []feed.StopUpdate{
			{StopID: "S1", StopSequence: -1, ArrivalDelay: delayPtr(180)},
		},
	})

	infos := r.ReconcileStop("S1", testNow, snap)
	info := findByTrip(t, infos, "T1")

	assert.Equal(t, StatusDelayed, info.Status)
	assert.Equal(t, 180, info.DelaySeconds)
	assert.Equal(t, "1#T1", info.LiveTripID)
	assert.Equal(t, TierNormalized, info.Tier)
	assert.Equal(t, "12", info.RouteName)
	assert.Equal(t, "Central", info.Headsign)
	assert.Equal(t, "Central Station", info.StopName)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC), info.Scheduled)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 33, 0, 0, time.UTC), info.Predicted)
}

func TestReconcileStopFallbackOnTime(t *testing.T) {
	r := testReconciler(t)
	// A live trip with an unrelatable identifier on T2's route, about a
	// minute behind the 08:35 departure.
	scheduled := time.Date(2025, 3, 10, 8, 35, 0, 0, time.UTC)
	snap := snapshotOf(&feed.TripUpdate{
		TripID: "veh-4711", RouteID: "R2", Direction: 0,
		StopUpdates: []feed.StopUpdate{
			{StopID: "S1", StopSequence: -1, ArrivalTime: scheduled.Unix() + 60},
		},
	})

	infos := r.ReconcileStop("S1", testNow, snap)
	info := findByTrip(t, infos, "T2")

	assert.Equal(t, StatusOnTime, info.Status, "60s is inside the tolerance")
	assert.Equal(t, 60, info.DelaySeconds)
	assert.Equal(t, "veh-4711", info.LiveTripID)
	assert.Equal(t, TierFallback, info.Tier)
}

func TestReconcileStopStatusBoundaries(t *testing.T) {
	tests := []struct {
		delay int
		want  Status
	}{
		{0, StatusOnTime},
		{60, StatusOnTime},
		{61, StatusDelayed},
		{-60, StatusOnTime},
		{-61, StatusEarly},
	}
	for _, tt := range tests {
		r := testReconciler(t)
		snap := snapshotOf(&feed.TripUpdate{
			TripID: "T1", RouteID: "R1", Direction: 0,
			StopUpdates: []feed.StopUpdate{
				{StopID: "S1", StopSequence: -1, ArrivalDelay: delayPtr(tt.delay)},
			},
		})
		info := findByTrip(t, r.ReconcileStop("S1", testNow, snap), "T1")
		assert.Equal(t, tt.want, info.Status, "delay=%d", tt.delay)
		assert.Equal(t, tt.delay, info.DelaySeconds)
	}
}

func TestReconcileStopNoLiveData(t *testing.T) {
	r := testReconciler(t)

	infos := r.ReconcileStop("S1", testNow, feed.Empty(testNow))
	require.NotEmpty(t, infos)
	for _, info := range infos {
		assert.Equal(t, StatusNoData, info.Status)
		assert.Equal(t, info.Scheduled, info.Predicted, "without data the schedule stands")
		assert.Empty(t, info.LiveTripID)
		assert.False(t, info.HasLiveData())
	}
}

func TestReconcileStopSkipped(t *testing.T) {
	r := testReconciler(t)
	snap := snapshotOf(&feed.TripUpdate{
		TripID: "T1", RouteID: "R1", Direction: 0,
		StopUpdates: []feed.StopUpdate{
			{StopID: "S1", StopSequence: -1, Relationship: feed.RelSkipped},
		},
	})

	info := findByTrip(t, r.ReconcileStop("S1", testNow, snap), "T1")
	assert.Equal(t, StatusSkipped, info.Status)
	assert.False(t, info.HasLiveData())
}

func TestReconcileStopHorizonAndGrace(t *testing.T) {
	r := testReconciler(t)
	snap := feed.Empty(testNow)

	// At 08:20 the 08:25..09:00 band is in scope at S1: T1 (08:30), T2
	// (08:35), T2X (08:45). TSAT does not run on a Monday.
	infos := r.ReconcileStop("S1", testNow, snap)
	trips := make([]string, 0, len(infos))
	for _, info := range infos {
		trips = append(trips, info.TripID)
	}
	assert.ElementsMatch(t, []string{"T1", "T2", "T2X"}, trips)

	// Moving past 08:32 drops T1 out of the grace window.
	later := time.Date(2025, 3, 10, 8, 33, 0, 0, time.UTC)
	infos = r.ReconcileStop("S1", later, snap)
	for _, info := range infos {
		assert.NotEqual(t, "T1", info.TripID)
	}
}

func TestReconcileStopUnknownStop(t *testing.T) {
	r := testReconciler(t)
	infos := r.ReconcileStop("NOPE", testNow, feed.Empty(testNow))
	require.NotNil(t, infos)
	assert.Empty(t, infos)
}

func TestReconcileStopOrderedByPredicted(t *testing.T) {
	r := testReconciler(t)
	// T1 slips behind T2: predicted order must follow the live times.
	snap := snapshotOf(&feed.TripUpdate{
		TripID: "T1", RouteID: "R1", Direction: 0,
		StopUpdates: []feed.StopUpdate{
			{StopID: "S1", StopSequence: -1, ArrivalDelay: delayPtr(600)},
		},
	})

	infos := r.ReconcileStop("S1", testNow, snap)
	require.GreaterOrEqual(t, len(infos), 2)
	for i := 1; i < len(infos); i++ {
		assert.False(t, infos[i].Predicted.Before(infos[i-1].Predicted))
	}
	pos := map[string]int{}
	for i, info := range infos {
		pos[info.TripID] = i
	}
	assert.Greater(t, pos["T1"], pos["T2"], "T1 slipped behind T2's departure")
}

func TestReconcileStopCrossMidnight(t *testing.T) {
	r := testReconciler(t)
	// 24:30 on Monday's schedule is 00:30 on Tuesday's clock.
	after := time.Date(2025, 3, 11, 0, 25, 0, 0, time.UTC)
	infos := r.ReconcileStop("S1", after, feed.Empty(after))
	info := findByTrip(t, infos, "TNIGHT")
	assert.Equal(t, time.Date(2025, 3, 11, 0, 30, 0, 0, time.UTC), info.Scheduled)
}

func TestReconcileStopDedupe(t *testing.T) {
	r := testReconciler(t)
	// T2 and T2X both pushed onto the same route and predicted minute
	// collapse into one record.
	snap := snapshotOf(
		&feed.TripUpdate{TripID: "T2", RouteID: "R2", Direction: 0,
			StopUpdates: []feed.StopUpdate{
				{StopID: "S1", StopSequence: -1, ArrivalDelay: delayPtr(600)}}},
		&feed.TripUpdate{TripID: "T2X", RouteID: "R2", Direction: 0,
			StopUpdates: []feed.StopUpdate{
				{StopID: "S1", StopSequence: -1, ArrivalDelay: delayPtr(0)}}},
	)

	infos := r.ReconcileStop("S1", testNow, snap)
	// Both land at 08:45: T2 08:35+600s and T2X 08:45 on time.
	count := 0
	for _, info := range infos {
		if info.RouteID == "R2" && info.Predicted.Format("15:04") == "08:45" {
			count++
		}
	}
	assert.Equal(t, 1, count, "same route and predicted minute reported once")
}

func TestReconcileRoute(t *testing.T) {
	r := testReconciler(t)
	snap := snapshotOf(&feed.TripUpdate{
		TripID: "T1", RouteID: "R1", Direction: 0,
		StopUpdates: []feed.StopUpdate{
			{StopID: "S1", StopSequence: -1, ArrivalDelay: delayPtr(120)},
			{StopID: "S3", StopSequence: -1, ArrivalDelay: delayPtr(90)},
		},
	})

	byStop := r.ReconcileRoute("R1", 0, testNow, snap)
	require.Contains(t, byStop, "S1")
	require.Contains(t, byStop, "S3")

	s1 := findByTrip(t, byStop["S1"], "T1")
	assert.Equal(t, StatusDelayed, s1.Status)
	assert.Equal(t, 120, s1.DelaySeconds)

	s3 := findByTrip(t, byStop["S3"], "T1")
	assert.Equal(t, StatusDelayed, s3.Status)
	assert.Equal(t, 90, s3.DelaySeconds)
}

func TestReconcileRouteUnknownRoute(t *testing.T) {
	r := testReconciler(t)
	byStop := r.ReconcileRoute("NOPE", schedule.DirectionUnknown, testNow, feed.Empty(testNow))
	assert.Empty(t, byStop)
}
