package feed

import (
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func strPtr(s string) *string { return &s }
func u32Ptr(v uint32) *uint32 { return &v }
func u64Ptr(v uint64) *uint64 { return &v }
func i32Ptr(v int32) *int32   { return &v }
func i64Ptr(v int64) *int64   { return &v }

func marshalFeed(t *testing.T, fm *gtfsrtpb.FeedMessage) []byte {
	t.Helper()
	raw, err := proto.Marshal(fm)
	require.NoError(t, err)
	return raw
}

func TestDecode(t *testing.T) {
	skipped := gtfsrtpb.TripUpdate_StopTimeUpdate_SKIPPED
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: strPtr("2.0"),
			Timestamp:           u64Ptr(1761000000),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: strPtr("1"),
				TripUpdate: &gtfsrtpb.TripUpdate{
					Trip: &gtfsrtpb.TripDescriptor{
						TripId:      strPtr("1#T1"),
						RouteId:     strPtr("R1"),
						DirectionId: u32Ptr(0),
					},
					Vehicle:   &gtfsrtpb.VehicleDescriptor{Id: strPtr("V42")},
					Timestamp: u64Ptr(1761000010),
					StopTimeUpdate: []*gtfsrtpb.TripUpdate_StopTimeUpdate{
						{
							StopId:       strPtr("S1"),
							StopSequence: u32Ptr(2),
							Arrival: &gtfsrtpb.TripUpdate_StopTimeEvent{
								Delay: i32Ptr(180),
								Time:  i64Ptr(1761000180),
							},
						},
						{
							StopId:               strPtr("S2"),
							ScheduleRelationship: &skipped,
						},
					},
				},
			},
			{
				Id: strPtr("2"),
				TripUpdate: &gtfsrtpb.TripUpdate{
					Trip: &gtfsrtpb.TripDescriptor{TripId: strPtr("T2")},
				},
			},
			{Id: strPtr("3")}, // no trip update, ignored
		},
	}

	at := time.Unix(1761000030, 0)
	snap, err := Decode(marshalFeed(t, fm), at)
	require.NoError(t, err)

	assert.Equal(t, at, snap.FetchedAt)
	assert.Equal(t, int64(1761000000), snap.HeaderTimestamp)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, []string{"1#T1", "T2"}, snap.Order)

	up := snap.Updates["1#T1"]
	require.NotNil(t, up)
	assert.Equal(t, "R1", up.RouteID)
	assert.Equal(t, 0, up.Direction)
	assert.Equal(t, "V42", up.VehicleID)
	assert.Equal(t, int64(1761000010), up.Timestamp)

	su, ok := up.StopUpdateFor("S1")
	require.True(t, ok)
	assert.Equal(t, 2, su.StopSequence)
	require.NotNil(t, su.ArrivalDelay)
	assert.Equal(t, 180, *su.ArrivalDelay)
	assert.Equal(t, int64(1761000180), su.ArrivalTime)
	assert.Equal(t, RelScheduled, su.Relationship)

	su2, ok := up.StopUpdateFor("S2")
	require.True(t, ok)
	assert.Equal(t, RelSkipped, su2.Relationship)
	assert.Equal(t, -1, su2.StopSequence, "absent sequence decodes to -1")
	assert.Nil(t, su2.ArrivalDelay)

	_, ok = up.StopUpdateFor("S9")
	assert.False(t, ok)

	// Entity without its own timestamp inherits the header's.
	up2 := snap.Updates["T2"]
	require.NotNil(t, up2)
	assert.Equal(t, int64(1761000000), up2.Timestamp)
	assert.Equal(t, -1, up2.Direction, "absent direction decodes to -1")
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xfe, 0x01, 0x07}, time.Now())
	require.Error(t, err)
}

func TestEmptySnapshot(t *testing.T) {
	snap := Empty(time.Unix(100, 0))
	assert.Equal(t, 0, snap.Len())
	var nilSnap *Snapshot
	assert.Equal(t, 0, nilSnap.Len())
}
