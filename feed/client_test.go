package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetchSnapshot(t *testing.T) {
	raw := marshalFeed(t, &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: strPtr("2.0"),
			Timestamp:           u64Ptr(1761000000),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: strPtr("1"),
				TripUpdate: &gtfsrtpb.TripUpdate{
					Trip: &gtfsrtpb.TripDescriptor{TripId: strPtr("T1")},
				},
			},
		},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 5*time.Second)
	snap, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	assert.Contains(t, snap.Updates, "T1")
}

func TestClientFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 5*time.Second)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClientFetchSnapshotDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>service unavailable</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, 5*time.Second)
	_, err := c.FetchSnapshot(context.Background())
	require.Error(t, err, "a corrupt feed body is a fetch failure")
}

func TestClientContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(srv.URL, time.Second, 5*time.Second)
	_, err := c.Fetch(ctx)
	require.Error(t, err)
}
