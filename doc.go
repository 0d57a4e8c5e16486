// Package delaywatch reconciles a static GTFS schedule with a live
// GTFS-Realtime feed to answer, for any stop or route, how late or early
// the next vehicle is right now.
//
// The Engine ties together the schedule store, the cached realtime feed,
// the tiered trip matcher and the rolling quality monitor, and is the only
// surface presentation layers should call.
package delaywatch
