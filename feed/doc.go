// Package feed fetches and decodes the GTFS-Realtime trip-update feed and
// caches the decoded snapshot for a fixed freshness window.
//
// Failure degrades, it never propagates: fetch errors retry with backoff,
// then fall back to the previous snapshot, and only ErrNoData reaches a
// caller that has never seen data at all.
package feed
