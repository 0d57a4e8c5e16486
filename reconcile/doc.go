// Package reconcile matches statically scheduled departures against live
// trip updates and derives delay records.
//
// The matcher is an approximate join under identifier noise: direct id
// equality first, then vendor-prefix normalization, then a
// route+direction+time-window scan, with a per-pass consumed set so one
// live vehicle never explains two scheduled departures. "No live data" is a
// normal outcome, never an error.
package reconcile
