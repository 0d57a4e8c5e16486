// Package quality accumulates reconciled delay observations over a rolling
// window and computes per-route reliability statistics.
package quality
