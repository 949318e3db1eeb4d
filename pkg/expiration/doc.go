// Package expiration converts scheduler priorities into expiration times.
//
// An expiration time is a deadline encoded so that larger values mean higher
// priority: Sync is the largest representable value, Never the smallest
// non-zero one. Interactive and normal updates are rounded up into coarse
// buckets so that updates issued close together share one expiration time
// and commit in the same batch.
//
// # Units
//
// Expiration times count 10ms units backwards from a fixed offset, so a
// later wall-clock deadline produces a smaller Time. MsToTime and ToMs
// convert between the two.
package expiration
