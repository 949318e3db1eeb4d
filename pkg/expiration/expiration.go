package expiration

import (
	"strconv"
	"time"

	"github.com/vango-dev/fiber/pkg/scheduler"
)

// Time is an expiration time. Larger values are due sooner.
type Time int

const (
	// NoWork means nothing is pending.
	NoWork Time = 0

	// Never is used for offscreen and idle work that may be deferred forever.
	Never Time = 1

	// Idle is the lowest priority that still eventually runs.
	Idle Time = 2

	// Sync is the maximal expiration time. It is never bucketed or deferred.
	Sync Time = 1<<30 - 1

	// Batched sits just below Sync and is used for batched legacy updates.
	Batched Time = Sync - 1
)

const (
	unitSizeMs        = 10
	magicNumberOffset = Batched - 1
)

// Bucket parameters, in milliseconds.
const (
	LowPriorityExpirationMs  = 5000
	LowPriorityBatchSizeMs   = 250
	HighPriorityExpirationMs = 150
	HighPriorityBatchSizeMs  = 100
	SuspenseBatchSizeMs      = 250
)

// String returns a readable form of the well-known sentinels.
func (t Time) String() string {
	switch t {
	case NoWork:
		return "NoWork"
	case Never:
		return "Never"
	case Idle:
		return "Idle"
	case Sync:
		return "Sync"
	case Batched:
		return "Batched"
	default:
		return "T" + strconv.Itoa(int(t))
	}
}

// MsToTime converts a millisecond timestamp into an expiration time.
// Always adds an offset so that we don't clash with NoWork.
func MsToTime(ms int64) Time {
	return magicNumberOffset - Time(ms/unitSizeMs)
}

// FromDuration converts a scheduler timestamp into an expiration time.
func FromDuration(d time.Duration) Time {
	return MsToTime(d.Milliseconds())
}

// ToMs converts an expiration time back into a millisecond timestamp.
func ToMs(t Time) int64 {
	return int64(magicNumberOffset-t) * unitSizeMs
}

func ceiling(num, precision int64) int64 {
	return (num/precision + 1) * precision
}

func computeBucket(currentTime Time, expirationMs, bucketSizeMs int64) Time {
	return magicNumberOffset - Time(ceiling(
		int64(magicNumberOffset-currentTime)+expirationMs/unitSizeMs,
		bucketSizeMs/unitSizeMs,
	))
}

// ComputeAsync returns the expiration time for normal and low priority work.
func ComputeAsync(currentTime Time) Time {
	return computeBucket(currentTime, LowPriorityExpirationMs, LowPriorityBatchSizeMs)
}

// ComputeInteractive returns the expiration time for user-blocking work.
func ComputeInteractive(currentTime Time) Time {
	return computeBucket(currentTime, HighPriorityExpirationMs, HighPriorityBatchSizeMs)
}

// ComputeSuspense returns the expiration time for an update that carries a
// suspense timeout.
func ComputeSuspense(currentTime Time, timeout time.Duration) Time {
	return computeBucket(currentTime, timeout.Milliseconds(), SuspenseBatchSizeMs)
}

// InferPriority maps an expiration time back onto the scheduler priority that
// would have produced it at currentTime.
func InferPriority(currentTime, t Time) scheduler.Priority {
	if t == Sync {
		return scheduler.ImmediatePriority
	}
	if t == Never || t == Idle {
		return scheduler.IdlePriority
	}
	msUntil := ToMs(t) - ToMs(currentTime)
	if msUntil <= 0 {
		return scheduler.ImmediatePriority
	}
	if msUntil <= HighPriorityExpirationMs+HighPriorityBatchSizeMs {
		return scheduler.UserBlockingPriority
	}
	if msUntil <= LowPriorityExpirationMs+LowPriorityBatchSizeMs {
		return scheduler.NormalPriority
	}
	return scheduler.IdlePriority
}
