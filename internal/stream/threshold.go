package stream

// Buffering limits.
const (
	// OutputBufferLimit is the hard ceiling of the record buffer.
	OutputBufferLimit = 32 * 1024
	// MaxFlushThreshold is 90% of OutputBufferLimit.
	MaxFlushThreshold = OutputBufferLimit * 9 / 10
	// InitialFlushThreshold keeps the first flushes small so results show up early.
	InitialFlushThreshold = 1024
	// InitialBatchThreshold is the first record count checkpoint.
	InitialBatchThreshold = 10
	// MaxBatchThreshold caps the record count checkpoint.
	MaxBatchThreshold = 5000
)

// NextThreshold doubles cur, capped at limit. cur must not exceed limit.
func NextThreshold(cur, limit int) int {
	next := cur * 2
	if next > limit || next < cur {
		return limit
	}
	return next
}
