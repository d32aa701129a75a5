package shs

import "go.uber.org/zap"

type options struct {
	segmentCount      uint32
	bloomFP           float64
	bloomCapacityHint uint64
	logger            *zap.Logger
}

func defaultOptions() options {
	return options{
		segmentCount:      DefaultSegmentCount,
		bloomFP:           DefaultBloomFP,
		bloomCapacityHint: DefaultBloomCapacityHint,
		logger:            zap.NewNop(),
	}
}

// Option configures Open.
//
// WithSegmentCount and the Bloom sizing options (WithBloomFP,
// WithBloomCapacityHint) only take effect when creating a new store.
// Opening an existing store adopts its header's segment_count and reserved
// Bloom capacity instead, per the on-disk format. WithBloomFP and
// WithBloomCapacityHint still matter on reopen, though: they're the only
// inputs to the fixed Bloom hash count k, which isn't persisted on disk (see
// bloom.K). Passing different values across opens of the same file risks
// false negatives for keys added under the old k.
type Option func(*options)

// WithSegmentCount sets the bucket table's segment count for a new store.
func WithSegmentCount(n uint32) Option {
	return func(o *options) { o.segmentCount = n }
}

// WithBloomFP sets the target Bloom false-positive rate for a new store.
func WithBloomFP(p float64) Option {
	return func(o *options) { o.bloomFP = p }
}

// WithBloomCapacityHint sets the item-count hint used to size the Bloom
// filter's reserved on-disk capacity for a new store.
func WithBloomCapacityHint(n uint64) Option {
	return func(o *options) { o.bloomCapacityHint = n }
}

// WithLogger attaches a zap logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
