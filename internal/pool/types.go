package pool

import (
	"context"
	"time"

	"fanout/pkg/types"
)

// item is the mutable per-possibility record. It is owned by the pool
// and mutated only under the pool mutex.
type item struct {
	md     types.PossibilityMetadata
	status types.PossibilityStatus
	result types.PossibilityResult
	err    string
	// cancel aborts the in-flight request; non-nil only while the item
	// holds a loading slot.
	cancel            context.CancelFunc
	loadingStart      time.Time
	estimatedLoadTime time.Duration
	// gen counts dispatches of this item. Task goroutines carry the gen
	// they were started with so a stale goroutine from a cancelled
	// dispatch cannot touch a later one after a retry.
	gen int
}

func (it *item) active() bool {
	return it.status == types.StatusLoading || it.status == types.StatusStreaming
}

// Snapshot is a read-only copy of one item, safe to hand out.
type Snapshot struct {
	Metadata          types.PossibilityMetadata
	Status            types.PossibilityStatus
	Result            types.PossibilityResult
	Err               string
	EstimatedLoadTime time.Duration
}

func (it *item) snapshot() Snapshot {
	s := Snapshot{
		Metadata:          it.md,
		Status:            it.status,
		Result:            it.result,
		Err:               it.err,
		EstimatedLoadTime: it.estimatedLoadTime,
	}
	// The logprob slice is mutated in place while streaming; copy it.
	if len(it.result.Logprobs) > 0 {
		s.Result.Logprobs = append([]types.TokenLogprob(nil), it.result.Logprobs...)
	}
	return s
}

// CompletedPossibility pairs a finished result with its metadata.
type CompletedPossibility struct {
	Metadata types.PossibilityMetadata
	Result   types.PossibilityResult
}
