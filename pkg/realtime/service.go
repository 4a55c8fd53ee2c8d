package realtime

import "context"

// SetupResult is the outcome of Setup: the chain head observed and the
// finalized block number derived from it.
type SetupResult struct {
	LatestBlockNumber    uint64
	FinalizedBlockNumber uint64
}

// Service is the realtime sync core's lifecycle contract.
type Service interface {
	// Setup fetches the current chain head, derives the finalized block
	// number from it, and enqueues the head block for processing. It must
	// be called once, before Start.
	Setup(ctx context.Context) (SetupResult, error)

	// Start seeds the local chain at the finalized block number and begins
	// polling for new blocks at the configured interval. If every
	// configured log filter's endBlock is at or below the finalized block
	// number, Start returns immediately without polling.
	Start(ctx context.Context) error

	// Kill stops polling and drains the task queue without running pending
	// tasks. A task already in flight completes normally.
	Kill()
}
