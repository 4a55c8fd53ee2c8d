// Package realtime implements the Realtime Sync Service: the state
// machine that classifies incoming blocks against a local unfinalized
// chain, drives the Bloom Pre-Filter and Log Filter, writes through to the
// Event Store, advances finality, and detects and reconciles reorgs.
package realtime

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	internalcommon "github.com/goran-ethernal/ChainIndexor/internal/common"
	"github.com/goran-ethernal/ChainIndexor/internal/logger"
	"github.com/goran-ethernal/ChainIndexor/internal/metrics"
	"github.com/goran-ethernal/ChainIndexor/pkg/bloom"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
	"github.com/goran-ethernal/ChainIndexor/pkg/config"
	"github.com/goran-ethernal/ChainIndexor/pkg/eventstore"
	"github.com/goran-ethernal/ChainIndexor/pkg/logfilter"
	"github.com/goran-ethernal/ChainIndexor/pkg/queue"
	"github.com/goran-ethernal/ChainIndexor/pkg/realtime"
	"github.com/goran-ethernal/ChainIndexor/pkg/rpc"
	"golang.org/x/sync/errgroup"
)

// blockTaskPriorityBase anchors the MAX-blockNumber priority convention
// for block-specific tasks (gap fills, reorg replays, the setup task): the
// lower the block number, the higher the priority, so the worker always
// makes forward progress from the oldest pending block.
const blockTaskPriorityBase = int64(1) << 62

// latestFetchPriority is the priority given to the poller's "fetch latest
// head" tasks. It outranks every block-specific task so a fresh head check
// is never starved behind an unbounded backlog.
const latestFetchPriority = int64(math.MaxInt64)

// gapFillConcurrency bounds how many missing blocks are fetched in
// parallel while filling a gap.
const gapFillConcurrency = 10

func blockPriority(number uint64) int64 {
	return blockTaskPriorityBase - int64(number) //nolint:gosec
}

// SyncService is the concrete Realtime Sync Service.
type SyncService struct {
	rpc   rpc.EthClient
	store eventstore.Store
	queue queue.Queue
	bus   *realtime.EventBus
	log   *logger.Logger

	chainID            uint64
	network            string
	finalityBlockCount uint64
	pollingInterval    time.Duration

	filters      []resolvedFilter
	bloomFilters []bloom.Filter
	logFilters   []logfilter.Filter

	mu                   sync.Mutex
	chain                localChain
	finalizedBlockNumber uint64

	pollCancel context.CancelFunc
	pollWG     sync.WaitGroup
}

var _ realtime.Service = (*SyncService)(nil)

// New builds a Realtime Sync Service. filters must be non-empty.
func New(
	client rpc.EthClient,
	store eventstore.Store,
	taskQueue queue.Queue,
	bus *realtime.EventBus,
	log *logger.Logger,
	network config.NetworkConfig,
	filterConfigs []config.LogFilterConfig,
) (*SyncService, error) {
	filters, err := resolveFilters(filterConfigs)
	if err != nil {
		return nil, err
	}

	return &SyncService{
		rpc:                client,
		store:              store,
		queue:              taskQueue,
		bus:                bus,
		log:                log,
		chainID:            network.ChainID,
		network:            strconv.FormatUint(network.ChainID, 10),
		finalityBlockCount: network.FinalityBlockCount,
		pollingInterval:    network.PollingInterval.Duration,
		filters:            filters,
		bloomFilters:       bloomFilters(filters),
		logFilters:         logFilters(filters),
	}, nil
}

// Setup implements realtime.Service.
func (s *SyncService) Setup(ctx context.Context) (realtime.SetupResult, error) {
	latest, err := s.rpc.GetBlockByNumber(ctx, gethrpc.LatestBlockNumber, true)
	if err != nil {
		return realtime.SetupResult{}, fmt.Errorf("fetching latest block: %w", err)
	}

	var finalized uint64
	if latest.Number > s.finalityBlockCount {
		finalized = latest.Number - s.finalityBlockCount
	}

	s.mu.Lock()
	s.finalizedBlockNumber = finalized
	s.mu.Unlock()

	block := *latest
	s.queue.AddTask(func(ctx context.Context) error {
		return s.processBlock(ctx, block)
	}, blockPriority(block.Number))

	return realtime.SetupResult{
		LatestBlockNumber:    latest.Number,
		FinalizedBlockNumber: finalized,
	}, nil
}

// Start implements realtime.Service.
func (s *SyncService) Start(ctx context.Context) error {
	if s.configExhausted() {
		s.log.Warnw("all configured log filters are exhausted at or below the finalized block; not starting polling",
			"finalizedBlockNumber", s.finalizedBlockNumberLocked())
		return nil
	}

	s.mu.Lock()
	finalized := s.finalizedBlockNumber
	s.mu.Unlock()

	seed, err := s.rpc.GetBlockByNumber(ctx, gethrpc.BlockNumber(finalized), false) //nolint:gosec
	if err != nil {
		return fmt.Errorf("fetching finalized block %d: %w", finalized, err)
	}

	s.mu.Lock()
	s.chain = localChain{seed.BlockLight}
	s.mu.Unlock()

	s.queue.OnError(func(err error, _ queue.Task) {
		s.log.Errorw("realtime sync task failed", "error", err)
		s.bus.EmitError(realtime.ErrorEvent{Err: err})
	})
	s.queue.Start(ctx)

	pollCtx, cancel := context.WithCancel(ctx)
	s.pollCancel = cancel
	s.pollWG.Add(1)
	go func() {
		defer s.pollWG.Done()
		s.pollLoop(pollCtx)
	}()

	metrics.ComponentHealthSet(internalcommon.ComponentRealtimeSync, true)
	return nil
}

// Kill implements realtime.Service.
func (s *SyncService) Kill() {
	if s.pollCancel != nil {
		s.pollCancel()
	}
	s.pollWG.Wait()
	s.queue.Pause()
	s.queue.Clear()
	metrics.ComponentHealthSet(internalcommon.ComponentRealtimeSync, false)
}

func (s *SyncService) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.queue.AddTask(s.fetchLatestTask(), latestFetchPriority)
		}
	}
}

func (s *SyncService) fetchLatestTask() queue.Task {
	return func(ctx context.Context) error {
		block, err := s.rpc.GetBlockByNumber(ctx, gethrpc.LatestBlockNumber, true)
		if err != nil {
			return fmt.Errorf("fetching latest block: %w", err)
		}
		return s.processBlock(ctx, *block)
	}
}

func (s *SyncService) configExhausted() bool {
	finalized := s.finalizedBlockNumberLocked()
	for _, f := range s.filters {
		if f.EndBlock == nil || *f.EndBlock > finalized {
			return false
		}
	}
	return true
}

func (s *SyncService) finalizedBlockNumberLocked() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizedBlockNumber
}

// processBlock classifies b against the local chain head and dispatches to
// the matching case handler.
func (s *SyncService) processBlock(ctx context.Context, b chain.BlockFull) error {
	s.mu.Lock()
	head := s.chain.head()
	duplicate := s.chain.containsHash(b.Hash)
	s.mu.Unlock()

	switch {
	case duplicate:
		return nil
	case b.Number == head.Number+1 && b.ParentHash == head.Hash:
		return s.extend(ctx, b)
	case b.Number > head.Number+1:
		return s.fill(ctx, head, b)
	default:
		return s.reconcile(ctx, b)
	}
}

// extend appends a new head block (case 2). It pre-screens the block's
// logsBloom before ever fetching its logs.
func (s *SyncService) extend(ctx context.Context, b chain.BlockFull) error {
	if bloom.MightMatch(b.LogsBloom, s.bloomFilters) {
		metrics.BloomPreScreenPassInc(s.network)

		logs, err := s.rpc.GetLogs(ctx, b.Hash)
		if err != nil {
			return fmt.Errorf("fetching logs for block %d: %w", b.Number, err)
		}

		matched := logfilter.Match(logs, s.logFilters)
		if len(matched) > 0 {
			txns := relatedTransactions(b.Transactions, matched)
			if err := s.store.InsertRealtimeBlock(ctx, s.chainID, b, txns, matched); err != nil {
				return fmt.Errorf("inserting realtime block %d: %w", b.Number, err)
			}
			metrics.MatchedLogsAdd(s.network, len(matched))
		}
	} else {
		metrics.BloomPreScreenMissInc(s.network)
	}

	s.mu.Lock()
	s.chain = append(s.chain, b.BlockLight)
	s.mu.Unlock()

	metrics.RealtimeCheckpointInc(s.network, b.Number)
	s.bus.EmitRealtimeCheckpoint(realtime.RealtimeCheckpoint{Timestamp: b.Timestamp})

	return s.maybeAdvanceFinality(ctx, b.Number)
}

// relatedTransactions returns the transactions referenced by at least one
// matched log, preserving b's transaction order.
func relatedTransactions(all []chain.Transaction, matched []chain.Log) []chain.Transaction {
	wanted := make(map[common.Hash]struct{}, len(matched))
	for _, l := range matched {
		wanted[l.TransactionHash] = struct{}{}
	}

	out := make([]chain.Transaction, 0, len(wanted))
	for _, tx := range all {
		if _, ok := wanted[tx.Hash]; ok {
			out = append(out, tx)
		}
	}
	return out
}

// maybeAdvanceFinality advances the finalized block number once the head
// is more than 2*finalityBlockCount ahead of it (spec §4.4.1).
func (s *SyncService) maybeAdvanceFinality(ctx context.Context, headNumber uint64) error {
	s.mu.Lock()
	finalized := s.finalizedBlockNumber
	s.mu.Unlock()

	if headNumber <= finalized+2*s.finalityBlockCount {
		return nil
	}

	newFinalized := finalized + s.finalityBlockCount

	s.mu.Lock()
	target, ok := s.chain.byNumber(newFinalized)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("realtime: invariant violated: local chain missing block %d during finality advance", newFinalized)
	}

	write := eventstore.CachedRangeWrite{
		Filters:           cachedRangeKeys(s.filters),
		StartBlock:        finalized + 1,
		EndBlock:          target.Number,
		EndBlockTimestamp: target.Timestamp,
	}
	if err := s.store.InsertLogFilterCachedRanges(ctx, write); err != nil {
		return fmt.Errorf("caching finalized range: %w", err)
	}

	s.mu.Lock()
	s.chain = s.chain.pruneBelow(target.Number)
	s.finalizedBlockNumber = target.Number
	s.mu.Unlock()

	metrics.FinalityCheckpointInc(s.network, target.Number)
	s.bus.EmitFinalityCheckpoint(realtime.FinalityCheckpoint{Timestamp: target.Timestamp})
	return nil
}

// fill fetches the blocks between the local head and b, then enqueues all
// of them (including b) in ascending-number order (case 3).
func (s *SyncService) fill(ctx context.Context, head chain.BlockLight, b chain.BlockFull) error {
	missingFrom := head.Number + 1
	missingTo := b.Number - 1

	toEnqueue := make([]chain.BlockFull, 0, missingTo-missingFrom+2)
	if missingTo >= missingFrom {
		fetched := make([]chain.BlockFull, missingTo-missingFrom+1)

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(gapFillConcurrency)
		for n := missingFrom; n <= missingTo; n++ {
			n := n
			group.Go(func() error {
				block, err := s.rpc.GetBlockByNumber(groupCtx, gethrpc.BlockNumber(n), true) //nolint:gosec
				if err != nil {
					return fmt.Errorf("fetching gap block %d: %w", n, err)
				}
				fetched[n-missingFrom] = *block
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}
		toEnqueue = append(toEnqueue, fetched...)
		metrics.GapBlocksFetchedAdd(s.network, len(fetched))
	}
	toEnqueue = append(toEnqueue, b)

	for _, blk := range toEnqueue {
		blk := blk
		s.queue.AddTask(func(ctx context.Context) error {
			return s.processBlock(ctx, blk)
		}, blockPriority(blk.Number))
	}
	metrics.QueueDepthSet(s.queue.Size())
	return nil
}

// reconcile walks b's ancestry backwards, looking for a block already
// present in the local chain (case 4). It stops either at a common
// ancestor (shallow reorg) or at the finalized block number (deep reorg).
func (s *SyncService) reconcile(ctx context.Context, b chain.BlockFull) error {
	canonical := []chain.BlockFull{b}
	cursor := b.BlockLight
	var depth uint64

	s.mu.Lock()
	finalized := s.finalizedBlockNumber
	s.mu.Unlock()

	for cursor.Number > finalized {
		s.mu.Lock()
		ancestor, ok := s.chain.byHash(cursor.ParentHash)
		s.mu.Unlock()

		if ok {
			return s.reconcileShallow(ctx, ancestor, canonical, depth+1)
		}

		parent, err := s.rpc.GetBlockByHash(ctx, cursor.ParentHash, true)
		if err != nil {
			return fmt.Errorf("fetching reorg ancestor %s: %w", cursor.ParentHash.Hex(), err)
		}
		canonical = append([]chain.BlockFull{*parent}, canonical...)
		cursor = parent.BlockLight
		depth++
	}

	metrics.DeepReorgInc(s.network, depth)
	s.bus.EmitDeepReorg(realtime.DeepReorg{DetectedAtBlockNumber: b.Number, MinimumDepth: depth})
	return nil
}

func (s *SyncService) reconcileShallow(ctx context.Context, ancestor chain.BlockLight, canonical []chain.BlockFull, depth uint64) error {
	if err := s.store.DeleteRealtimeData(ctx, s.chainID, ancestor.Number+1); err != nil {
		return fmt.Errorf("deleting reorged realtime data from block %d: %w", ancestor.Number+1, err)
	}

	s.mu.Lock()
	s.chain = s.chain.truncateTo(ancestor.Number)
	s.mu.Unlock()

	// Open question: the task queue is cleared before replaying the
	// canonical chain, dropping any stale gap-fill or latest-fetch tasks
	// enqueued against the pre-reorg chain.
	s.queue.Clear()

	for _, blk := range canonical {
		blk := blk
		s.queue.AddTask(func(ctx context.Context) error {
			return s.processBlock(ctx, blk)
		}, blockPriority(blk.Number))
	}
	s.queue.AddTask(s.fetchLatestTask(), latestFetchPriority)
	metrics.QueueDepthSet(s.queue.Size())

	metrics.ShallowReorgInc(s.network, depth)
	s.bus.EmitShallowReorg(realtime.ShallowReorg{CommonAncestorTimestamp: ancestor.Timestamp})
	return nil
}
