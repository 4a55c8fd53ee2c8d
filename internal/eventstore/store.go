// Package eventstore is the SQLite-backed implementation of
// pkg/eventstore.Store.
package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/ChainIndexor/internal/logger"
	"github.com/goran-ethernal/ChainIndexor/pkg/chain"
	"github.com/goran-ethernal/ChainIndexor/pkg/eventstore"
	"github.com/russross/meddler"
)

// InvariantViolationError is raised when the store detects data that
// violates an invariant it is supposed to maintain, such as a merged
// cached interval whose endpoint timestamp cannot be attributed to any
// contributing interval.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("event store invariant violated: %s", e.Reason)
}

// SQLiteStore implements pkg/eventstore.Store over a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
}

var _ eventstore.Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps an already-open, already-migrated database handle.
func NewSQLiteStore(db *sql.DB, log *logger.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, log: log}
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertRealtimeBlock implements eventstore.Store.
func (s *SQLiteStore) InsertRealtimeBlock(
	ctx context.Context,
	chainID uint64,
	block chain.BlockFull,
	transactions []chain.Transaction,
	logs []chain.Log,
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	if err := insertBlockIgnoreConflict(tx, &block); err != nil {
		return fmt.Errorf("failed to insert block %s: %w", block.Hash.Hex(), err)
	}

	for i := range transactions {
		if err := upsertTransaction(tx, &transactions[i]); err != nil {
			return fmt.Errorf("failed to upsert transaction %s: %w", transactions[i].Hash.Hex(), err)
		}
	}

	for i := range logs {
		if err := insertLogIgnoreConflict(tx, &logs[i]); err != nil {
			return fmt.Errorf("failed to insert log %s: %w", logs[i].LogID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE logs SET blockTimestamp = ? WHERE blockHash = ? AND blockTimestamp IS NULL`,
		block.Timestamp, block.Hash.Hex(),
	); err != nil {
		return fmt.Errorf("failed to backfill log block timestamps: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertBlockIgnoreConflict inserts a block, tolerating a primary-key
// conflict on an already-seen hash.
func insertBlockIgnoreConflict(tx *sql.Tx, block *chain.BlockFull) error {
	if err := meddler.Insert(tx, "blocks", block); err != nil {
		if isUniqueConstraintErr(err) {
			return nil
		}
		return err
	}
	return nil
}

func upsertTransaction(tx *sql.Tx, txn *chain.Transaction) error {
	if err := meddler.Insert(tx, "transactions", txn); err != nil {
		if isUniqueConstraintErr(err) {
			return nil
		}
		return err
	}
	return nil
}

func insertLogIgnoreConflict(tx *sql.Tx, log *chain.Log) error {
	if err := meddler.Insert(tx, "logs", log); err != nil {
		if isUniqueConstraintErr(err) {
			return nil
		}
		return err
	}
	return nil
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && (errors.Is(err, sql.ErrNoRows) == false) &&
		stringsContainsAny(err.Error(), "UNIQUE constraint", "PRIMARY KEY")
}

func stringsContainsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}

// InsertLogFilterCachedRanges implements eventstore.Store.
func (s *SQLiteStore) InsertLogFilterCachedRanges(ctx context.Context, write eventstore.CachedRangeWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	for _, filter := range write.Filters {
		if err := mergeCachedRange(tx, filter, write.StartBlock, write.EndBlock, write.EndBlockTimestamp); err != nil {
			return fmt.Errorf("failed to merge cached range for filter %q: %w", filter.LogFilterKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mergedInterval is a cached interval plus the endBlock its timestamp is
// sourced from, tracked through merging so the final row always carries a
// timestamp attributable to one of its contributing intervals.
type mergedInterval struct {
	startBlock        uint64
	endBlock          uint64
	endBlockTimestamp uint64
}

// mergeCachedRange reads the existing cached intervals for one filter key,
// merges in [startBlock, endBlock], and rewrites the key's interval set.
// Two intervals [a,b] and [c,d] merge whenever max(a,c) <= min(b,d)+1.
func mergeCachedRange(tx *sql.Tx, filter eventstore.CachedRangeFilterKey, startBlock, endBlock, endBlockTimestamp uint64) error {
	var existing []*chain.CachedInterval
	err := meddler.QueryAll(tx, &existing,
		`SELECT * FROM cachedIntervals WHERE logFilterKey = ? ORDER BY startBlock ASC`,
		filter.LogFilterKey,
	)
	if err != nil {
		return fmt.Errorf("failed to query existing intervals: %w", err)
	}

	candidates := make([]mergedInterval, 0, len(existing)+1)
	for _, iv := range existing {
		candidates = append(candidates, mergedInterval{
			startBlock:        iv.StartBlock,
			endBlock:          iv.EndBlock,
			endBlockTimestamp: iv.EndBlockTimestamp,
		})
	}
	candidates = append(candidates, mergedInterval{
		startBlock:        startBlock,
		endBlock:          endBlock,
		endBlockTimestamp: endBlockTimestamp,
	})

	sortMergedIntervals(candidates)

	merged := make([]mergedInterval, 0, len(candidates))
	for _, c := range candidates {
		if len(merged) == 0 {
			merged = append(merged, c)
			continue
		}
		last := &merged[len(merged)-1]
		if c.startBlock <= last.endBlock+1 {
			if c.endBlock > last.endBlock {
				last.endBlock = c.endBlock
				last.endBlockTimestamp = c.endBlockTimestamp
			}
		} else {
			merged = append(merged, c)
		}
	}

	for _, m := range merged {
		if err := validateMergedInterval(m, candidates); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM cachedIntervals WHERE logFilterKey = ?`, filter.LogFilterKey); err != nil {
		return fmt.Errorf("failed to clear existing intervals: %w", err)
	}

	for _, m := range merged {
		row := &chain.CachedInterval{
			LogFilterKey:      filter.LogFilterKey,
			ContractAddress:   filter.ContractAddress,
			StartBlock:        m.startBlock,
			EndBlock:          m.endBlock,
			EndBlockTimestamp: m.endBlockTimestamp,
		}
		if err := meddler.Insert(tx, "cachedIntervals", row); err != nil {
			return fmt.Errorf("failed to insert merged interval: %w", err)
		}
	}

	return nil
}

// validateMergedInterval enforces that a merged interval's endBlockTimestamp
// was sourced from a contributing interval whose endBlock matches it exactly.
func validateMergedInterval(m mergedInterval, contributors []mergedInterval) error {
	for _, c := range contributors {
		if c.endBlock == m.endBlock && c.endBlockTimestamp == m.endBlockTimestamp {
			return nil
		}
	}
	return &InvariantViolationError{
		Reason: fmt.Sprintf(
			"merged interval ending at block %d has no contributing interval with a matching endBlock/timestamp pair",
			m.endBlock,
		),
	}
}

func sortMergedIntervals(intervals []mergedInterval) {
	for i := 1; i < len(intervals); i++ {
		for j := i; j > 0 && intervals[j-1].startBlock > intervals[j].startBlock; j-- {
			intervals[j-1], intervals[j] = intervals[j], intervals[j-1]
		}
	}
}

// DeleteRealtimeData implements eventstore.Store.
func (s *SQLiteStore) DeleteRealtimeData(ctx context.Context, chainID uint64, fromBlockNumber uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM logs WHERE blockNumber >= ?`, fromBlockNumber); err != nil {
		return fmt.Errorf("failed to delete logs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE blockNumber >= ?`, fromBlockNumber); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE number >= ?`, fromBlockNumber); err != nil {
		return fmt.Errorf("failed to delete blocks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCachedIntervals implements eventstore.Store.
func (s *SQLiteStore) GetCachedIntervals(ctx context.Context, contractAddress common.Address) ([]chain.CachedInterval, error) {
	var intervals []*chain.CachedInterval
	err := meddler.QueryAll(s.db, &intervals,
		`SELECT * FROM cachedIntervals WHERE contractAddress = ? ORDER BY startBlock ASC`,
		contractAddress.Hex(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached intervals: %w", err)
	}

	out := make([]chain.CachedInterval, len(intervals))
	for i, iv := range intervals {
		out[i] = *iv
	}
	return out, nil
}

// GetBlock implements eventstore.Store.
func (s *SQLiteStore) GetBlock(ctx context.Context, hash common.Hash) (*chain.BlockFull, error) {
	var block chain.BlockFull
	err := meddler.QueryRow(s.db, &block, `SELECT * FROM blocks WHERE hash = ?`, hash.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query block %s: %w", hash.Hex(), err)
	}
	return &block, nil
}

// GetTransaction implements eventstore.Store.
func (s *SQLiteStore) GetTransaction(ctx context.Context, hash common.Hash) (*chain.Transaction, error) {
	var txn chain.Transaction
	err := meddler.QueryRow(s.db, &txn, `SELECT * FROM transactions WHERE hash = ?`, hash.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction %s: %w", hash.Hex(), err)
	}
	return &txn, nil
}

// GetLogs implements eventstore.Store.
func (s *SQLiteStore) GetLogs(ctx context.Context, query eventstore.LogQuery) ([]chain.Log, error) {
	sqlQuery := `SELECT * FROM logs WHERE address = ? AND blockTimestamp > ? AND blockTimestamp <= ?`
	args := []interface{}{query.ContractAddress.Hex(), query.FromBlockTimestamp, query.ToBlockTimestamp}

	if len(query.EventSigHashes) > 0 {
		sqlQuery += ` AND topic0 IN (` + placeholders(len(query.EventSigHashes)) + `)`
		for _, h := range query.EventSigHashes {
			args = append(args, h.Hex())
		}
	}
	sqlQuery += ` ORDER BY logSortKey ASC`

	var logs []*chain.Log
	if err := meddler.QueryAll(s.db, &logs, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}

	out := make([]chain.Log, len(logs))
	for i, l := range logs {
		out[i] = *l
	}
	return out, nil
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

// UpsertContractCall implements eventstore.Store.
func (s *SQLiteStore) UpsertContractCall(ctx context.Context, call chain.ContractCall) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contractCalls (key, result) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET result = excluded.result`,
		call.Key, call.Result,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert contract call %s: %w", call.Key, err)
	}
	return nil
}

// GetContractCall implements eventstore.Store.
func (s *SQLiteStore) GetContractCall(ctx context.Context, key string) (*chain.ContractCall, error) {
	var call chain.ContractCall
	err := meddler.QueryRow(s.db, &call, `SELECT * FROM contractCalls WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query contract call %s: %w", key, err)
	}
	return &call, nil
}
