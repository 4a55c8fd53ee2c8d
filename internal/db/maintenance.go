package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/ChainIndexor/internal/logger"
	"github.com/goran-ethernal/ChainIndexor/pkg/config"
)

// Maintenance runs background upkeep on a long-lived SQLite event store:
// periodic WAL checkpoints and VACUUM to bound file growth from the
// steady stream of block/log writes the realtime sync core produces.
type Maintenance interface {
	// Start begins background maintenance if enabled.
	Start(ctx context.Context) error
	// Stop stops background maintenance and waits for completion.
	Stop() error
	// RunMaintenance performs database maintenance operations (for manual invocation).
	RunMaintenance(ctx context.Context) error
	// Metrics returns the run count and last error observed by this coordinator.
	Metrics() (runCount uint64, lastErr error)
}

// NoOpMaintenance is used when no maintenance configuration is provided.
type NoOpMaintenance struct{}

func (m *NoOpMaintenance) Start(ctx context.Context) error {
	return nil
}

func (m *NoOpMaintenance) Stop() error {
	return nil
}

func (m *NoOpMaintenance) RunMaintenance(ctx context.Context) error {
	return nil
}

func (m *NoOpMaintenance) Metrics() (uint64, error) {
	return 0, nil
}

// MaintenanceCoordinator runs periodic WAL checkpoints and VACUUMs against
// the event store database on a background goroutine.
type MaintenanceCoordinator struct {
	db     *sql.DB
	config config.MaintenanceConfig
	dbPath string
	log    *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	runCount   uint64
	lastRunErr error
}

// NewMaintenanceCoordinator creates a new maintenance coordinator. It
// returns a NoOpMaintenance if cfg is nil, so callers can wire it
// unconditionally.
func NewMaintenanceCoordinator(
	dbPath string,
	sqlDB *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
) Maintenance {
	if cfg == nil {
		return &NoOpMaintenance{}
	}

	return &MaintenanceCoordinator{
		db:     sqlDB,
		config: *cfg,
		dbPath: dbPath,
		log:    log.WithComponent("eventstore-maintenance"),
	}
}

// Start begins background maintenance if enabled.
func (m *MaintenanceCoordinator) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.log.Info("background maintenance disabled")
		return nil
	}

	maintenanceCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if m.config.VacuumOnStartup {
		m.log.Info("running startup maintenance")
		if err := m.RunMaintenance(maintenanceCtx); err != nil {
			m.log.Warnf("startup maintenance failed: %v", err)
		}
	}

	m.wg.Add(1)
	go m.run(maintenanceCtx)

	m.log.Infof("background maintenance started, interval=%v checkpointMode=%s",
		m.config.CheckInterval.Duration, m.config.WALCheckpointMode)
	return nil
}

// Stop stops background maintenance and waits for the worker to exit.
func (m *MaintenanceCoordinator) Stop() error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *MaintenanceCoordinator) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CheckInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunMaintenance(ctx); err != nil {
				m.log.Warnf("periodic maintenance failed: %v", err)
			}
		}
	}
}

// RunMaintenance performs one WAL-checkpoint-then-VACUUM pass.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	start := time.Now()
	MaintenanceRunsInc()

	initialSize, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("failed to read event store size before maintenance: %v", err)
	}

	var runErr error
	if err := m.walCheckpoint(); err != nil {
		runErr = fmt.Errorf("wal checkpoint failed: %w", err)
		m.log.Errorf("%v", runErr)
	}

	if err := Vacuum(m.db); err != nil {
		m.log.Warnf("vacuum failed (expected while transactions are in flight): %v", err)
		if runErr == nil {
			runErr = fmt.Errorf("vacuum failed: %w", err)
		}
	} else {
		VacuumRunsInc()
	}

	finalSize, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("failed to read event store size after maintenance: %v", err)
	}

	MaintenanceDurationLog(time.Since(start))

	m.mu.Lock()
	m.runCount++
	m.lastRunErr = runErr
	m.mu.Unlock()

	if runErr != nil {
		MaintenanceErrorInc()
		return runErr
	}

	MaintenanceSuccessInc()
	if initialSize > finalSize {
		MaintenanceSpaceReclaimedLog(uint64(initialSize - finalSize))
	}
	DBSizeLog(finalSize)
	m.log.Infof("maintenance completed in %v, size=%d bytes", time.Since(start), finalSize)
	return nil
}

// Metrics returns the run count and last error observed by this coordinator.
func (m *MaintenanceCoordinator) Metrics() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runCount, m.lastRunErr
}

// walCheckpoint runs PRAGMA wal_checkpoint when the database is in WAL mode.
func (m *MaintenanceCoordinator) walCheckpoint() error {
	var mode string
	if err := m.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to read journal_mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		m.log.Debug("not in WAL mode, skipping checkpoint")
		return nil
	}

	stmt := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.config.WALCheckpointMode)
	var busy, logFrames, checkpointed int
	if err := m.db.QueryRow(stmt).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("failed to execute %q: %w", stmt, err)
	}

	WALCheckpointInc(strings.ToLower(m.config.WALCheckpointMode))
	if busy > 0 {
		m.log.Warnf("wal checkpoint left %d pages busy", busy)
	}
	return nil
}

// Vacuum reclaims space in db by rewriting the database file.
func Vacuum(sqlDB *sql.DB) error {
	_, err := sqlDB.Exec("VACUUM")
	if err != nil {
		if strings.Contains(err.Error(), "database is locked") {
			return fmt.Errorf("cannot vacuum: database is locked, retry later")
		}
		return fmt.Errorf("vacuum failed: %w", err)
	}
	return nil
}

// DBTotalSize returns the combined size in bytes of the SQLite main file
// plus its -wal and -shm siblings, if present. A missing file contributes
// zero rather than an error, since -wal/-shm only exist transiently.
func DBTotalSize(dbPath string) (int64, error) {
	var total int64
	for _, suffix := range []string{"", "-wal", "-shm"} {
		info, err := os.Stat(dbPath + suffix)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("failed to stat %s%s: %w", dbPath, suffix, err)
		}
		total += info.Size()
	}
	return total, nil
}
