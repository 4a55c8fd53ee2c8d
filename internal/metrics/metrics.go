package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event store metrics
	dbQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"db", "operation"},
	)

	dbQueryTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainindexor_db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"db", "operation"},
	)

	dbErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"db", "error_type"},
	)

	// Realtime sync metrics
	LocalHeadBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainindexor_local_head_block",
			Help: "Highest block number held in the local unfinalized chain",
		},
		[]string{"network"},
	)

	FinalizedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainindexor_finalized_block",
			Help: "Current finalized block number",
		},
		[]string{"network"},
	)

	RealtimeCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_realtime_checkpoints_total",
			Help: "Total number of realtimeCheckpoint events emitted",
		},
		[]string{"network"},
	)

	FinalityCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_finality_checkpoints_total",
			Help: "Total number of finalityCheckpoint events emitted",
		},
		[]string{"network"},
	)

	ShallowReorgs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_shallow_reorgs_total",
			Help: "Total number of shallow reorgs reconciled against the local chain",
		},
		[]string{"network"},
	)

	DeepReorgs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_deep_reorgs_total",
			Help: "Total number of deep reorgs detected beyond the finalized boundary",
		},
		[]string{"network"},
	)

	ReorgDepth = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainindexor_reorg_depth_blocks",
			Help:    "Depth, in blocks, of reconciled shallow reorgs and detected deep reorgs",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89},
		},
		[]string{"network", "kind"}, // kind: "shallow" or "deep"
	)

	GapBlocksFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_gap_blocks_fetched_total",
			Help: "Total number of blocks fetched to fill a detected gap ahead of the local head",
		},
		[]string{"network"},
	)

	BloomPreScreenResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_bloom_prescreen_results_total",
			Help: "Bloom Pre-Filter screen outcomes against each block's logsBloom",
		},
		[]string{"network", "result"}, // result: "pass" or "miss"
	)

	MatchedLogs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_matched_logs_total",
			Help: "Total number of logs matched by the Log Filter and written through to the event store",
		},
		[]string{"network"},
	)

	// Task queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainindexor_queue_depth",
			Help: "Number of tasks currently pending in the priority task queue",
		},
	)

	TaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chainindexor_task_duration_seconds",
			Help:    "Duration of a single task queue task",
			Buckets: prometheus.DefBuckets,
		},
	)

	TaskErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chainindexor_task_errors_total",
			Help: "Total number of task queue tasks that returned an error",
		},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainindexor_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainindexor_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainindexor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainindexor_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainindexor_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func DBQueryInc(db string, operation string) {
	dbQueries.WithLabelValues(db, operation).Inc()
}

func DBQueryDuration(db string, operation string, duration time.Duration) {
	dbQueryTime.WithLabelValues(db, operation).Observe(duration.Seconds())
}

func DBErrorsInc(db string, errorType string) {
	dbErrors.WithLabelValues(db, errorType).Inc()
}

func RealtimeCheckpointInc(network string, headBlockNumber uint64) {
	RealtimeCheckpoints.WithLabelValues(network).Inc()
	LocalHeadBlock.WithLabelValues(network).Set(float64(headBlockNumber))
}

func FinalityCheckpointInc(network string, finalizedBlockNumber uint64) {
	FinalityCheckpoints.WithLabelValues(network).Inc()
	FinalizedBlock.WithLabelValues(network).Set(float64(finalizedBlockNumber))
}

func ShallowReorgInc(network string, depth uint64) {
	ShallowReorgs.WithLabelValues(network).Inc()
	ReorgDepth.WithLabelValues(network, "shallow").Observe(float64(depth))
}

func DeepReorgInc(network string, minimumDepth uint64) {
	DeepReorgs.WithLabelValues(network).Inc()
	ReorgDepth.WithLabelValues(network, "deep").Observe(float64(minimumDepth))
}

func GapBlocksFetchedAdd(network string, count int) {
	GapBlocksFetched.WithLabelValues(network).Add(float64(count))
}

func BloomPreScreenPassInc(network string) {
	BloomPreScreenResults.WithLabelValues(network, "pass").Inc()
}

func BloomPreScreenMissInc(network string) {
	BloomPreScreenResults.WithLabelValues(network, "miss").Inc()
}

func MatchedLogsAdd(network string, count int) {
	MatchedLogs.WithLabelValues(network).Add(float64(count))
}

func QueueDepthSet(depth int) {
	QueueDepth.Set(float64(depth))
}

func TaskDurationLog(duration time.Duration) {
	TaskDuration.Observe(duration.Seconds())
}

func TaskErrorsInc() {
	TaskErrors.Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	// Update uptime
	Uptime.Set(time.Since(startTime).Seconds())

	// Update goroutine count
	Goroutines.Set(float64(runtime.NumGoroutine()))

	// Update memory statistics
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
