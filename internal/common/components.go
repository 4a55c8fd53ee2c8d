package common

const (
	ComponentRealtimeSync = "realtime-sync"
	ComponentEventStore   = "event-store"
	ComponentBloomFilter  = "bloom-filter"
	ComponentLogFilter    = "log-filter"
	ComponentTaskQueue    = "task-queue"
	ComponentRPCClient    = "rpc-client"
)

var AllComponents = map[string]struct{}{
	ComponentRealtimeSync: {},
	ComponentEventStore:   {},
	ComponentBloomFilter:  {},
	ComponentLogFilter:    {},
	ComponentTaskQueue:    {},
	ComponentRPCClient:    {},
}
