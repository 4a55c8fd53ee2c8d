// Package realtime defines the Realtime Sync Service's public surface:
// the Service lifecycle and the typed events it emits.
package realtime

import "sync"

// RealtimeCheckpoint is emitted whenever a new head block is accepted
// (case 2 in the block classification table).
type RealtimeCheckpoint struct {
	Timestamp uint64
}

// FinalityCheckpoint is emitted whenever the finalized block number
// advances.
type FinalityCheckpoint struct {
	Timestamp uint64
}

// ShallowReorg is emitted when a reorg's common ancestor is found above
// the finalized block.
type ShallowReorg struct {
	CommonAncestorTimestamp uint64
}

// DeepReorg is emitted when a reorg's ancestor walk reaches the finalized
// block without finding a common ancestor. Recovery is delegated to a
// higher layer.
type DeepReorg struct {
	DetectedAtBlockNumber uint64
	MinimumDepth          uint64
}

// ErrorEvent is emitted whenever a task fails and is surfaced through the
// queue's error hook.
type ErrorEvent struct {
	Err error
}

// EventBus is a typed publisher: one handler slot per event kind, in
// place of the dynamic emitter a dynamically-typed reimplementation might
// reach for. Handlers are invoked synchronously on the caller's goroutine;
// a handler must not block.
type EventBus struct {
	mu sync.RWMutex

	onRealtimeCheckpoint func(RealtimeCheckpoint)
	onFinalityCheckpoint func(FinalityCheckpoint)
	onShallowReorg       func(ShallowReorg)
	onDeepReorg          func(DeepReorg)
	onError              func(ErrorEvent)
}

// NewEventBus creates an EventBus with no handlers registered; emitting an
// event with no handler registered is a silent no-op.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// OnRealtimeCheckpoint registers the handler for RealtimeCheckpoint events,
// replacing any previously registered handler.
func (b *EventBus) OnRealtimeCheckpoint(fn func(RealtimeCheckpoint)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRealtimeCheckpoint = fn
}

// OnFinalityCheckpoint registers the handler for FinalityCheckpoint events.
func (b *EventBus) OnFinalityCheckpoint(fn func(FinalityCheckpoint)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFinalityCheckpoint = fn
}

// OnShallowReorg registers the handler for ShallowReorg events.
func (b *EventBus) OnShallowReorg(fn func(ShallowReorg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onShallowReorg = fn
}

// OnDeepReorg registers the handler for DeepReorg events.
func (b *EventBus) OnDeepReorg(fn func(DeepReorg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDeepReorg = fn
}

// OnError registers the handler for ErrorEvent events.
func (b *EventBus) OnError(fn func(ErrorEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// EmitRealtimeCheckpoint invokes the registered RealtimeCheckpoint handler,
// if any.
func (b *EventBus) EmitRealtimeCheckpoint(e RealtimeCheckpoint) {
	b.mu.RLock()
	fn := b.onRealtimeCheckpoint
	b.mu.RUnlock()
	if fn != nil {
		fn(e)
	}
}

// EmitFinalityCheckpoint invokes the registered FinalityCheckpoint handler,
// if any.
func (b *EventBus) EmitFinalityCheckpoint(e FinalityCheckpoint) {
	b.mu.RLock()
	fn := b.onFinalityCheckpoint
	b.mu.RUnlock()
	if fn != nil {
		fn(e)
	}
}

// EmitShallowReorg invokes the registered ShallowReorg handler, if any.
func (b *EventBus) EmitShallowReorg(e ShallowReorg) {
	b.mu.RLock()
	fn := b.onShallowReorg
	b.mu.RUnlock()
	if fn != nil {
		fn(e)
	}
}

// EmitDeepReorg invokes the registered DeepReorg handler, if any.
func (b *EventBus) EmitDeepReorg(e DeepReorg) {
	b.mu.RLock()
	fn := b.onDeepReorg
	b.mu.RUnlock()
	if fn != nil {
		fn(e)
	}
}

// EmitError invokes the registered ErrorEvent handler, if any.
func (b *EventBus) EmitError(e ErrorEvent) {
	b.mu.RLock()
	fn := b.onError
	b.mu.RUnlock()
	if fn != nil {
		fn(e)
	}
}
