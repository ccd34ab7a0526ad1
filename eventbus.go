// Package eventbus implements an in-process publish/subscribe registry.
//
// Producers fire typed event values; the registry looks up every handler
// registered for the value's concrete type and invokes each one synchronously
// on the calling goroutine. Handlers are either free (unsubscribed
// individually by reference) or bound to an owner value that groups them for
// bulk removal.
package eventbus

import (
	"io"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry routes fired events to their subscribed handlers.
//
// A Registry is safe for concurrent use. Subscribe and unsubscribe take the
// write lock; Fire holds the read lock only while it copies a handler set,
// never while handlers run.
type Registry struct {
	mu sync.RWMutex

	// Handlers with no owner, keyed by event type.
	freeHandlers map[reflect.Type]map[*Handler]struct{}

	// Owners interested in an event type, and the handlers bound to each
	// owner across every event type it registered for.
	owners        map[reflect.Type]map[any]struct{}
	ownerHandlers map[any]map[*Handler]struct{}

	logger    logrus.FieldLogger
	logCloser io.Closer
}

// New creates an empty registry with the given options applied.
func New(opts ...Option) *Registry {
	r := &Registry{
		freeHandlers:  make(map[reflect.Type]map[*Handler]struct{}),
		owners:        make(map[reflect.Type]map[any]struct{}),
		ownerHandlers: make(map[any]map[*Handler]struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Close releases the log writer opened by WithLogFile, if any. Subscription
// state needs no teardown; a registry without a log file never needs Close.
func (r *Registry) Close() error {
	if r.logCloser != nil {
		return r.logCloser.Close()
	}
	return nil
}

// Subscribe registers handler for events of type eventType, grouped under
// owner. Owner is an arbitrary comparable value used only as a grouping key
// for Unsubscribe; the registry never calls into it. Both backing
// associations are sets, so subscribing the identical (owner, handler) pair
// twice has no effect beyond the first call.
//
// Subscribe panics when eventType, owner, or handler is nil.
func (r *Registry) Subscribe(eventType reflect.Type, owner any, handler *Handler) {
	if eventType == nil {
		panic("eventbus: Subscribe with nil event type")
	}
	if owner == nil {
		panic("eventbus: Subscribe with nil owner")
	}
	if handler == nil {
		panic("eventbus: Subscribe with nil handler")
	}

	r.mu.Lock()
	ownersForEvent, ok := r.owners[eventType]
	if !ok {
		ownersForEvent = make(map[any]struct{})
		r.owners[eventType] = ownersForEvent
	}
	ownersForEvent[owner] = struct{}{}

	handlersForOwner, ok := r.ownerHandlers[owner]
	if !ok {
		handlersForOwner = make(map[*Handler]struct{})
		r.ownerHandlers[owner] = handlersForOwner
	}
	handlersForOwner[handler] = struct{}{}
	r.mu.Unlock()

	r.logDebug("handler subscribed", logrus.Fields{"event": eventType.String(), "bound": true})
}

// SubscribeFree registers handler for events of type eventType with no
// owner. The registry returns no handle, so the caller must keep the handler
// reference to unsubscribe it later. Subscribing the same handler twice has
// no effect beyond the first call.
//
// SubscribeFree panics when eventType or handler is nil.
func (r *Registry) SubscribeFree(eventType reflect.Type, handler *Handler) {
	if eventType == nil {
		panic("eventbus: SubscribeFree with nil event type")
	}
	if handler == nil {
		panic("eventbus: SubscribeFree with nil handler")
	}

	r.mu.Lock()
	handlersForEvent, ok := r.freeHandlers[eventType]
	if !ok {
		handlersForEvent = make(map[*Handler]struct{})
		r.freeHandlers[eventType] = handlersForEvent
	}
	handlersForEvent[handler] = struct{}{}
	r.mu.Unlock()

	r.logDebug("handler subscribed", logrus.Fields{"event": eventType.String(), "bound": false})
}

// Unsubscribe removes owner from events of type eventType and drops every
// handler bound to owner in the process, including handlers the owner
// registered under other event types. Callers that need per-type removal
// must register a distinct owner value per event type.
//
// Returns ErrSubscriptionNotFound when owner is not registered under
// eventType; nothing is modified on that path.
func (r *Registry) Unsubscribe(eventType reflect.Type, owner any) error {
	if eventType == nil {
		panic("eventbus: Unsubscribe with nil event type")
	}
	if owner == nil {
		panic("eventbus: Unsubscribe with nil owner")
	}

	r.mu.Lock()
	ownersForEvent := r.owners[eventType]
	if _, ok := ownersForEvent[owner]; !ok {
		r.mu.Unlock()
		return ErrSubscriptionNotFound
	}

	delete(ownersForEvent, owner)
	delete(r.ownerHandlers, owner)
	if len(ownersForEvent) == 0 {
		delete(r.owners, eventType)
	}
	r.mu.Unlock()

	r.logDebug("owner unsubscribed", logrus.Fields{"event": eventType.String()})
	return nil
}

// UnsubscribeFree removes a free handler from events of type eventType. The
// handler is matched by identity: it must be the same *Handler that was
// subscribed, not a separately constructed equivalent.
//
// Returns ErrSubscriptionNotFound when handler is not registered under
// eventType; nothing is modified on that path.
func (r *Registry) UnsubscribeFree(eventType reflect.Type, handler *Handler) error {
	if eventType == nil {
		panic("eventbus: UnsubscribeFree with nil event type")
	}
	if handler == nil {
		panic("eventbus: UnsubscribeFree with nil handler")
	}

	r.mu.Lock()
	handlersForEvent := r.freeHandlers[eventType]
	if _, ok := handlersForEvent[handler]; !ok {
		r.mu.Unlock()
		return ErrSubscriptionNotFound
	}

	delete(handlersForEvent, handler)
	if len(handlersForEvent) == 0 {
		delete(r.freeHandlers, eventType)
	}
	r.mu.Unlock()

	r.logDebug("handler unsubscribed", logrus.Fields{"event": eventType.String()})
	return nil
}

// Fire dispatches event to every handler registered for its concrete type:
// first all free handlers, then each registered owner's bound handlers.
// Iteration order within each group is unspecified. Fire returns after the
// last handler returns; a nil event is ignored. Firing a type with no
// subscriptions is a no-op.
//
// A handler that panics is recovered and logged, and dispatch continues with
// the remaining handlers. Handlers run without the registry lock held, so a
// handler may subscribe or unsubscribe during its own invocation; whether
// such a mutation is visible to the rest of the same dispatch is
// unspecified.
func (r *Registry) Fire(event any) {
	if event == nil {
		return
	}
	eventType := reflect.TypeOf(event)

	for _, handler := range r.snapshotFree(eventType) {
		r.invoke(handler, event, eventType)
	}

	for _, owner := range r.snapshotOwners(eventType) {
		for _, handler := range r.snapshotOwnerHandlers(owner) {
			r.invoke(handler, event, eventType)
		}
	}
}

// snapshotFree copies the free-handler set for eventType so handlers can be
// invoked without holding the lock.
func (r *Registry) snapshotFree(eventType reflect.Type) []*Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := make([]*Handler, 0, len(r.freeHandlers[eventType]))
	for handler := range r.freeHandlers[eventType] {
		handlers = append(handlers, handler)
	}
	return handlers
}

// snapshotOwners copies the owner set for eventType.
func (r *Registry) snapshotOwners(eventType reflect.Type) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := make([]any, 0, len(r.owners[eventType]))
	for owner := range r.owners[eventType] {
		owners = append(owners, owner)
	}
	return owners
}

// snapshotOwnerHandlers copies the bound-handler set for owner.
func (r *Registry) snapshotOwnerHandlers(owner any) []*Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := make([]*Handler, 0, len(r.ownerHandlers[owner]))
	for handler := range r.ownerHandlers[owner] {
		handlers = append(handlers, handler)
	}
	return handlers
}

// invoke runs a single handler with panic recovery.
func (r *Registry) invoke(handler *Handler, event any, eventType reflect.Type) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logError("handler panicked", logrus.Fields{"event": eventType.String(), "panic": rec})
		}
	}()

	handler.fn(event)
}

// logDebug logs subscription and dispatch activity when a logger is attached.
func (r *Registry) logDebug(msg string, fields logrus.Fields) {
	if r.logger != nil {
		r.logger.WithFields(fields).Debug(msg)
	}
}

// logError logs handler failures when a logger is attached.
func (r *Registry) logError(msg string, fields logrus.Fields) {
	if r.logger != nil {
		r.logger.WithFields(fields).Error(msg)
	}
}
