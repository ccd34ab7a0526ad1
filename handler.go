package eventbus

import "reflect"

// Handler is a unit of behavior invoked with one event value. Handlers are
// identified by pointer: two handlers wrapping behaviorally identical
// functions are distinct subscriptions, so a caller unsubscribing a free
// handler must present the same *Handler it subscribed.
type Handler struct {
	fn func(event any)
}

// HandlerFunc wraps fn in a new Handler. Every call yields a distinct
// handler identity, even for the same function value.
func HandlerFunc(fn func(event any)) *Handler {
	if fn == nil {
		panic("eventbus: HandlerFunc with nil function")
	}
	return &Handler{fn: fn}
}

// TypedHandler wraps a function taking a concrete event type. Events whose
// dynamic type is not T are ignored, so the handler stays safe even when
// registered under a key it does not expect.
func TypedHandler[T any](fn func(event T)) *Handler {
	if fn == nil {
		panic("eventbus: TypedHandler with nil function")
	}
	return &Handler{fn: func(event any) {
		if e, ok := event.(T); ok {
			fn(e)
		}
	}}
}

// TypeOf returns the registry key for events of concrete type T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// On subscribes fn as a free handler for events of type T and returns the
// handler so the caller can unsubscribe it later.
func On[T any](r *Registry, fn func(event T)) *Handler {
	h := TypedHandler(fn)
	r.SubscribeFree(TypeOf[T](), h)
	return h
}
