package eventbus

import "errors"

// ErrSubscriptionNotFound is returned by Unsubscribe and UnsubscribeFree
// when the given owner or handler is not registered under the event type.
var ErrSubscriptionNotFound = errors.New("eventbus: subscription not found")
