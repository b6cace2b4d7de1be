// Package events defines event types and publisher interfaces for native
// object lifecycle events.
package events

import "time"

// Object lifecycle actions.
const (
	ActionRegistered = "registered"
	ActionDeleted    = "deleted"
)

// ObjectLifecycleEvent is emitted when a native object enters or leaves the
// object registry.
type ObjectLifecycleEvent struct {
	Action    string `json:"action"`
	ObjectID  string `json:"objectId"`
	URI       string `json:"uri"`
	ClassName string `json:"className"`
	Live      int    `json:"live"`
	Timestamp string `json:"timestamp"`
}

// NewObjectLifecycleEvent builds an event stamped with the current UTC time.
func NewObjectLifecycleEvent(action, objectID, uri, className string, live int) *ObjectLifecycleEvent {
	return &ObjectLifecycleEvent{
		Action:    action,
		ObjectID:  objectID,
		URI:       uri,
		ClassName: className,
		Live:      live,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
