package domain

// EventKind is the type of a change notification.
type EventKind string

const (
	EventInsert  EventKind = "insert"
	EventDelete  EventKind = "delete"
	EventUpdate  EventKind = "update"
	EventUnknown EventKind = "unknown"
)

// ParseEventKind maps a wire type to an EventKind.
// Anything unrecognised is EventUnknown.
func ParseEventKind(s string) EventKind {
	switch EventKind(s) {
	case EventInsert, EventDelete, EventUpdate:
		return EventKind(s)
	default:
		return EventUnknown
	}
}

// ChangeEvent is one notification from an owner's change feed.
// New is set for inserts and updates, Old for deletes and updates.
type ChangeEvent struct {
	Kind EventKind
	New  *Bookmark
	Old  *Bookmark
}

// RecordID returns the id of the affected record, preferring the new snapshot.
func (e ChangeEvent) RecordID() string {
	if e.New != nil {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}

// SubscriptionStatus is the connection state of a change subscription.
type SubscriptionStatus string

const (
	StatusConnecting SubscriptionStatus = "connecting"
	StatusActive     SubscriptionStatus = "active"
	StatusErrored    SubscriptionStatus = "errored"
	StatusClosed     SubscriptionStatus = "closed"
)

// EventHandler receives change events from a subscription.
type EventHandler func(ChangeEvent)

// StatusHandler receives subscription status transitions.
// err is a *SubscriptionError when status is StatusErrored, nil otherwise.
type StatusHandler func(status SubscriptionStatus, err error)
