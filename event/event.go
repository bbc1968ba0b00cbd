package event

import "time"

// Event event interface
type Event interface {
	// Name unique event name, e.g. "parcel.updated"
	Name() string
}

// BaseEvent embeddable base for concrete events
type BaseEvent struct {
	name       string
	occurredAt time.Time
}

func NewEvent(name string) BaseEvent {
	return BaseEvent{
		name:       name,
		occurredAt: time.Now(),
	}
}

func (e BaseEvent) Name() string {
	return e.name
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// DataChanged announces that upstream source data changed.
// IDs names the affected identifiers; empty means "everything under this event".
type DataChanged struct {
	BaseEvent
	IDs []string
}

// NewDataChanged creates a DataChanged event
//
//	dispatcher.Dispatch(ctx, event.NewDataChanged("parcel.updated", "13097000B0012"))
func NewDataChanged(name string, ids ...string) *DataChanged {
	return &DataChanged{BaseEvent: NewEvent(name), IDs: ids}
}

// InvalidatedIDs identifiers whose cached data is stale
func (e *DataChanged) InvalidatedIDs() []string {
	return e.IDs
}
