package audit

import "context"

// AppointmentTimeline is a read-model projection over one appointment's
// aggregate_id: every event recorded against it, in append order.
type AppointmentTimeline struct {
	AppointmentID string
	Entries       []Entry
}

// Projection builds read-models over a Store without mutating it.
type Projection struct {
	store Store
}

// NewProjection constructs a Projection over store.
func NewProjection(store Store) *Projection {
	return &Projection{store: store}
}

// Timeline returns every event recorded for appointmentID, in the order the
// store appended them.
func (p *Projection) Timeline(ctx context.Context, appointmentID string) (AppointmentTimeline, error) {
	entries, err := p.store.Query(ctx, QueryFilter{AggregateID: appointmentID})
	if err != nil {
		return AppointmentTimeline{}, err
	}
	return AppointmentTimeline{AppointmentID: appointmentID, Entries: entries}, nil
}

// CountByEventType returns the number of entries in the store whose
// event_type equals eventType. An empty eventType counts every entry.
func (p *Projection) CountByEventType(ctx context.Context, eventType string) (int, error) {
	entries, err := p.store.Query(ctx, QueryFilter{EventType: eventType})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
