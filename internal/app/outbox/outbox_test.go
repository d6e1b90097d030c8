package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"covach/internal/domain/shared/events"
)

type stubEvent struct {
	Name string    `json:"-"`
	ID   string    `json:"id"`
	At   time.Time `json:"at"`
}

func (e stubEvent) EventName() string     { return e.Name }
func (e stubEvent) AggregateID() string   { return e.ID }
func (e stubEvent) OccurredAt() time.Time { return e.At }

type recordingOutbox struct {
	records []EventRecord
}

func (o *recordingOutbox) Add(ctx context.Context, record EventRecord) error {
	o.records = append(o.records, record)
	return nil
}

func TestJSONEventEncoder(t *testing.T) {
	at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	enc := JSONEventEncoder{IDGenerator: func() string { return "rec-1" }}

	record, err := enc.Encode(stubEvent{Name: "reservation.request_created", ID: "res-1", At: at})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if record.ID != "rec-1" {
		t.Errorf("ID = %q, want rec-1", record.ID)
	}
	if record.Name != "reservation.request_created" {
		t.Errorf("Name = %q", record.Name)
	}
	if record.Aggregate != "res-1" {
		t.Errorf("Aggregate = %q, want res-1", record.Aggregate)
	}
	if !record.OccurredAt.Equal(at) {
		t.Errorf("OccurredAt = %v, want %v", record.OccurredAt, at)
	}
	var payload map[string]any
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["id"] != "res-1" {
		t.Errorf("payload id = %v, want res-1", payload["id"])
	}
}

func TestJSONEventEncoderDefaultsIDs(t *testing.T) {
	record, err := JSONEventEncoder{}.Encode(stubEvent{Name: "reservation.canceled", ID: "res-1"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if record.ID == "" {
		t.Error("ID is empty without an IDGenerator")
	}
}

func TestRecordDomainEvents(t *testing.T) {
	box := &recordingOutbox{}
	batch := []events.DomainEvent{
		stubEvent{Name: "reservation.request_created", ID: "res-1"},
		stubEvent{Name: "reservation.request_approved", ID: "res-1"},
	}

	if err := RecordDomainEvents(context.Background(), box, nil, batch); err != nil {
		t.Fatalf("RecordDomainEvents: %v", err)
	}
	if len(box.records) != 2 {
		t.Fatalf("records = %d, want 2", len(box.records))
	}
	if box.records[0].Name != "reservation.request_created" || box.records[1].Name != "reservation.request_approved" {
		t.Errorf("record order = %q, %q", box.records[0].Name, box.records[1].Name)
	}

	// A nil outbox and an empty batch are both no-ops.
	if err := RecordDomainEvents(context.Background(), nil, nil, batch); err != nil {
		t.Errorf("nil outbox err = %v", err)
	}
	if err := RecordDomainEvents(context.Background(), box, nil, nil); err != nil {
		t.Errorf("empty batch err = %v", err)
	}
	if len(box.records) != 2 {
		t.Errorf("records after no-ops = %d, want 2", len(box.records))
	}
}
