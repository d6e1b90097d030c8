package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTopicFor(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
		event  string
		want   string
	}{
		{"reservation event", "", "reservation.request_created", "reservation.events.v1"},
		{"prefixed", "staging.", "reservation.canceled", "staging.reservation.events.v1"},
		{"no dot in name", "", "heartbeat", "heartbeat.events.v1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := &Worker{TopicPrefix: tc.prefix}
			if got := w.topicFor(tc.event); got != tc.want {
				t.Errorf("topicFor(%q) = %q, want %q", tc.event, got, tc.want)
			}
		})
	}
}

func TestFormatPayload(t *testing.T) {
	w := &Worker{Source: "app://covach"}
	occurred := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	doc := &EventDocument{
		ID:         "rec-1",
		Name:       "reservation.request_created",
		Aggregate:  "res-1",
		Payload:    []byte(`{"reservation_id":"res-1","guests":2}`),
		OccurredAt: occurred,
		Headers:    map[string]string{"trace-id": "abc"},
	}

	payload, headers, err := w.formatPayload(doc)
	if err != nil {
		t.Fatalf("formatPayload: %v", err)
	}
	if headers["content-type"] != "application/cloudevents+json" {
		t.Errorf("content-type header = %q", headers["content-type"])
	}
	if headers["trace-id"] != "abc" {
		t.Errorf("trace-id header lost: %v", headers)
	}

	var envelope map[string]any
	if err := json.Unmarshal(payload, &envelope); err != nil {
		t.Fatalf("envelope is not JSON: %v", err)
	}
	if envelope["specversion"] != "1.0" {
		t.Errorf("specversion = %v", envelope["specversion"])
	}
	if envelope["type"] != "reservation.request_created.v1" {
		t.Errorf("type = %v", envelope["type"])
	}
	if envelope["source"] != "app://covach" {
		t.Errorf("source = %v", envelope["source"])
	}
	data, _ := envelope["data"].(map[string]any)
	if data["reservation_id"] != "res-1" {
		t.Errorf("data = %v", data)
	}
}

func TestFormatPayloadRejectsMalformedEvents(t *testing.T) {
	w := &Worker{}
	doc := &EventDocument{Payload: []byte("not json")}
	if _, _, err := w.formatPayload(doc); err == nil {
		t.Error("formatPayload accepted a malformed payload")
	}
}

func TestNextRetryBackoff(t *testing.T) {
	w := &Worker{Backoff: []time.Duration{time.Second, time.Minute}}
	now := time.Now()

	if got := w.nextRetry(0); got.Sub(now) < time.Second || got.Sub(now) > 2*time.Second {
		t.Errorf("first retry delay = %v, want ~1s", got.Sub(now))
	}
	// Attempts past the table reuse the last entry.
	if got := w.nextRetry(5); got.Sub(now) < time.Minute {
		t.Errorf("late retry delay = %v, want >= 1m", got.Sub(now))
	}
}

func TestRunRequiresDependencies(t *testing.T) {
	w := &Worker{}
	if err := w.Run(context.Background()); !errors.Is(err, ErrWorkerNotConfigured) {
		t.Errorf("Run err = %v, want ErrWorkerNotConfigured", err)
	}
}
