package auditlog

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

func TestComputeIntegritySHA256_Deterministic(t *testing.T) {
	event := Event{
		OccurredAt:   time.Unix(1700000000, 0).UTC(),
		Actor:        "alice",
		Action:       ActionRunCreate,
		ResourceType: ResourceRun,
		ResourceID:   "run-1",
		RequestID:    "req-123",
		IP:           net.ParseIP("192.0.2.1"),
		UserAgent:    "test-agent",
	}
	payloadJSON := []byte(`{"stamp_id":"vs-1","status":"PASSED"}`)

	a, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a != b {
		t.Fatalf("integrity mismatch: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
}

func TestComputeIntegritySHA256_ChangesOnPayload(t *testing.T) {
	event := Event{
		OccurredAt:   time.Unix(1700000000, 0).UTC(),
		Actor:        "alice",
		Action:       ActionRunStatusAppend,
		ResourceType: ResourceRun,
		ResourceID:   "run-1",
	}
	a, err := ComputeIntegritySHA256(event, []byte(`{"status":"FAILED"}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, []byte(`{"status":"DEFECTIVE"}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a == b {
		t.Fatalf("expected integrity to differ")
	}
}

func TestEventValidate(t *testing.T) {
	event := Event{OccurredAt: time.Now(), Actor: "alice", Action: ActionStampCreate, ResourceType: ResourceStamp}
	if err := event.Validate(); err == nil || !strings.Contains(err.Error(), "ResourceID") {
		t.Fatalf("expected ResourceID error, got %v", err)
	}
}

func TestInsertRequiresQueryer(t *testing.T) {
	if _, err := Insert(context.Background(), nil, Event{}); err == nil {
		t.Fatalf("expected error without queryer")
	}
}

func TestOriginRoundTripsThroughContext(t *testing.T) {
	if got := OriginFromContext(context.Background()); got.RequestID != "" {
		t.Fatalf("expected empty origin, got %+v", got)
	}
	ctx := WithOrigin(context.Background(), Origin{RequestID: "req-9", IP: net.ParseIP("10.0.0.1"), UserAgent: "curl"})
	event := OriginFromContext(ctx).Apply(Event{Action: ActionRunCreate})
	if event.RequestID != "req-9" || ipString(event.IP) != "10.0.0.1" || event.UserAgent != "curl" || event.Action != ActionRunCreate {
		t.Fatalf("unexpected event %+v", event)
	}
}
